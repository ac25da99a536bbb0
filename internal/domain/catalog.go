package domain

// CatalogKind names one of the flat catalog namespaces.
type CatalogKind string

const (
	CatalogProblemType  CatalogKind = "problem_type"
	CatalogSolutionType CatalogKind = "solution_type"
)

// Valid reports whether k is a known namespace.
func (k CatalogKind) Valid() bool {
	return k == CatalogProblemType || k == CatalogSolutionType
}

// UnclassifiedBucket labels statistics for work orders without a problem type.
const UnclassifiedBucket = "unclassified"

// DefaultArchiveHours is used until an administrator changes the setting.
const DefaultArchiveHours = 72

// MaxArchiveHours caps the archive window at ten years.
const MaxArchiveHours = 24 * 365 * 10

// ValidArchiveHours reports whether hours is an acceptable archive window.
func ValidArchiveHours(hours int) bool {
	return hours >= 0 && hours <= MaxArchiveHours
}
