package domain

import "time"

// SystemSettings is the single mutable settings record.
type SystemSettings struct {
	ArchiveHours int
	CreatedAt    time.Time
	ModifiedAt   time.Time
}
