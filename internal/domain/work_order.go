package domain

import (
	"strings"
	"time"
)

// DateTimeLayout is the wire format for timestamps exchanged with callers.
const DateTimeLayout = "2006-01-02 15:04:05"

// WorkOrderStatus enumerates lifecycle states for work orders.
type WorkOrderStatus int

const (
	WorkOrderStatusNew WorkOrderStatus = iota
	WorkOrderStatusInProgress
	WorkOrderStatusCompleted
	WorkOrderStatusArchived
)

// AllWorkOrderStatuses lists statuses in lifecycle order.
var AllWorkOrderStatuses = []WorkOrderStatus{
	WorkOrderStatusNew,
	WorkOrderStatusInProgress,
	WorkOrderStatusCompleted,
	WorkOrderStatusArchived,
}

// Valid reports whether s is a known status.
func (s WorkOrderStatus) Valid() bool {
	return s >= WorkOrderStatusNew && s <= WorkOrderStatusArchived
}

func (s WorkOrderStatus) String() string {
	switch s {
	case WorkOrderStatusNew:
		return "NEW"
	case WorkOrderStatusInProgress:
		return "IN_PROGRESS"
	case WorkOrderStatusCompleted:
		return "COMPLETED"
	case WorkOrderStatusArchived:
		return "ARCHIVED"
	default:
		return "UNKNOWN"
	}
}

// WorkOrder is the aggregate for reported trouble tickets.
type WorkOrder struct {
	ID             int64
	OrderNo        string
	ReporterName   string
	ContactPhone   string
	Location       string
	ProblemDesc    string
	ProblemType    *string
	Status         WorkOrderStatus
	AssignedTo     *int64
	AssignedTime   *time.Time
	ProcessingDesc *string
	SolutionType   *string
	CreatedAt      time.Time
	ModifiedAt     time.Time
	ArchivedAt     *time.Time
}

// Clone returns a deep copy so callers can diff before and after a change.
func (w *WorkOrder) Clone() *WorkOrder {
	if w == nil {
		return nil
	}
	c := *w
	c.ProblemType = cloneString(w.ProblemType)
	c.ProcessingDesc = cloneString(w.ProcessingDesc)
	c.SolutionType = cloneString(w.SolutionType)
	c.AssignedTo = cloneInt64(w.AssignedTo)
	c.AssignedTime = cloneTime(w.AssignedTime)
	c.ArchivedAt = cloneTime(w.ArchivedAt)
	return &c
}

// CompletionErrors lists the fields that must be filled before the order may be COMPLETED.
func (w *WorkOrder) CompletionErrors() []string {
	var missing []string
	if isBlank(w.ProblemType) {
		missing = append(missing, "problem_type")
	}
	if isBlank(w.ProcessingDesc) {
		missing = append(missing, "processing_desc")
	}
	if isBlank(w.SolutionType) {
		missing = append(missing, "solution_type")
	}
	return missing
}

// ApplyWriteRules recomputes derived fields of next against the previously
// stored state. Every write path of a repository runs it right before commit;
// prev is nil for inserts.
func ApplyWriteRules(prev, next *WorkOrder, now time.Time) {
	if prev == nil {
		next.CreatedAt = now
	} else {
		next.CreatedAt = prev.CreatedAt
	}
	next.ModifiedAt = now

	var (
		prevStatus   = WorkOrderStatus(-1)
		prevAssigned *int64
	)
	if prev != nil {
		prevStatus = prev.Status
		prevAssigned = prev.AssignedTo
	}

	claimed := prevStatus == WorkOrderStatusNew && next.Status == WorkOrderStatusInProgress
	if claimed || (prevAssigned == nil && next.AssignedTo != nil) {
		t := now
		next.AssignedTime = &t
	}

	if next.Status == WorkOrderStatusArchived && (prevStatus != WorkOrderStatusArchived || next.ArchivedAt == nil) {
		t := now
		next.ArchivedAt = &t
	}
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
