package events

import (
	"time"

	"github.com/spec-kit/workorder-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventWorkOrderCreated       EventType = "work_order_created"
	EventWorkOrderClaimed       EventType = "work_order_claimed"
	EventWorkOrderUpdated       EventType = "work_order_updated"
	EventWorkOrderStatusChanged EventType = "work_order_status_changed"
	EventWorkOrderArchived      EventType = "work_order_archived"
	EventWorkOrderDeleted       EventType = "work_order_deleted"
)

// Actor encapsulates actor metadata for an event. A nil StaffID means the
// intake credential or the archive sweeper acted.
type Actor struct {
	StaffID *int64 `json:"staff_id,omitempty"`
	System  string `json:"system,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	WorkOrderID int64     `json:"work_order_id"`
	OrderNo     string    `json:"order_no"`
	Actor       Actor     `json:"actor"`
	Timestamp   time.Time `json:"timestamp"`
	Payload     any       `json:"payload,omitempty"`
}

// StatusChangedPayload payload.
type StatusChangedPayload struct {
	OldStatus domain.WorkOrderStatus `json:"old_status"`
	NewStatus domain.WorkOrderStatus `json:"new_status"`
}

// ClaimedPayload payload.
type ClaimedPayload struct {
	AssignedTo int64 `json:"assigned_to"`
}
