package dto

import (
	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/service"
)

// CreateWorkOrderRequest is the intake payload.
type CreateWorkOrderRequest struct {
	ReporterName string `json:"reporter_name"`
	ContactPhone string `json:"contact_phone"`
	Location     string `json:"location"`
	ProblemDesc  string `json:"problem_desc"`
}

// UpdateWorkOrderRequest carries a partial update. Omitted fields are unchanged.
type UpdateWorkOrderRequest struct {
	Status         *int    `json:"status"`
	ProblemType    *string `json:"problem_type"`
	ProcessingDesc *string `json:"processing_desc"`
	SolutionType   *string `json:"solution_type"`
}

// Patch converts the request into a service patch.
func (r UpdateWorkOrderRequest) Patch() service.WorkOrderPatch {
	patch := service.WorkOrderPatch{
		ProblemType:    r.ProblemType,
		ProcessingDesc: r.ProcessingDesc,
		SolutionType:   r.SolutionType,
	}
	if r.Status != nil {
		status := domain.WorkOrderStatus(*r.Status)
		patch.Status = &status
	}
	return patch
}

// StaffInfo identifies the assignee of a work order.
type StaffInfo struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

// WorkOrderResponse is the wire form of a work order.
type WorkOrderResponse struct {
	ID             int64      `json:"id"`
	OrderNo        string     `json:"order_no"`
	ReporterName   string     `json:"reporter_name"`
	ContactPhone   string     `json:"contact_phone"`
	Location       string     `json:"location"`
	ProblemDesc    string     `json:"problem_desc"`
	ProblemType    *string    `json:"problem_type"`
	Status         int        `json:"status"`
	AssignedTo     *StaffInfo `json:"assigned_to"`
	AssignedTime   *Timestamp `json:"assigned_time"`
	ProcessingDesc *string    `json:"processing_desc"`
	SolutionType   *string    `json:"solution_type"`
	CreatedAt      Timestamp  `json:"created_at"`
	ModifiedAt     Timestamp  `json:"modified_at"`
	ArchivedAt     *Timestamp `json:"archived_at"`
}

// NewWorkOrderResponse builds the response. Assignees missing from staff are
// reported by id only.
func NewWorkOrderResponse(wo *domain.WorkOrder, staff map[int64]*domain.StaffMember) WorkOrderResponse {
	resp := WorkOrderResponse{
		ID:             wo.ID,
		OrderNo:        wo.OrderNo,
		ReporterName:   wo.ReporterName,
		ContactPhone:   wo.ContactPhone,
		Location:       wo.Location,
		ProblemDesc:    wo.ProblemDesc,
		ProblemType:    wo.ProblemType,
		Status:         int(wo.Status),
		AssignedTime:   NewTimestamp(wo.AssignedTime),
		ProcessingDesc: wo.ProcessingDesc,
		SolutionType:   wo.SolutionType,
		CreatedAt:      Timestamp(wo.CreatedAt),
		ModifiedAt:     Timestamp(wo.ModifiedAt),
		ArchivedAt:     NewTimestamp(wo.ArchivedAt),
	}
	if wo.AssignedTo != nil {
		info := &StaffInfo{ID: *wo.AssignedTo}
		if member, ok := staff[*wo.AssignedTo]; ok {
			info.Username = member.Username
			info.FullName = member.FullName
		}
		resp.AssignedTo = info
	}
	return resp
}

// NewWorkOrderListResponse maps a list of work orders.
func NewWorkOrderListResponse(orders []domain.WorkOrder, staff map[int64]*domain.StaffMember) []WorkOrderResponse {
	resp := make([]WorkOrderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, NewWorkOrderResponse(&orders[i], staff))
	}
	return resp
}

// StatisticsResponse summarizes work orders. Status counts are keyed by status code.
type StatisticsResponse struct {
	Total  int64            `json:"total"`
	Status map[int]int64    `json:"status"`
	ByType map[string]int64 `json:"by_type"`
}

// NewStatisticsResponse maps service statistics.
func NewStatisticsResponse(stats *service.Statistics) StatisticsResponse {
	resp := StatisticsResponse{
		Total:  stats.Total,
		Status: make(map[int]int64, len(stats.ByStatus)),
		ByType: stats.ByType,
	}
	for status, count := range stats.ByStatus {
		resp.Status[int(status)] = count
	}
	return resp
}

// ArchiveResponse reports an on-demand archive run.
type ArchiveResponse struct {
	Archived int    `json:"archived"`
	Message  string `json:"message"`
}
