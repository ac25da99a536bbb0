package dto

import "github.com/spec-kit/workorder-service/internal/domain"

// SystemSettingsResponse exposes the archive window.
type SystemSettingsResponse struct {
	ArchiveHours int        `json:"archive_hours"`
	CreatedAt    *Timestamp `json:"created_at,omitempty"`
	ModifiedAt   *Timestamp `json:"modified_at,omitempty"`
}

// NewSystemSettingsResponse maps settings; zero times are omitted.
func NewSystemSettingsResponse(settings *domain.SystemSettings) SystemSettingsResponse {
	resp := SystemSettingsResponse{ArchiveHours: settings.ArchiveHours}
	if !settings.CreatedAt.IsZero() {
		resp.CreatedAt = NewTimestamp(&settings.CreatedAt)
	}
	if !settings.ModifiedAt.IsZero() {
		resp.ModifiedAt = NewTimestamp(&settings.ModifiedAt)
	}
	return resp
}

// UpdateSystemSettingsRequest payload.
type UpdateSystemSettingsRequest struct {
	ArchiveHours *int `json:"archive_hours"`
}

// CatalogEntryRequest names a catalog entry to create.
type CatalogEntryRequest struct {
	Name string `json:"name"`
}

// CatalogEntryResponse is one catalog entry.
type CatalogEntryResponse struct {
	Name string `json:"name"`
}

// NewCatalogListResponse maps catalog names.
func NewCatalogListResponse(names []string) []CatalogEntryResponse {
	resp := make([]CatalogEntryResponse, 0, len(names))
	for _, name := range names {
		resp = append(resp, CatalogEntryResponse{Name: name})
	}
	return resp
}
