package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/workorder-service/internal/domain"
)

// SettingsRepository persists the single system settings row.
type SettingsRepository interface {
	EnsureDefault(ctx context.Context, archiveHours int) error
	Get(ctx context.Context) (*domain.SystemSettings, error)
	SetArchiveHours(ctx context.Context, hours int) (*domain.SystemSettings, error)
}

type settingsRepository struct {
	pool *pgxpool.Pool
}

// NewSettingsRepository builds repository.
func NewSettingsRepository(pool *pgxpool.Pool) SettingsRepository {
	return &settingsRepository{pool: pool}
}

func (r *settingsRepository) EnsureDefault(ctx context.Context, archiveHours int) error {
	const query = `
        INSERT INTO system_settings (id, archive_hours, created_at, modified_at)
        VALUES (1, $1, NOW(), NOW())
        ON CONFLICT (id) DO NOTHING`
	_, err := r.pool.Exec(ctx, query, archiveHours)
	return err
}

func (r *settingsRepository) Get(ctx context.Context) (*domain.SystemSettings, error) {
	const query = `SELECT archive_hours, created_at, modified_at FROM system_settings WHERE id=1`
	var settings domain.SystemSettings
	if err := r.pool.QueryRow(ctx, query).Scan(&settings.ArchiveHours, &settings.CreatedAt, &settings.ModifiedAt); err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &settings, nil
}

func (r *settingsRepository) SetArchiveHours(ctx context.Context, hours int) (*domain.SystemSettings, error) {
	const query = `
        INSERT INTO system_settings (id, archive_hours, created_at, modified_at)
        VALUES (1, $1, NOW(), NOW())
        ON CONFLICT (id) DO UPDATE SET archive_hours=EXCLUDED.archive_hours, modified_at=NOW()
        RETURNING archive_hours, created_at, modified_at`
	var settings domain.SystemSettings
	if err := r.pool.QueryRow(ctx, query, hours).Scan(&settings.ArchiveHours, &settings.CreatedAt, &settings.ModifiedAt); err != nil {
		return nil, err
	}
	return &settings, nil
}
