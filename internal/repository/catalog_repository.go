package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/workorder-service/internal/domain"
)

// CatalogRepository stores the problem type and solution type name lists.
type CatalogRepository interface {
	List(ctx context.Context, kind domain.CatalogKind) ([]string, error)
	Exists(ctx context.Context, kind domain.CatalogKind, name string) (bool, error)
	Create(ctx context.Context, kind domain.CatalogKind, name string) error
	Delete(ctx context.Context, kind domain.CatalogKind, name string) error
}

var catalogTables = map[domain.CatalogKind]string{
	domain.CatalogProblemType:  "problem_types",
	domain.CatalogSolutionType: "solution_types",
}

type catalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository builds repository.
func NewCatalogRepository(pool *pgxpool.Pool) CatalogRepository {
	return &catalogRepository{pool: pool}
}

func (r *catalogRepository) List(ctx context.Context, kind domain.CatalogKind) ([]string, error) {
	table, err := catalogTable(kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT name FROM %s ORDER BY name`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *catalogRepository) Exists(ctx context.Context, kind domain.CatalogKind, name string) (bool, error) {
	table, err := catalogTable(kind)
	if err != nil {
		return false, err
	}
	var exists bool
	err = r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE name=$1)`, table), name).Scan(&exists)
	return exists, err
}

func (r *catalogRepository) Create(ctx context.Context, kind domain.CatalogKind, name string) error {
	table, err := catalogTable(kind)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, fmt.Sprintf(`INSERT INTO %s (name) VALUES ($1)`, table), name)
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	return err
}

func (r *catalogRepository) Delete(ctx context.Context, kind domain.CatalogKind, name string) error {
	table, err := catalogTable(kind)
	if err != nil {
		return err
	}
	cmd, err := r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE name=$1`, table), name)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func catalogTable(kind domain.CatalogKind) (string, error) {
	table, ok := catalogTables[kind]
	if !ok {
		return "", fmt.Errorf("unknown catalog kind %q", kind)
	}
	return table, nil
}
