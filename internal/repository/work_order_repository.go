package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/workorder-service/internal/domain"
)

// WorkOrderFilter captures listing and statistics parameters.
type WorkOrderFilter struct {
	Status         *domain.WorkOrderStatus
	StatusLessThan *domain.WorkOrderStatus
	AssignedTo     *int64
	ProblemType    *string
	OrderNo        *string
	ReporterName   *string
	ContactPhone   *string
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
}

// WorkOrderStats aggregates counts for a filtered set of work orders.
type WorkOrderStats struct {
	Total    int64
	ByStatus map[domain.WorkOrderStatus]int64
	// ByProblemType is keyed by problem type name; "" holds unclassified orders.
	ByProblemType map[string]int64
}

// MutateFunc edits a locked copy of a work order. Returning an error aborts the write.
type MutateFunc func(next *domain.WorkOrder) error

// WorkOrderRepository encapsulates work order persistence.
type WorkOrderRepository interface {
	Create(ctx context.Context, wo *domain.WorkOrder) error
	GetByID(ctx context.Context, id int64) (*domain.WorkOrder, error)
	LatestOrderNo(ctx context.Context, prefix string) (string, error)
	Claim(ctx context.Context, id, staffID int64) (*domain.WorkOrder, error)
	Mutate(ctx context.Context, id int64, fn MutateFunc) (*domain.WorkOrder, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter WorkOrderFilter) ([]domain.WorkOrder, error)
	Stats(ctx context.Context, filter WorkOrderFilter) (*WorkOrderStats, error)
	ListArchivable(ctx context.Context, cutoff time.Time) ([]int64, error)
}

const workOrderColumns = `id, order_no, reporter_name, contact_phone, location, problem_desc, problem_type,
               status, assigned_to, assigned_time, processing_desc, solution_type, created_at, modified_at, archived_at`

type workOrderRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewWorkOrderRepository instantiates the pgx backed repository.
func NewWorkOrderRepository(pool *pgxpool.Pool) WorkOrderRepository {
	return &workOrderRepository{pool: pool, now: time.Now}
}

func (r *workOrderRepository) Create(ctx context.Context, wo *domain.WorkOrder) error {
	domain.ApplyWriteRules(nil, wo, r.now())

	const query = `
        INSERT INTO work_orders (order_no, reporter_name, contact_phone, location, problem_desc, problem_type,
            status, assigned_to, assigned_time, processing_desc, solution_type, created_at, modified_at, archived_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
        RETURNING id`
	err := r.pool.QueryRow(ctx, query,
		wo.OrderNo,
		wo.ReporterName,
		wo.ContactPhone,
		wo.Location,
		wo.ProblemDesc,
		wo.ProblemType,
		int(wo.Status),
		wo.AssignedTo,
		wo.AssignedTime,
		wo.ProcessingDesc,
		wo.SolutionType,
		wo.CreatedAt,
		wo.ModifiedAt,
		wo.ArchivedAt,
	).Scan(&wo.ID)
	if isUniqueViolation(err) {
		return ErrDuplicateOrderNo
	}
	return err
}

func (r *workOrderRepository) GetByID(ctx context.Context, id int64) (*domain.WorkOrder, error) {
	query := `SELECT ` + workOrderColumns + ` FROM work_orders WHERE id=$1`
	return scanWorkOrder(r.pool.QueryRow(ctx, query, id))
}

func (r *workOrderRepository) LatestOrderNo(ctx context.Context, prefix string) (string, error) {
	// Ordering by length first keeps 4+ digit counters above 999.
	const query = `
        SELECT order_no FROM work_orders
        WHERE starts_with(order_no, $1)
        ORDER BY LENGTH(order_no) DESC, order_no DESC
        LIMIT 1`
	var orderNo string
	err := r.pool.QueryRow(ctx, query, prefix).Scan(&orderNo)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return orderNo, err
}

func (r *workOrderRepository) Claim(ctx context.Context, id, staffID int64) (*domain.WorkOrder, error) {
	prev := &domain.WorkOrder{ID: id, Status: domain.WorkOrderStatusNew}
	next := prev.Clone()
	next.Status = domain.WorkOrderStatusInProgress
	next.AssignedTo = &staffID
	domain.ApplyWriteRules(prev, next, r.now())

	query := `
        UPDATE work_orders SET status=$1, assigned_to=$2, assigned_time=$3, modified_at=$4
        WHERE id=$5 AND status=$6 AND assigned_to IS NULL
        RETURNING ` + workOrderColumns
	claimed, err := scanWorkOrder(r.pool.QueryRow(ctx, query,
		int(next.Status),
		next.AssignedTo,
		next.AssignedTime,
		next.ModifiedAt,
		id,
		int(domain.WorkOrderStatusNew),
	))
	if err == nil {
		return claimed, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	// No row matched the guard: find out which precondition failed.
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, claimRejection(current)
}

func (r *workOrderRepository) Mutate(ctx context.Context, id int64, fn MutateFunc) (*domain.WorkOrder, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `SELECT ` + workOrderColumns + ` FROM work_orders WHERE id=$1 FOR UPDATE`
	current, err := scanWorkOrder(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	domain.ApplyWriteRules(current, next, r.now())

	const update = `
        UPDATE work_orders SET problem_type=$1, status=$2, assigned_to=$3, assigned_time=$4,
            processing_desc=$5, solution_type=$6, modified_at=$7, archived_at=$8
        WHERE id=$9`
	if _, err := tx.Exec(ctx, update,
		next.ProblemType,
		int(next.Status),
		next.AssignedTo,
		next.AssignedTime,
		next.ProcessingDesc,
		next.SolutionType,
		next.ModifiedAt,
		next.ArchivedAt,
		next.ID,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return next, nil
}

func (r *workOrderRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM work_orders WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *workOrderRepository) List(ctx context.Context, filter WorkOrderFilter) ([]domain.WorkOrder, error) {
	where, args := buildWorkOrderWhere(filter)
	query := fmt.Sprintf(`SELECT %s FROM work_orders WHERE %s ORDER BY created_at DESC, id DESC`, workOrderColumns, where)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.WorkOrder{}
	for rows.Next() {
		wo, err := scanWorkOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *wo)
	}
	return result, rows.Err()
}

func (r *workOrderRepository) Stats(ctx context.Context, filter WorkOrderFilter) (*WorkOrderStats, error) {
	where, args := buildWorkOrderWhere(filter)
	query := fmt.Sprintf(`
        SELECT status, COALESCE(NULLIF(TRIM(problem_type), ''), ''), COUNT(*)
        FROM work_orders WHERE %s
        GROUP BY 1, 2`, where)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := newWorkOrderStats()
	for rows.Next() {
		var (
			status      int
			problemType string
			count       int64
		)
		if err := rows.Scan(&status, &problemType, &count); err != nil {
			return nil, err
		}
		stats.add(domain.WorkOrderStatus(status), problemType, count)
	}
	return stats, rows.Err()
}

func (r *workOrderRepository) ListArchivable(ctx context.Context, cutoff time.Time) ([]int64, error) {
	const query = `
        SELECT id FROM work_orders
        WHERE status=$1 AND archived_at IS NULL AND modified_at < $2
        ORDER BY id`
	rows, err := r.pool.Query(ctx, query, int(domain.WorkOrderStatusCompleted), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func buildWorkOrderWhere(filter WorkOrderFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Status != nil {
		args = append(args, int(*filter.Status))
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	} else if filter.StatusLessThan != nil {
		args = append(args, int(*filter.StatusLessThan))
		clauses = append(clauses, fmt.Sprintf("status<$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if filter.ProblemType != nil && *filter.ProblemType != "" {
		args = append(args, *filter.ProblemType)
		clauses = append(clauses, fmt.Sprintf("problem_type=$%d", len(args)))
	}
	for _, sub := range []struct {
		column string
		term   *string
	}{
		{"order_no", filter.OrderNo},
		{"reporter_name", filter.ReporterName},
		{"contact_phone", filter.ContactPhone},
	} {
		if sub.term == nil || strings.TrimSpace(*sub.term) == "" {
			continue
		}
		args = append(args, strings.TrimSpace(*sub.term))
		clauses = append(clauses, fmt.Sprintf("POSITION(LOWER($%d) IN LOWER(%s)) > 0", len(args), sub.column))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func scanWorkOrder(row pgx.Row) (*domain.WorkOrder, error) {
	var (
		wo     domain.WorkOrder
		status int
	)
	if err := row.Scan(
		&wo.ID,
		&wo.OrderNo,
		&wo.ReporterName,
		&wo.ContactPhone,
		&wo.Location,
		&wo.ProblemDesc,
		&wo.ProblemType,
		&status,
		&wo.AssignedTo,
		&wo.AssignedTime,
		&wo.ProcessingDesc,
		&wo.SolutionType,
		&wo.CreatedAt,
		&wo.ModifiedAt,
		&wo.ArchivedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	wo.Status = domain.WorkOrderStatus(status)
	return &wo, nil
}

func claimRejection(current *domain.WorkOrder) error {
	if current.Status != domain.WorkOrderStatusNew {
		return ErrInvalidState
	}
	if current.AssignedTo != nil {
		return ErrAlreadyClaimed
	}
	return ErrInvalidState
}

func newWorkOrderStats() *WorkOrderStats {
	stats := &WorkOrderStats{
		ByStatus:      make(map[domain.WorkOrderStatus]int64, len(domain.AllWorkOrderStatuses)),
		ByProblemType: make(map[string]int64),
	}
	for _, status := range domain.AllWorkOrderStatuses {
		stats.ByStatus[status] = 0
	}
	return stats
}

func (s *WorkOrderStats) add(status domain.WorkOrderStatus, problemType string, count int64) {
	s.Total += count
	s.ByStatus[status] += count
	s.ByProblemType[problemType] += count
}
