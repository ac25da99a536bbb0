package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when the referenced row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateOrderNo signals a lost race on order number allocation.
	ErrDuplicateOrderNo = errors.New("duplicate order number")
	// ErrDuplicateName is returned when a unique name already exists.
	ErrDuplicateName = errors.New("duplicate name")
	// ErrInvalidState is returned by Claim when the work order is no longer NEW.
	ErrInvalidState = errors.New("invalid state")
	// ErrAlreadyClaimed is returned by Claim when the work order already has an assignee.
	ErrAlreadyClaimed = errors.New("already claimed")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
