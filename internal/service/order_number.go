package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spec-kit/workorder-service/internal/repository"
)

const orderCounterWidth = 3

// OrderNumberAllocator hands out PREFIX-YYYYMMDD-NNN order numbers.
type OrderNumberAllocator struct {
	orders repository.WorkOrderRepository
	prefix string
}

// NewOrderNumberAllocator creates an allocator for the given literal prefix.
func NewOrderNumberAllocator(orders repository.WorkOrderRepository, prefix string) *OrderNumberAllocator {
	return &OrderNumberAllocator{orders: orders, prefix: prefix}
}

// DayPrefix returns the order number prefix shared by all orders created on day.
func (a *OrderNumberAllocator) DayPrefix(day time.Time) string {
	return fmt.Sprintf("%s-%s-", a.prefix, day.Format("20060102"))
}

// Next returns the successor of the greatest order number allocated on today.
// Counters past 999 widen to four or more digits. Uniqueness is enforced by
// the store; callers retry on ErrDuplicateOrderNo.
func (a *OrderNumberAllocator) Next(ctx context.Context, today time.Time) (string, error) {
	dayPrefix := a.DayPrefix(today)
	latest, err := a.orders.LatestOrderNo(ctx, dayPrefix)
	if err != nil {
		return "", err
	}

	next := 1
	if latest != "" {
		counter, err := strconv.Atoi(strings.TrimPrefix(latest, dayPrefix))
		if err != nil {
			return "", fmt.Errorf("parse order number %q: %w", latest, err)
		}
		next = counter + 1
	}
	return fmt.Sprintf("%s%0*d", dayPrefix, orderCounterWidth, next), nil
}
