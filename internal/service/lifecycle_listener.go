package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/workorder-service/internal/events"
	"github.com/spec-kit/workorder-service/internal/observability"
)

// LifecycleListener records lifecycle events in the log and the metrics counters.
type LifecycleListener struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewLifecycleListener creates the listener.
func NewLifecycleListener(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *LifecycleListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleListener{
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}
}

// RegisterHandlers subscribes to events.
func (l *LifecycleListener) RegisterHandlers() {
	if l.dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventWorkOrderCreated,
		events.EventWorkOrderClaimed,
		events.EventWorkOrderUpdated,
		events.EventWorkOrderStatusChanged,
		events.EventWorkOrderArchived,
		events.EventWorkOrderDeleted,
	} {
		l.dispatcher.Subscribe(eventType, l.handle)
	}
}

func (l *LifecycleListener) handle(_ context.Context, event events.Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.Int64("work_order_id", event.WorkOrderID),
		zap.String("order_no", event.OrderNo),
	}
	if event.Actor.StaffID != nil {
		fields = append(fields, zap.Int64("staff_id", *event.Actor.StaffID))
	}
	if event.Actor.System != "" {
		fields = append(fields, zap.String("system", event.Actor.System))
	}
	if event.Payload != nil {
		fields = append(fields, zap.Any("payload", event.Payload))
	}
	l.logger.Info(string(event.Type), fields...)
	if l.metrics != nil {
		l.metrics.RecordLifecycle(string(event.Type))
	}
	return nil
}
