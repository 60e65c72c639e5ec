package eventing

import (
	"context"
	"time"

	"go.uber.org/zap"

	"iot-console/internal/observability/metrics"
)

// defaultDispatchBatch bounds one dispatch pass when the caller asks for no
// particular limit.
const defaultDispatchBatch = 50

// Dispatcher drains the onboarding outbox onto the in-process bus. The run
// orchestrator only writes events; delivery to the notify consumers happens
// here, from the background loop or the ops dispatch endpoint.
type Dispatcher struct {
	bus      EventBus
	outbox   OutboxStore
	registry *Registry
	dlq      DLQStore
	logger   *zap.Logger
}

// EventBus is the minimal publish interface.
type EventBus interface {
	Publish(ctx context.Context, event any) error
}

// OutboxStore provides access to outbox records.
type OutboxStore interface {
	ListPending(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// DLQStore records failures.
type DLQStore interface {
	RecordFailure(ctx context.Context, env Envelope, err error) error
}

// OutboxRecord represents a pending outbox entry.
type OutboxRecord struct {
	ID       string
	Envelope Envelope
}

// DispatchResult captures the outcome of a dispatch pass.
type DispatchResult struct {
	Requested int
	Claimed   int
	Sent      int
	Failed    int
	DLQ       int
}

// DispatcherOption configures the dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger attaches a logger.
func WithDispatcherLogger(logger *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher constructs a dispatcher.
func NewDispatcher(bus EventBus, outbox OutboxStore, registry *Registry, dlq DLQStore, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{bus: bus, outbox: outbox, registry: registry, dlq: dlq, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch claims up to limit pending onboarding events and delivers them.
// A record that cannot be decoded or published is marked failed and copied
// to the dead letter table; delivery continues with the rest of the batch.
func (d *Dispatcher) Dispatch(ctx context.Context, limit int) (DispatchResult, error) {
	start := time.Now()
	result := DispatchResult{Requested: limit}
	if d == nil || d.outbox == nil || d.bus == nil || d.registry == nil {
		metrics.ObserveOutboxDispatch(metrics.ResultError, time.Since(start), 0, 0, 0)
		return result, nil
	}
	if limit <= 0 {
		limit = defaultDispatchBatch
		result.Requested = limit
	}

	records, err := d.outbox.ListPending(ctx, limit)
	if err != nil {
		metrics.ObserveOutboxDispatch(metrics.ResultError, time.Since(start), 0, 0, 0)
		return result, err
	}
	result.Claimed = len(records)
	if result.Claimed == 0 {
		metrics.ObserveOutboxDispatch(metrics.ResultSuccess, time.Since(start), 0, 0, 0)
		return result, nil
	}

	var firstErr error
	for _, record := range records {
		if deliverErr := d.deliver(ctx, record); deliverErr != nil {
			result.Failed++
			if storeErr := d.quarantine(ctx, record, deliverErr); storeErr != nil {
				if firstErr == nil {
					firstErr = storeErr
				}
			} else if d.dlq != nil {
				result.DLQ++
			}
			continue
		}
		if err := d.outbox.MarkSent(ctx, record.ID); err != nil {
			result.Failed++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		result.Sent++
	}

	dispatchResult := metrics.ResultSuccess
	if firstErr != nil || result.Failed > 0 {
		dispatchResult = metrics.ResultError
	}
	metrics.ObserveOutboxDispatch(dispatchResult, time.Since(start), result.Sent, result.Failed, result.DLQ)
	return result, firstErr
}

// deliver decodes one record and hands it to the bus with the envelope on
// the context so consumers can deduplicate by event id.
func (d *Dispatcher) deliver(ctx context.Context, record OutboxRecord) error {
	payload, err := d.registry.DecodePayload(record.Envelope)
	if err != nil {
		return err
	}
	return d.bus.Publish(WithEnvelope(ctx, record.Envelope), payload)
}

// quarantine marks the record failed and copies it to the dead letter
// table. Returns the first bookkeeping error; the delivery error itself is
// already accounted for by the caller.
func (d *Dispatcher) quarantine(ctx context.Context, record OutboxRecord, cause error) error {
	d.logger.Warn("onboarding_event_undeliverable",
		zap.String("event_id", record.Envelope.EventID),
		zap.String("event_type", record.Envelope.EventType),
		zap.Error(cause))
	markErr := d.outbox.MarkFailed(ctx, record.ID)
	if d.dlq != nil {
		if err := d.dlq.RecordFailure(ctx, record.Envelope, cause); err != nil && markErr == nil {
			markErr = err
		}
	}
	return markErr
}
