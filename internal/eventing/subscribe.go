package eventing

import (
	"context"
	"reflect"
	"time"

	"iot-console/internal/eventing/eventbus"
	"iot-console/internal/observability/metrics"
)

// ProcessedStore provides idempotency checks.
type ProcessedStore interface {
	HasProcessed(ctx context.Context, eventID, consumerName string) (bool, error)
	MarkProcessed(ctx context.Context, eventID, consumerName string) error
}

// Subscribe registers handler for eventType, deduplicated per consumer when
// a store is given. The background loop and the ops dispatch endpoint can
// both drain the same outbox, so notify consumers must tolerate redelivery.
func Subscribe(bus eventbus.EventBus, eventType, consumerName string, handler eventbus.EventHandler, store ProcessedStore) {
	if store == nil {
		bus.Subscribe(eventType, handler)
		return
	}
	bus.Subscribe(eventType, Idempotent(consumerName, handler, store))
}

// Idempotent wraps handler so each event is handled at most once per
// consumer. The event is marked processed only after the handler succeeds,
// so a failed delivery is retried on the next dispatch pass.
func Idempotent(consumer string, handler eventbus.EventHandler, store ProcessedStore) eventbus.EventHandler {
	return func(ctx context.Context, event any) error {
		env, ok := EnvelopeFromContext(ctx)
		if !ok || env.EventID == "" {
			// Published without an envelope, nothing to deduplicate on.
			return handler(ctx, event)
		}
		seen, err := store.HasProcessed(ctx, env.EventID, consumer)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}
		if occurred := occurredAt(env, event); !occurred.IsZero() {
			metrics.ObserveConsumerLag(consumer, time.Since(occurred))
		}
		if err := handler(ctx, event); err != nil {
			return err
		}
		return store.MarkProcessed(ctx, env.EventID, consumer)
	}
}

// occurredAt prefers the envelope timestamp and falls back to the event's
// own OccurredAt field for payloads published before envelopes carried one.
func occurredAt(env Envelope, event any) time.Time {
	if !env.OccurredAt.IsZero() {
		return env.OccurredAt
	}
	return eventOccurredAt(event)
}

// eventOccurredAt reads an OccurredAt time.Time field off the event payload
// via reflection. Zero when the payload has no such field.
func eventOccurredAt(event any) time.Time {
	if event == nil {
		return time.Time{}
	}
	value := reflect.ValueOf(event)
	for value.Kind() == reflect.Ptr {
		if value.IsNil() {
			return time.Time{}
		}
		value = value.Elem()
	}
	if value.Kind() != reflect.Struct {
		return time.Time{}
	}
	field := value.FieldByName("OccurredAt")
	if !field.IsValid() {
		return time.Time{}
	}
	if t, ok := field.Interface().(time.Time); ok {
		return t
	}
	return time.Time{}
}
