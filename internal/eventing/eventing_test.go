package eventing

import (
	"context"
	"sync"
	"testing"
	"time"

	"iot-console/internal/eventing/eventbus"
	onboardingapp "iot-console/internal/onboarding/application"
)

type memOutbox struct {
	mu      sync.Mutex
	records []OutboxRecord
	sent    map[string]bool
	failed  map[string]int
}

func newMemOutbox() *memOutbox {
	return &memOutbox{sent: make(map[string]bool), failed: make(map[string]int)}
}

func (m *memOutbox) Insert(_ context.Context, env Envelope) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, OutboxRecord{ID: env.EventID, Envelope: env})
	return env.EventID, nil
}

func (m *memOutbox) ListPending(_ context.Context, limit int) ([]OutboxRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []OutboxRecord
	for _, record := range m.records {
		if m.sent[record.ID] {
			continue
		}
		out = append(out, record)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memOutbox) MarkSent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[id] = true
	return nil
}

func (m *memOutbox) MarkFailed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[id]++
	return nil
}

type memDLQ struct {
	mu       sync.Mutex
	failures []Envelope
}

func (m *memDLQ) RecordFailure(_ context.Context, env Envelope, _ error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, env)
	return nil
}

func TestBuildEnvelopeUsesEventWireType(t *testing.T) {
	event := onboardingapp.DeviceOnboarded{
		RunID:      "run-1",
		DeviceID:   "dev-1",
		RuleCount:  4,
		OccurredAt: time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC),
	}
	env, err := BuildEnvelope(event, Meta{OrganizationID: "org-1"})
	if err != nil {
		t.Fatalf("BuildEnvelope: %v", err)
	}
	if env.EventType != "onboarding.device_onboarded" {
		t.Fatalf("event type = %q", env.EventType)
	}
	if env.EventID == "" {
		t.Fatal("empty event id")
	}
	if !env.OccurredAt.Equal(event.OccurredAt) {
		t.Fatalf("occurred at = %v, want event's own timestamp", env.OccurredAt)
	}
	if env.OrganizationID != "org-1" {
		t.Fatalf("organization = %q", env.OrganizationID)
	}
}

func TestRegistryDecodeRoundTrip(t *testing.T) {
	registry := NewRegistry()
	registry.Register(onboardingapp.DeviceOnboarded{})

	original := onboardingapp.DeviceOnboarded{RunID: "run-1", DeviceID: "dev-1", RuleCount: 2}
	env, err := BuildEnvelope(original, Meta{})
	if err != nil {
		t.Fatalf("BuildEnvelope: %v", err)
	}
	decoded, err := registry.DecodePayload(env)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	event, ok := decoded.(onboardingapp.DeviceOnboarded)
	if !ok {
		t.Fatalf("decoded type = %T", decoded)
	}
	if event.RunID != "run-1" || event.RuleCount != 2 {
		t.Fatalf("decoded = %+v", event)
	}
}

func TestRegistryUnknownType(t *testing.T) {
	registry := NewRegistry()
	if _, err := registry.DecodePayload(Envelope{EventType: "nobody.registered"}); err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

func TestPublishThenDispatchDeliversToSubscriber(t *testing.T) {
	outbox := newMemOutbox()
	bus := eventbus.NewInMemoryBus()
	registry := NewRegistry()
	registry.Register(onboardingapp.DeviceOnboarded{})
	publisher := NewPublisher(outbox, "org-1", bus, nil)
	dispatcher := NewDispatcher(bus, outbox, registry, &memDLQ{})

	var received []onboardingapp.DeviceOnboarded
	bus.Subscribe(eventbus.EventTypeOf[onboardingapp.DeviceOnboarded](), func(_ context.Context, event any) error {
		received = append(received, event.(onboardingapp.DeviceOnboarded))
		return nil
	})

	ctx := context.Background()
	if err := publisher.Publish(ctx, onboardingapp.DeviceOnboarded{RunID: "run-1", DeviceID: "dev-1"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	result, err := dispatcher.Dispatch(ctx, 10)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if result.Sent != 1 || result.Failed != 0 {
		t.Fatalf("dispatch result = %+v", result)
	}
	if len(received) != 1 || received[0].DeviceID != "dev-1" {
		t.Fatalf("received = %+v", received)
	}

	// Nothing left to dispatch.
	again, err := dispatcher.Dispatch(ctx, 10)
	if err != nil {
		t.Fatalf("second Dispatch: %v", err)
	}
	if again.Claimed != 0 {
		t.Fatalf("claimed = %d after drain", again.Claimed)
	}
}

func TestDispatchUnknownTypeGoesToDLQ(t *testing.T) {
	outbox := newMemOutbox()
	bus := eventbus.NewInMemoryBus()
	dlq := &memDLQ{}
	dispatcher := NewDispatcher(bus, outbox, NewRegistry(), dlq)

	env, err := BuildEnvelope(onboardingapp.OnboardingDegraded{RunID: "run-1"}, Meta{})
	if err != nil {
		t.Fatalf("BuildEnvelope: %v", err)
	}
	if _, err := outbox.Insert(context.Background(), env); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	result, err := dispatcher.Dispatch(context.Background(), 10)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if result.Failed != 1 || result.DLQ != 1 {
		t.Fatalf("result = %+v, want one failure in DLQ", result)
	}
	if len(dlq.failures) != 1 || dlq.failures[0].EventType != "onboarding.degraded" {
		t.Fatalf("dlq = %+v", dlq.failures)
	}
}

func TestIdempotentHandlerSkipsDuplicates(t *testing.T) {
	store := &memProcessed{seen: make(map[string]bool)}
	calls := 0
	handler := Idempotent("test-consumer", func(_ context.Context, _ any) error {
		calls++
		return nil
	}, store)

	env := Envelope{EventID: "evt-1", EventType: "onboarding.device_onboarded", OccurredAt: time.Now().UTC()}
	ctx := WithEnvelope(context.Background(), env)
	if err := handler(ctx, onboardingapp.DeviceOnboarded{}); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := handler(ctx, onboardingapp.DeviceOnboarded{}); err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if calls != 1 {
		t.Fatalf("handler calls = %d, want 1", calls)
	}
}

type memProcessed struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (m *memProcessed) HasProcessed(_ context.Context, eventID, consumerName string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen[eventID+"/"+consumerName], nil
}

func (m *memProcessed) MarkProcessed(_ context.Context, eventID, consumerName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[eventID+"/"+consumerName] = true
	return nil
}
