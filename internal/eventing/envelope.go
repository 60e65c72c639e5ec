// Package eventing carries domain events through a transactional outbox to
// the in-process bus, with idempotent consumers and a dead letter queue.
package eventing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"iot-console/internal/eventing/eventbus"
)

// Envelope wraps a serialized event with delivery metadata.
type Envelope struct {
	EventID        string          `json:"eventId"`
	EventType      string          `json:"eventType"`
	OrganizationID string          `json:"organizationId,omitempty"`
	OccurredAt     time.Time       `json:"occurredAt"`
	Payload        json.RawMessage `json:"payload"`
}

// Meta is per-publish metadata, usually derived from the request context.
type Meta struct {
	OrganizationID string
	OccurredAt     time.Time
}

type contextKey string

const (
	envelopeKey contextKey = "eventing.envelope"
	orgKey      contextKey = "eventing.organization"
)

// WithOrganization stamps the organization onto the context for publishing.
func WithOrganization(ctx context.Context, organizationID string) context.Context {
	return context.WithValue(ctx, orgKey, organizationID)
}

// MetaFromContext derives publish metadata, falling back to the given
// organization when the context carries none.
func MetaFromContext(ctx context.Context, fallbackOrganizationID string) Meta {
	meta := Meta{OrganizationID: fallbackOrganizationID, OccurredAt: time.Now().UTC()}
	if ctx != nil {
		if org, ok := ctx.Value(orgKey).(string); ok && org != "" {
			meta.OrganizationID = org
		}
	}
	return meta
}

// WithEnvelope attaches the envelope to the consumer context.
func WithEnvelope(ctx context.Context, env Envelope) context.Context {
	return context.WithValue(ctx, envelopeKey, env)
}

// EnvelopeFromContext returns the envelope attached by the dispatcher.
func EnvelopeFromContext(ctx context.Context) (Envelope, bool) {
	if ctx == nil {
		return Envelope{}, false
	}
	env, ok := ctx.Value(envelopeKey).(Envelope)
	return env, ok
}

// BuildEnvelope serializes an event into an envelope. The event's own
// OccurredAt wins over the meta timestamp when set.
func BuildEnvelope(event any, meta Meta) (Envelope, error) {
	if event == nil {
		return Envelope{}, errors.New("eventing: nil event")
	}
	eventType := eventbus.EventType(event)
	if eventType == "" {
		return Envelope{}, errors.New("eventing: cannot determine event type")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, err
	}
	occurredAt := meta.OccurredAt
	if t := eventOccurredAt(event); !t.IsZero() {
		occurredAt = t
	}
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	return Envelope{
		EventID:        uuid.NewString(),
		EventType:      eventType,
		OrganizationID: meta.OrganizationID,
		OccurredAt:     occurredAt.UTC(),
		Payload:        payload,
	}, nil
}
