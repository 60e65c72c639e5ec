package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"iot-console/internal/eventing"
)

const dlqUpsertQuery = `
INSERT INTO dead_letter_events
	(event_id, event_type, payload, error, first_seen_at, last_seen_at, attempts)
VALUES ($1, $2, $3, $4, $5, $5, 1)
ON CONFLICT (event_id) DO UPDATE SET
	event_type   = EXCLUDED.event_type,
	payload      = EXCLUDED.payload,
	error        = EXCLUDED.error,
	last_seen_at = EXCLUDED.last_seen_at,
	attempts     = dead_letter_events.attempts + 1`

// DLQStore parks onboarding events the dispatcher could not deliver. Rows
// are keyed by event id so repeated dispatch passes bump attempts instead
// of piling up duplicates; operators replay or discard them by hand.
type DLQStore struct {
	db *sql.DB
}

// NewDLQStore constructs a DLQ store.
func NewDLQStore(db *sql.DB) *DLQStore {
	return &DLQStore{db: db}
}

// RecordFailure upserts the failed event with the delivery error. The full
// envelope is kept as the payload so a replay tool can re-enqueue it.
func (s *DLQStore) RecordFailure(ctx context.Context, env eventing.Envelope, cause error) error {
	if s == nil || s.db == nil {
		return errors.New("eventing: dead letter store not configured")
	}
	if env.EventID == "" {
		return errors.New("eventing: dead letter record needs an event id")
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	_, err = s.db.ExecContext(ctx, dlqUpsertQuery,
		env.EventID, env.EventType, payload, message, time.Now().UTC())
	return err
}
