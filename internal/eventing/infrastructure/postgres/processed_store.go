package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const (
	processedLookupQuery = `
SELECT 1 FROM processed_events WHERE event_id = $1 AND consumer_name = $2`

	processedInsertQuery = `
INSERT INTO processed_events (event_id, consumer_name, processed_at)
VALUES ($1, $2, $3)
ON CONFLICT (event_id, consumer_name) DO NOTHING`
)

// ProcessedStore tracks which onboarding events each notify consumer has
// already handled. One row per (event, consumer) pair.
type ProcessedStore struct {
	db *sql.DB
}

// NewProcessedStore constructs a processed store.
func NewProcessedStore(db *sql.DB) *ProcessedStore {
	return &ProcessedStore{db: db}
}

// HasProcessed reports whether the consumer already handled the event.
func (s *ProcessedStore) HasProcessed(ctx context.Context, eventID, consumerName string) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("eventing: processed store not configured")
	}
	if eventID == "" || consumerName == "" {
		return false, errors.New("eventing: processed lookup needs event id and consumer")
	}
	var one int
	err := s.db.QueryRowContext(ctx, processedLookupQuery, eventID, consumerName).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MarkProcessed records the event as handled by the consumer. Marking the
// same pair twice is a no-op, redeliveries race with the first mark.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, eventID, consumerName string) error {
	if s == nil || s.db == nil {
		return errors.New("eventing: processed store not configured")
	}
	if eventID == "" || consumerName == "" {
		return errors.New("eventing: processed mark needs event id and consumer")
	}
	_, err := s.db.ExecContext(ctx, processedInsertQuery, eventID, consumerName, time.Now().UTC())
	return err
}
