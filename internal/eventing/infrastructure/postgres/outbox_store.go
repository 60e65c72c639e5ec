package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"iot-console/internal/eventing"
)

const defaultOutboxTable = "event_outbox"

// Outbox statuses.
const (
	statusPending = "pending"
	statusSent    = "sent"
	statusFailed  = "failed"
)

// OutboxStore is a Postgres implementation of the transactional outbox.
type OutboxStore struct {
	db    *sql.DB
	table string
}

// NewOutboxStore constructs an outbox store.
func NewOutboxStore(db *sql.DB, opts ...OutboxOption) *OutboxStore {
	store := &OutboxStore{db: db, table: defaultOutboxTable}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// OutboxOption configures the outbox store.
type OutboxOption func(*OutboxStore)

// WithOutboxTable overrides the table name.
func WithOutboxTable(table string) OutboxOption {
	return func(store *OutboxStore) {
		if table != "" {
			store.table = table
		}
	}
}

// Insert writes a pending outbox record and returns its id.
func (s *OutboxStore) Insert(ctx context.Context, env eventing.Envelope) (string, error) {
	if s == nil || s.db == nil {
		return "", errors.New("outbox store: nil db")
	}
	if env.EventID == "" || env.EventType == "" {
		return "", errors.New("outbox store: incomplete envelope")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	event_id, event_type, organization_id, occurred_at, payload, status, attempts, created_at
) VALUES (
	$1, $2, $3, $4, $5, $6, 0, $7
)
ON CONFLICT (event_id) DO NOTHING`, s.table)
	_, err := s.db.ExecContext(ctx, query,
		env.EventID,
		env.EventType,
		env.OrganizationID,
		env.OccurredAt,
		[]byte(env.Payload),
		statusPending,
		time.Now().UTC(),
	)
	if err != nil {
		return "", err
	}
	return env.EventID, nil
}

// ListPending returns up to limit pending records, oldest first.
func (s *OutboxStore) ListPending(ctx context.Context, limit int) ([]eventing.OutboxRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("outbox store: nil db")
	}
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
SELECT event_id, event_type, organization_id, occurred_at, payload
FROM %s
WHERE status = $1
ORDER BY created_at ASC
LIMIT $2`, s.table)
	rows, err := s.db.QueryContext(ctx, query, statusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []eventing.OutboxRecord
	for rows.Next() {
		var env eventing.Envelope
		var payload []byte
		if err := rows.Scan(&env.EventID, &env.EventType, &env.OrganizationID, &env.OccurredAt, &payload); err != nil {
			return nil, err
		}
		env.OccurredAt = env.OccurredAt.UTC()
		env.Payload = payload
		records = append(records, eventing.OutboxRecord{ID: env.EventID, Envelope: env})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// MarkSent flags a record as delivered.
func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, statusSent)
}

// MarkFailed flags a record as failed and bumps the attempt count.
func (s *OutboxStore) MarkFailed(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return errors.New("outbox store: nil db")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET status = $1, attempts = attempts + 1, dispatched_at = $2
WHERE event_id = $3`, s.table)
	_, err := s.db.ExecContext(ctx, query, statusFailed, time.Now().UTC(), id)
	return err
}

func (s *OutboxStore) setStatus(ctx context.Context, id, status string) error {
	if s == nil || s.db == nil {
		return errors.New("outbox store: nil db")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET status = $1, dispatched_at = $2
WHERE event_id = $3`, s.table)
	_, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	return err
}
