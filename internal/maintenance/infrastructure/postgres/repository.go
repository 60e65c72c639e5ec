package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	maintenance "iot-console/internal/maintenance/domain"
)

// Repository is a Postgres repository for maintenance schedules.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const itemColumns = `id, device_id, task_name, description, frequency, priority,
	estimated_mins, last_maintenance, next_maintenance, created_at`

// SaveAll replaces the device's schedule with the given items in one
// transaction.
func (r *Repository) SaveAll(ctx context.Context, deviceID string, items []maintenance.Item) error {
	if r == nil || r.db == nil {
		return errors.New("maintenance repo: nil db")
	}
	if deviceID == "" {
		return errors.New("maintenance repo: empty device id")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM maintenance_items WHERE device_id = $1`, deviceID); err != nil {
		return err
	}
	for _, item := range items {
		if item.CreatedAt.IsZero() {
			item.CreatedAt = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO maintenance_items (
	id, device_id, task_name, description, frequency, priority,
	estimated_mins, last_maintenance, next_maintenance, created_at
) VALUES (
	$1, $2, $3, $4, $5, $6,
	$7, $8, $9, $10
)`,
			item.ID,
			deviceID,
			item.TaskName,
			item.Description,
			item.Frequency,
			item.Priority,
			item.EstimatedMins,
			nullableTime(item.LastMaintenance),
			nullableTime(item.NextMaintenance),
			item.CreatedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListByDevice returns the device's schedule ordered by next due date.
func (r *Repository) ListByDevice(ctx context.Context, deviceID string) ([]maintenance.Item, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("maintenance repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+itemColumns+`
FROM maintenance_items
WHERE device_id = $1
ORDER BY next_maintenance ASC NULLS LAST, task_name`, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

// ListDueBefore returns items across all devices due before the cutoff.
func (r *Repository) ListDueBefore(ctx context.Context, cutoff time.Time) ([]maintenance.Item, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("maintenance repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+itemColumns+`
FROM maintenance_items
WHERE next_maintenance IS NOT NULL AND next_maintenance < $1
ORDER BY next_maintenance ASC`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

// MarkDone records a completed task and rolls the next due date forward.
func (r *Repository) MarkDone(ctx context.Context, id string, doneAt time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("maintenance repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT frequency FROM maintenance_items WHERE id = $1`, id)
	var frequency string
	if err := row.Scan(&frequency); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return maintenance.ErrNotFound
		}
		return err
	}
	next := maintenance.NextDate(doneAt, frequency)
	_, err := r.db.ExecContext(ctx, `
UPDATE maintenance_items
SET last_maintenance = $1, next_maintenance = $2
WHERE id = $3`, doneAt, next, id)
	return err
}

func collectItems(rows *sql.Rows) ([]maintenance.Item, error) {
	var result []maintenance.Item
	for rows.Next() {
		var item maintenance.Item
		var last, next sql.NullTime
		if err := rows.Scan(
			&item.ID,
			&item.DeviceID,
			&item.TaskName,
			&item.Description,
			&item.Frequency,
			&item.Priority,
			&item.EstimatedMins,
			&last,
			&next,
			&item.CreatedAt,
		); err != nil {
			return nil, err
		}
		item.CreatedAt = item.CreatedAt.UTC()
		if last.Valid {
			item.LastMaintenance = last.Time.UTC()
		}
		if next.Valid {
			item.NextMaintenance = next.Time.UTC()
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func nullableTime(value time.Time) sql.NullTime {
	if value.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: value, Valid: true}
}
