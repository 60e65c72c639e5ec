package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	safety "iot-console/internal/safety/domain"
)

// Repository is a Postgres repository for safety precautions.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// SaveAll replaces the device's precautions in one transaction.
func (r *Repository) SaveAll(ctx context.Context, deviceID string, precautions []safety.Precaution) error {
	if r == nil || r.db == nil {
		return errors.New("safety repo: nil db")
	}
	if deviceID == "" {
		return errors.New("safety repo: empty device id")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM safety_precautions WHERE device_id = $1`, deviceID); err != nil {
		return err
	}
	for _, p := range precautions {
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO safety_precautions (
	id, device_id, title, description, severity, category,
	mitigation, about_reaction, recommended_ppe, created_at
) VALUES (
	$1, $2, $3, $4, $5, $6,
	$7, $8, $9, $10
)`,
			p.ID,
			deviceID,
			p.Title,
			p.Description,
			p.Severity,
			p.Category,
			p.Mitigation,
			p.AboutReaction,
			p.RecommendedPPE,
			p.CreatedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListByDevice returns the device's precautions, most severe first.
func (r *Repository) ListByDevice(ctx context.Context, deviceID string) ([]safety.Precaution, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("safety repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, device_id, title, description, severity, category,
	mitigation, about_reaction, recommended_ppe, created_at
FROM safety_precautions
WHERE device_id = $1
ORDER BY CASE severity
	WHEN 'CRITICAL' THEN 0
	WHEN 'HIGH' THEN 1
	WHEN 'MEDIUM' THEN 2
	ELSE 3
END, title`, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []safety.Precaution
	for rows.Next() {
		var p safety.Precaution
		if err := rows.Scan(
			&p.ID,
			&p.DeviceID,
			&p.Title,
			&p.Description,
			&p.Severity,
			&p.Category,
			&p.Mitigation,
			&p.AboutReaction,
			&p.RecommendedPPE,
			&p.CreatedAt,
		); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
