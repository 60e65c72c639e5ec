package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	rules "iot-console/internal/rules/domain"
)

// Repository is a Postgres repository for monitoring rules. Conditions and
// actions are stored as JSONB alongside the rule row.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const ruleColumns = `id, name, description, conditions, actions, priority,
	organization_id, active, created_at, updated_at`

// SaveAll inserts the committed rules in one transaction. A failure rolls
// the whole batch back.
func (r *Repository) SaveAll(ctx context.Context, list []rules.Rule) error {
	if r == nil || r.db == nil {
		return errors.New("rule repo: nil db")
	}
	if len(list) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i := range list {
		if err := saveRule(ctx, tx, &list[i]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Save upserts a single rule.
func (r *Repository) Save(ctx context.Context, rule *rules.Rule) error {
	if r == nil || r.db == nil {
		return errors.New("rule repo: nil db")
	}
	return saveRule(ctx, r.db, rule)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveRule(ctx context.Context, db execer, rule *rules.Rule) error {
	if rule == nil {
		return errors.New("rule repo: nil rule")
	}
	if rule.ID == "" {
		return errors.New("rule repo: empty id")
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	if rule.UpdatedAt.IsZero() {
		rule.UpdatedAt = rule.CreatedAt
	}
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return err
	}
	actions, err := json.Marshal(rule.Actions)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
INSERT INTO rules (
	id, name, description, conditions, actions, priority,
	organization_id, active, created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6,
	$7, $8, $9, $10
)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	description = EXCLUDED.description,
	conditions = EXCLUDED.conditions,
	actions = EXCLUDED.actions,
	priority = EXCLUDED.priority,
	active = EXCLUDED.active,
	updated_at = EXCLUDED.updated_at`,
		rule.ID,
		rule.Name,
		rule.Description,
		conditions,
		actions,
		rule.Priority,
		rule.OrganizationID,
		rule.Active,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	return err
}

// Get fetches a rule by id.
func (r *Repository) Get(ctx context.Context, id string) (*rules.Rule, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("rule repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+ruleColumns+`
FROM rules
WHERE id = $1`, id)
	rule, err := scanRule(row)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, rules.ErrNotFound
	}
	return rule, nil
}

// List returns the organization's rules, newest first.
func (r *Repository) List(ctx context.Context, organizationID string) ([]rules.Rule, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("rule repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+ruleColumns+`
FROM rules
WHERE organization_id = $1
ORDER BY created_at DESC`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []rules.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListForDevice returns the organization's rules that apply to the device,
// wildcard rules included.
func (r *Repository) ListForDevice(ctx context.Context, organizationID, deviceID string) ([]rules.Rule, error) {
	all, err := r.List(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	return rules.FilterForDevice(all, deviceID), nil
}

// SetActive toggles a rule on or off.
func (r *Repository) SetActive(ctx context.Context, id string, active bool, updatedAt time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("rule repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE rules
SET active = $1, updated_at = $2
WHERE id = $3`, active, updatedAt, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return rules.ErrNotFound
	}
	return nil
}

// Delete removes a rule.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("rule repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM rules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return rules.ErrNotFound
	}
	return nil
}

type ruleScanner interface {
	Scan(dest ...any) error
}

func scanRule(row ruleScanner) (*rules.Rule, error) {
	var rule rules.Rule
	var conditions, actions []byte
	if err := row.Scan(
		&rule.ID,
		&rule.Name,
		&rule.Description,
		&conditions,
		&actions,
		&rule.Priority,
		&rule.OrganizationID,
		&rule.Active,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rule.CreatedAt = rule.CreatedAt.UTC()
	rule.UpdatedAt = rule.UpdatedAt.UTC()
	if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(actions, &rule.Actions); err != nil {
		return nil, err
	}
	return &rule, nil
}
