package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	devices "iot-console/internal/devices/domain"
)

// Repository is a Postgres repository for devices.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const deviceColumns = `id, name, device_type, location, manufacturer, model,
	connection_type, connection_config, organization_id, status, created_at, updated_at`

// Save upserts a device.
func (r *Repository) Save(ctx context.Context, device *devices.Device) error {
	if r == nil || r.db == nil {
		return errors.New("device repo: nil db")
	}
	if device == nil {
		return errors.New("device repo: nil device")
	}
	if err := device.Validate(); err != nil {
		return err
	}
	if device.CreatedAt.IsZero() {
		device.CreatedAt = time.Now().UTC()
	}
	if device.UpdatedAt.IsZero() {
		device.UpdatedAt = device.CreatedAt
	}
	config, err := marshalConfig(device.ConnectionConfig)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO devices (
	id, name, device_type, location, manufacturer, model,
	connection_type, connection_config, organization_id, status, created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6,
	$7, $8, $9, $10, $11, $12
)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	device_type = EXCLUDED.device_type,
	location = EXCLUDED.location,
	manufacturer = EXCLUDED.manufacturer,
	model = EXCLUDED.model,
	connection_type = EXCLUDED.connection_type,
	connection_config = EXCLUDED.connection_config,
	organization_id = EXCLUDED.organization_id,
	status = EXCLUDED.status,
	updated_at = EXCLUDED.updated_at`,
		device.ID,
		device.Name,
		device.DeviceType,
		device.Location,
		device.Manufacturer,
		device.Model,
		device.ConnectionType,
		config,
		device.OrganizationID,
		device.Status,
		device.CreatedAt,
		device.UpdatedAt,
	)
	return err
}

// Get fetches a device by id.
func (r *Repository) Get(ctx context.Context, id string) (*devices.Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("device repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+deviceColumns+`
FROM devices
WHERE id = $1`, id)
	device, err := scanDevice(row)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, devices.ErrNotFound
	}
	return device, nil
}

// FindByName fetches a device by organization and name.
func (r *Repository) FindByName(ctx context.Context, organizationID, name string) (*devices.Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("device repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+deviceColumns+`
FROM devices
WHERE organization_id = $1 AND name = $2
LIMIT 1`, organizationID, name)
	device, err := scanDevice(row)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, devices.ErrNotFound
	}
	return device, nil
}

// List returns the organization's devices, newest first.
func (r *Repository) List(ctx context.Context, organizationID string) ([]devices.Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("device repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+deviceColumns+`
FROM devices
WHERE organization_id = $1
ORDER BY created_at DESC`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []devices.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *device)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateStatus changes the device status.
func (r *Repository) UpdateStatus(ctx context.Context, id, status string, updatedAt time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("device repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE devices
SET status = $1, updated_at = $2
WHERE id = $3`, status, updatedAt, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return devices.ErrNotFound
	}
	return nil
}

// Delete removes a device.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("device repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return devices.ErrNotFound
	}
	return nil
}

type deviceScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row deviceScanner) (*devices.Device, error) {
	var device devices.Device
	var config []byte
	if err := row.Scan(
		&device.ID,
		&device.Name,
		&device.DeviceType,
		&device.Location,
		&device.Manufacturer,
		&device.Model,
		&device.ConnectionType,
		&config,
		&device.OrganizationID,
		&device.Status,
		&device.CreatedAt,
		&device.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	device.CreatedAt = device.CreatedAt.UTC()
	device.UpdatedAt = device.UpdatedAt.UTC()
	if len(config) > 0 {
		if err := json.Unmarshal(config, &device.ConnectionConfig); err != nil {
			return nil, err
		}
	}
	return &device, nil
}

func marshalConfig(config map[string]string) ([]byte, error) {
	if len(config) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(config)
}
