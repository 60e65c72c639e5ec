// Package devices holds the device registry model.
package devices

import (
	"context"
	"errors"
	"time"
)

// Status of a registered device.
const (
	StatusProvisioned = "PROVISIONED"
	StatusActive      = "ACTIVE"
	StatusOffline     = "OFFLINE"
	StatusRetired     = "RETIRED"
)

// ErrNotFound is returned when a device does not exist.
var ErrNotFound = errors.New("devices: not found")

// ErrDuplicateName is returned when a device name is already taken within
// the organization.
var ErrDuplicateName = errors.New("devices: duplicate name")

// Device is one registered device.
type Device struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	DeviceType       string            `json:"deviceType"`
	Location         string            `json:"location,omitempty"`
	Manufacturer     string            `json:"manufacturer,omitempty"`
	Model            string            `json:"model,omitempty"`
	ConnectionType   string            `json:"connectionType,omitempty"`
	ConnectionConfig map[string]string `json:"connectionConfig,omitempty"`
	OrganizationID   string            `json:"organizationId,omitempty"`
	Status           string            `json:"status"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// Validate checks device invariants.
func (d Device) Validate() error {
	if d.ID == "" {
		return errors.New("device: empty id")
	}
	if d.Name == "" {
		return errors.New("device: empty name")
	}
	if d.DeviceType == "" {
		return errors.New("device: empty device type")
	}
	return nil
}

// Repository manages device persistence.
type Repository interface {
	Get(ctx context.Context, id string) (*Device, error)
	FindByName(ctx context.Context, organizationID, name string) (*Device, error)
	List(ctx context.Context, organizationID string) ([]Device, error)
	Save(ctx context.Context, device *Device) error
	UpdateStatus(ctx context.Context, id, status string, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
}
