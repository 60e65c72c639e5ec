package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	devices "iot-console/internal/devices/domain"
	onboarding "iot-console/internal/onboarding/domain"
)

// DeviceService registers and queries devices. It serves the onboarding
// orchestrator's device-create port and the device REST surface.
type DeviceService struct {
	repo   devices.Repository
	logger *zap.Logger
}

// NewDeviceService constructs a device service.
func NewDeviceService(repo devices.Repository, logger *zap.Logger) (*DeviceService, error) {
	if repo == nil {
		return nil, errors.New("device service: nil repository")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeviceService{repo: repo, logger: logger}, nil
}

// Create registers a device from an onboarding draft and returns its id.
// Names are unique within an organization.
func (s *DeviceService) Create(ctx context.Context, draft onboarding.DeviceDraft) (string, error) {
	if err := draft.Validate(); err != nil {
		return "", err
	}
	existing, err := s.repo.FindByName(ctx, draft.OrganizationID, draft.Name)
	if err != nil && !errors.Is(err, devices.ErrNotFound) {
		return "", fmt.Errorf("device service: name lookup: %w", err)
	}
	if existing != nil {
		return "", devices.ErrDuplicateName
	}

	now := time.Now().UTC()
	device := &devices.Device{
		ID:               uuid.NewString(),
		Name:             draft.Name,
		DeviceType:       draft.DeviceType,
		Location:         draft.Location,
		Manufacturer:     draft.Manufacturer,
		Model:            draft.Model,
		ConnectionType:   string(draft.ConnectionType),
		ConnectionConfig: draft.ConnectionConfig,
		OrganizationID:   draft.OrganizationID,
		Status:           devices.StatusProvisioned,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Save(ctx, device); err != nil {
		return "", fmt.Errorf("device service: save: %w", err)
	}
	s.logger.Info("device_created",
		zap.String("device_id", device.ID),
		zap.String("name", device.Name),
		zap.String("device_type", device.DeviceType),
	)
	return device.ID, nil
}

// Get fetches a device by id.
func (s *DeviceService) Get(ctx context.Context, id string) (*devices.Device, error) {
	if id == "" {
		return nil, errors.New("device service: empty id")
	}
	return s.repo.Get(ctx, id)
}

// List returns the organization's devices.
func (s *DeviceService) List(ctx context.Context, organizationID string) ([]devices.Device, error) {
	return s.repo.List(ctx, organizationID)
}

// UpdateStatus transitions a device to a new status.
func (s *DeviceService) UpdateStatus(ctx context.Context, id, status string) error {
	switch status {
	case devices.StatusProvisioned, devices.StatusActive, devices.StatusOffline, devices.StatusRetired:
	default:
		return fmt.Errorf("device service: unknown status %q", status)
	}
	return s.repo.UpdateStatus(ctx, id, status, time.Now().UTC())
}

// Delete removes a device.
func (s *DeviceService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("device service: empty id")
	}
	return s.repo.Delete(ctx, id)
}
