package application

import (
	"context"
	"errors"
	"testing"
	"time"

	devices "iot-console/internal/devices/domain"
	onboarding "iot-console/internal/onboarding/domain"
)

type memRepo struct {
	byID map[string]*devices.Device
}

func newMemRepo() *memRepo {
	return &memRepo{byID: make(map[string]*devices.Device)}
}

func (m *memRepo) Get(_ context.Context, id string) (*devices.Device, error) {
	device, ok := m.byID[id]
	if !ok {
		return nil, devices.ErrNotFound
	}
	copy := *device
	return &copy, nil
}

func (m *memRepo) FindByName(_ context.Context, organizationID, name string) (*devices.Device, error) {
	for _, device := range m.byID {
		if device.OrganizationID == organizationID && device.Name == name {
			copy := *device
			return &copy, nil
		}
	}
	return nil, devices.ErrNotFound
}

func (m *memRepo) List(_ context.Context, organizationID string) ([]devices.Device, error) {
	var out []devices.Device
	for _, device := range m.byID {
		if device.OrganizationID == organizationID {
			out = append(out, *device)
		}
	}
	return out, nil
}

func (m *memRepo) Save(_ context.Context, device *devices.Device) error {
	copy := *device
	m.byID[device.ID] = &copy
	return nil
}

func (m *memRepo) UpdateStatus(_ context.Context, id, status string, updatedAt time.Time) error {
	device, ok := m.byID[id]
	if !ok {
		return devices.ErrNotFound
	}
	device.Status = status
	device.UpdatedAt = updatedAt
	return nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return devices.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func TestCreateFromDraft(t *testing.T) {
	repo := newMemRepo()
	service, err := NewDeviceService(repo, nil)
	if err != nil {
		t.Fatalf("NewDeviceService: %v", err)
	}
	draft := onboarding.DeviceDraft{
		Name:           "Boiler Room Sensor",
		DeviceType:     "temperature-sensor",
		ConnectionType: onboarding.ConnectionMQTT,
		OrganizationID: "org-1",
	}
	id, err := service.Create(context.Background(), draft)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	device, err := service.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if device.Status != devices.StatusProvisioned {
		t.Fatalf("status = %q, want provisioned", device.Status)
	}
	if device.Name != draft.Name || device.DeviceType != draft.DeviceType {
		t.Fatalf("device = %+v", device)
	}
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	repo := newMemRepo()
	service, _ := NewDeviceService(repo, nil)
	draft := onboarding.DeviceDraft{Name: "Sensor", DeviceType: "sensor", OrganizationID: "org-1"}
	if _, err := service.Create(context.Background(), draft); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if _, err := service.Create(context.Background(), draft); !errors.Is(err, devices.ErrDuplicateName) {
		t.Fatalf("second Create = %v, want ErrDuplicateName", err)
	}
	// Same name in another organization is fine.
	draft.OrganizationID = "org-2"
	if _, err := service.Create(context.Background(), draft); err != nil {
		t.Fatalf("other-org Create: %v", err)
	}
}

func TestCreateRejectsInvalidDraft(t *testing.T) {
	service, _ := NewDeviceService(newMemRepo(), nil)
	if _, err := service.Create(context.Background(), onboarding.DeviceDraft{Name: "x"}); err == nil {
		t.Fatal("expected validation error for missing device type")
	}
}

func TestUpdateStatus(t *testing.T) {
	repo := newMemRepo()
	service, _ := NewDeviceService(repo, nil)
	id, err := service.Create(context.Background(), onboarding.DeviceDraft{Name: "s", DeviceType: "sensor"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := service.UpdateStatus(context.Background(), id, devices.StatusActive); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	device, _ := service.Get(context.Background(), id)
	if device.Status != devices.StatusActive {
		t.Fatalf("status = %q, want active", device.Status)
	}
	if err := service.UpdateStatus(context.Background(), id, "BROKEN"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}
