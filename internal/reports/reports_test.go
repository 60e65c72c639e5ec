package reports

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	devices "iot-console/internal/devices/domain"
	maintenance "iot-console/internal/maintenance/domain"
	rules "iot-console/internal/rules/domain"
	safety "iot-console/internal/safety/domain"
)

func sampleDevice() *devices.Device {
	return &devices.Device{
		ID:         "dev-1",
		Name:       "Pump 1",
		DeviceType: "pump",
		Location:   "Hall B",
		Status:     devices.StatusActive,
	}
}

func sampleContent() ([]rules.Rule, []maintenance.Item, []safety.Precaution) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	ruleList := []rules.Rule{{
		ID:   "r-1",
		Name: "High temperature",
		Conditions: []rules.Condition{{
			Metric: "temperature", Operator: rules.OperatorGreater, Value: "85", DeviceID: "dev-1",
		}},
		Actions:  []rules.Action{{Type: "notification"}},
		Priority: rules.PriorityHigh,
		Active:   true,
	}}
	items := []maintenance.Item{{
		ID: "m-1", DeviceID: "dev-1", TaskName: "Inspect wiring",
		Frequency: maintenance.FrequencyMonthly, Priority: "HIGH",
		LastMaintenance: now, NextMaintenance: now.AddDate(0, 1, 0),
	}}
	precautions := []safety.Precaution{{
		ID: "s-1", DeviceID: "dev-1", Title: "Disconnect power", Severity: safety.SeverityHigh,
	}}
	return ruleList, items, precautions
}

func TestBuildOnboardingPDF(t *testing.T) {
	ruleList, items, precautions := sampleContent()
	data, err := BuildOnboardingPDF(sampleDevice(), ruleList, items, precautions)
	if err != nil {
		t.Fatalf("BuildOnboardingPDF: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("not a pdf: %q", data[:8])
	}
}

func TestBuildMaintenanceXLSX(t *testing.T) {
	_, items, _ := sampleContent()
	data, err := BuildMaintenanceXLSX(sampleDevice(), items)
	if err != nil {
		t.Fatalf("BuildMaintenanceXLSX: %v", err)
	}
	// XLSX files are zip archives.
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Fatalf("not a zip: %q", data[:4])
	}
}

type fakeDeviceGetter struct{ device *devices.Device }

func (f fakeDeviceGetter) Get(_ context.Context, id string) (*devices.Device, error) {
	if f.device == nil || f.device.ID != id {
		return nil, devices.ErrNotFound
	}
	return f.device, nil
}

type fakeRuleLister struct{ list []rules.Rule }

func (f fakeRuleLister) ListForDevice(_ context.Context, _, _ string) ([]rules.Rule, error) {
	return f.list, nil
}

type fakeMaintenanceLister struct{ items []maintenance.Item }

func (f fakeMaintenanceLister) ListByDevice(_ context.Context, _ string) ([]maintenance.Item, error) {
	return f.items, nil
}

type fakeSafetyLister struct{ precautions []safety.Precaution }

func (f fakeSafetyLister) ListByDevice(_ context.Context, _ string) ([]safety.Precaution, error) {
	return f.precautions, nil
}

func TestHandlerServesReports(t *testing.T) {
	ruleList, items, precautions := sampleContent()
	handler, err := NewHandler(
		fakeDeviceGetter{device: sampleDevice()},
		fakeRuleLister{list: ruleList},
		fakeMaintenanceLister{items: items},
		fakeSafetyLister{precautions: precautions},
		nil,
	)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/dev-1/reports/onboarding.pdf", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("pdf: expected 200, got %d", resp.Code)
	}
	if got := resp.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("pdf content type = %s", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/devices/dev-1/reports/maintenance.xlsx", nil)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("xlsx: expected 200, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/devices/missing/reports/onboarding.pdf", nil)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("missing device: expected 404, got %d", resp.Code)
	}
}
