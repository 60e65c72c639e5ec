package reports

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"iot-console/internal/audit"
	"iot-console/internal/auth"
	devices "iot-console/internal/devices/domain"
	maintenance "iot-console/internal/maintenance/domain"
	rules "iot-console/internal/rules/domain"
	safety "iot-console/internal/safety/domain"
)

// DeviceGetter resolves a device by id.
type DeviceGetter interface {
	Get(ctx context.Context, id string) (*devices.Device, error)
}

// RuleLister lists rules scoped to a device.
type RuleLister interface {
	ListForDevice(ctx context.Context, organizationID, deviceID string) ([]rules.Rule, error)
}

// MaintenanceLister lists a device maintenance schedule.
type MaintenanceLister interface {
	ListByDevice(ctx context.Context, deviceID string) ([]maintenance.Item, error)
}

// SafetyLister lists device safety precautions.
type SafetyLister interface {
	ListByDevice(ctx context.Context, deviceID string) ([]safety.Precaution, error)
}

// Handler serves report downloads under /api/v1/devices/{id}/reports.
type Handler struct {
	devices     DeviceGetter
	rules       RuleLister
	maintenance MaintenanceLister
	safety      SafetyLister
	auditLogger audit.Logger
}

// NewHandler constructs a report handler.
func NewHandler(deviceGetter DeviceGetter, ruleLister RuleLister, maintenanceLister MaintenanceLister, safetyLister SafetyLister, auditLogger audit.Logger) (*Handler, error) {
	if deviceGetter == nil {
		return nil, errors.New("report handler: nil device getter")
	}
	if ruleLister == nil || maintenanceLister == nil || safetyLister == nil {
		return nil, errors.New("report handler: nil lister")
	}
	return &Handler{
		devices:     deviceGetter,
		rules:       ruleLister,
		maintenance: maintenanceLister,
		safety:      safetyLister,
		auditLogger: auditLogger,
	}, nil
}

// ServeHTTP routes report requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/devices/")
	parts := strings.Split(path, "/")
	if len(parts) != 3 || parts[1] != "reports" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	deviceID := parts[0]
	switch parts[2] {
	case "onboarding.pdf":
		h.handleOnboardingPDF(w, r, deviceID)
	case "maintenance.xlsx":
		h.handleMaintenanceXLSX(w, r, deviceID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleOnboardingPDF(w http.ResponseWriter, r *http.Request, deviceID string) {
	device, err := h.devices.Get(r.Context(), deviceID)
	if err != nil {
		respondReportError(w, err)
		return
	}
	organizationID := auth.OrganizationFromContext(r.Context())
	ruleList, err := h.rules.ListForDevice(r.Context(), organizationID, deviceID)
	if err != nil {
		http.Error(w, "list rules error", http.StatusInternalServerError)
		return
	}
	items, err := h.maintenance.ListByDevice(r.Context(), deviceID)
	if err != nil {
		http.Error(w, "list maintenance error", http.StatusInternalServerError)
		return
	}
	precautions, err := h.safety.ListByDevice(r.Context(), deviceID)
	if err != nil {
		http.Error(w, "list safety error", http.StatusInternalServerError)
		return
	}
	data, err := BuildOnboardingPDF(device, ruleList, items, precautions)
	if err != nil {
		http.Error(w, "export pdf error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	h.logAudit(r, deviceID, "pdf")
}

func (h *Handler) handleMaintenanceXLSX(w http.ResponseWriter, r *http.Request, deviceID string) {
	device, err := h.devices.Get(r.Context(), deviceID)
	if err != nil {
		respondReportError(w, err)
		return
	}
	items, err := h.maintenance.ListByDevice(r.Context(), deviceID)
	if err != nil {
		http.Error(w, "list maintenance error", http.StatusInternalServerError)
		return
	}
	data, err := BuildMaintenanceXLSX(device, items)
	if err != nil {
		http.Error(w, "export xlsx error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	h.logAudit(r, deviceID, "xlsx")
}

func respondReportError(w http.ResponseWriter, err error) {
	if errors.Is(err, devices.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func (h *Handler) logAudit(r *http.Request, deviceID, format string) {
	if h.auditLogger == nil {
		return
	}
	organizationID := auth.OrganizationFromContext(r.Context())
	if organizationID == "" {
		return
	}
	payload, _ := json.Marshal(map[string]any{"format": format, "at": time.Now().UTC()})
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		OrganizationID: organizationID,
		Actor:          auth.SubjectFromContext(r.Context()),
		Role:           string(auth.RoleFromContext(r.Context())),
		Action:         "report.export",
		ResourceType:   "device",
		ResourceID:     deviceID,
		DeviceID:       deviceID,
		Metadata:       payload,
		IP:             audit.ClientIP(r),
		UserAgent:      r.UserAgent(),
	})
}
