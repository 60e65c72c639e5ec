// Package http exposes the device master data API.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"iot-console/internal/audit"
	"iot-console/internal/auth"
	deviceapp "iot-console/internal/devices/application"
	devices "iot-console/internal/devices/domain"
)

// DeviceHandler handles device routes under /api/v1/devices.
type DeviceHandler struct {
	service     *deviceapp.DeviceService
	auditLogger audit.Logger
}

// NewDeviceHandler constructs a handler.
func NewDeviceHandler(service *deviceapp.DeviceService, auditLogger audit.Logger) (*DeviceHandler, error) {
	if service == nil {
		return nil, errors.New("device handler: nil service")
	}
	return &DeviceHandler{service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP routes device requests.
func (h *DeviceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == "/api/v1/devices" && r.Method == http.MethodGet {
		h.handleList(w, r)
		return
	}
	if strings.HasPrefix(path, "/api/v1/devices/") {
		rest := strings.TrimPrefix(path, "/api/v1/devices/")
		h.handleByID(w, r, rest)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *DeviceHandler) handleByID(w http.ResponseWriter, r *http.Request, rest string) {
	if rest == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.handleGet(w, r, id)
			return
		case http.MethodDelete:
			h.handleDelete(w, r, id)
			return
		}
	}
	if len(parts) == 2 && parts[1] == "status" && r.Method == http.MethodPost {
		h.handleUpdateStatus(w, r, id)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *DeviceHandler) handleList(w http.ResponseWriter, r *http.Request) {
	organizationID := auth.OrganizationFromContext(r.Context())
	list, err := h.service.List(r.Context(), organizationID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"devices": list})
}

func (h *DeviceHandler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	device, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondDeviceError(w, err)
		return
	}
	organizationID := auth.OrganizationFromContext(r.Context())
	if organizationID != "" && device.OrganizationID != "" && device.OrganizationID != organizationID {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(device)
}

func (h *DeviceHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := h.service.UpdateStatus(r.Context(), id, req.Status); err != nil {
		respondDeviceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"id": id, "status": req.Status})
	h.logAudit(r, id, "device.status", map[string]any{"status": req.Status})
}

func (h *DeviceHandler) handleDelete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.service.Delete(r.Context(), id); err != nil {
		respondDeviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	h.logAudit(r, id, "device.delete", nil)
}

func respondDeviceError(w http.ResponseWriter, err error) {
	if errors.Is(err, devices.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusBadRequest)
}

func (h *DeviceHandler) logAudit(r *http.Request, deviceID, action string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	organizationID := auth.OrganizationFromContext(r.Context())
	if organizationID == "" {
		return
	}
	var payload json.RawMessage
	if meta != nil {
		payload, _ = json.Marshal(meta)
	}
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		OrganizationID: organizationID,
		Actor:          auth.SubjectFromContext(r.Context()),
		Role:           string(auth.RoleFromContext(r.Context())),
		Action:         action,
		ResourceType:   "device",
		ResourceID:     deviceID,
		DeviceID:       deviceID,
		Metadata:       payload,
		IP:             audit.ClientIP(r),
		UserAgent:      r.UserAgent(),
	})
}
