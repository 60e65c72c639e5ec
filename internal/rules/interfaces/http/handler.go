// Package http exposes the rule authoring API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"iot-console/internal/audit"
	"iot-console/internal/auth"
	rules "iot-console/internal/rules/domain"
)

// RuleStore is the persistence surface the handler needs.
type RuleStore interface {
	Get(ctx context.Context, id string) (*rules.Rule, error)
	List(ctx context.Context, organizationID string) ([]rules.Rule, error)
	ListForDevice(ctx context.Context, organizationID, deviceID string) ([]rules.Rule, error)
	SetActive(ctx context.Context, id string, active bool, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

// RuleHandler handles rule routes under /api/v1/rules.
type RuleHandler struct {
	store       RuleStore
	auditLogger audit.Logger
}

// NewRuleHandler constructs a handler.
func NewRuleHandler(store RuleStore, auditLogger audit.Logger) (*RuleHandler, error) {
	if store == nil {
		return nil, errors.New("rule handler: nil store")
	}
	return &RuleHandler{store: store, auditLogger: auditLogger}, nil
}

// ServeHTTP routes rule requests.
func (h *RuleHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == "/api/v1/rules" && r.Method == http.MethodGet {
		h.handleList(w, r)
		return
	}
	if strings.HasPrefix(path, "/api/v1/rules/") {
		rest := strings.TrimPrefix(path, "/api/v1/rules/")
		h.handleByID(w, r, rest)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *RuleHandler) handleByID(w http.ResponseWriter, r *http.Request, rest string) {
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
	if len(parts) == 2 && r.Method == http.MethodPost {
		switch parts[1] {
		case "activate":
			h.handleSetActive(w, r, id, true)
			return
		case "deactivate":
			h.handleSetActive(w, r, id, false)
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *RuleHandler) handleList(w http.ResponseWriter, r *http.Request) {
	organizationID := auth.OrganizationFromContext(r.Context())
	deviceID := r.URL.Query().Get("deviceId")

	var (
		list []rules.Rule
		err  error
	)
	if deviceID != "" {
		list, err = h.store.ListForDevice(r.Context(), organizationID, deviceID)
	} else {
		list, err = h.store.List(r.Context(), organizationID)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"rules": list})
}

func (h *RuleHandler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	rule, err := h.store.Get(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if !visibleToCaller(r, rule.OrganizationID) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rule)
}

func (h *RuleHandler) handleSetActive(w http.ResponseWriter, r *http.Request, id string, active bool) {
	if err := h.store.SetActive(r.Context(), id, active, time.Now().UTC()); err != nil {
		respondStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"id": id, "active": active})
	action := "rule.activate"
	if !active {
		action = "rule.deactivate"
	}
	h.logAudit(r, id, action)
}

func (h *RuleHandler) handleDelete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Delete(r.Context(), id); err != nil {
		respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	h.logAudit(r, id, "rule.delete")
}

func visibleToCaller(r *http.Request, ruleOrg string) bool {
	callerOrg := auth.OrganizationFromContext(r.Context())
	return callerOrg == "" || ruleOrg == "" || ruleOrg == callerOrg
}

func respondStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, rules.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func (h *RuleHandler) logAudit(r *http.Request, ruleID, action string) {
	if h.auditLogger == nil {
		return
	}
	organizationID := auth.OrganizationFromContext(r.Context())
	if organizationID == "" {
		return
	}
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		OrganizationID: organizationID,
		Actor:          auth.SubjectFromContext(r.Context()),
		Role:           string(auth.RoleFromContext(r.Context())),
		Action:         action,
		ResourceType:   "rule",
		ResourceID:     ruleID,
		IP:             audit.ClientIP(r),
		UserAgent:      r.UserAgent(),
	})
}
