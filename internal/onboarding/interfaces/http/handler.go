// Package http exposes the onboarding pipeline over REST and SSE.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"iot-console/internal/audit"
	"iot-console/internal/auth"
	maintenance "iot-console/internal/maintenance/domain"
	onboardingapp "iot-console/internal/onboarding/application"
	onboarding "iot-console/internal/onboarding/domain"
	rules "iot-console/internal/rules/domain"
	safety "iot-console/internal/safety/domain"
)

const defaultMaxUploadBytes = 25 << 20

// OnboardingHandler handles onboarding run APIs.
type OnboardingHandler struct {
	manager     *onboardingapp.Manager
	auditLogger audit.Logger
	maxUpload   int64
}

// OnboardingHandlerOption configures the handler.
type OnboardingHandlerOption func(*OnboardingHandler)

// WithMaxUploadBytes caps the accepted documentation size.
func WithMaxUploadBytes(limit int64) OnboardingHandlerOption {
	return func(h *OnboardingHandler) {
		if limit > 0 {
			h.maxUpload = limit
		}
	}
}

// NewOnboardingHandler constructs a handler.
func NewOnboardingHandler(manager *onboardingapp.Manager, auditLogger audit.Logger, opts ...OnboardingHandlerOption) (*OnboardingHandler, error) {
	if manager == nil {
		return nil, errors.New("onboarding handler: nil manager")
	}
	h := &OnboardingHandler{
		manager:     manager,
		auditLogger: auditLogger,
		maxUpload:   defaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// ServeHTTP handles onboarding routes under /api/v1/onboarding.
func (h *OnboardingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == "/api/v1/onboarding/runs" && r.Method == http.MethodPost {
		h.handleStart(w, r)
		return
	}
	if strings.HasPrefix(path, "/api/v1/onboarding/runs/") {
		rest := strings.TrimPrefix(path, "/api/v1/onboarding/runs/")
		h.handleByID(w, r, rest)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *OnboardingHandler) handleByID(w http.ResponseWriter, r *http.Request, rest string) {
	if rest == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(rest, "/")
	runID := parts[0]
	if len(parts) == 1 && r.Method == http.MethodGet {
		h.handleGet(w, r, runID)
		return
	}
	if len(parts) == 2 {
		switch parts[1] {
		case "stream":
			if r.Method == http.MethodGet {
				h.handleStream(w, r, runID)
				return
			}
		case "cancel":
			if r.Method == http.MethodPost {
				h.handleCancel(w, r, runID)
				return
			}
		}
	}
	if len(parts) == 3 && parts[1] == "rules" && parts[2] == "commit" && r.Method == http.MethodPost {
		h.handleCommitRules(w, r, runID)
		return
	}
	if len(parts) == 4 && parts[1] == "rules" && parts[3] == "toggle" && r.Method == http.MethodPost {
		h.handleToggleRule(w, r, runID, parts[2])
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *OnboardingHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	var draft onboarding.DeviceDraft
	deviceField := r.FormValue("device")
	if deviceField == "" {
		http.Error(w, "missing device part", http.StatusBadRequest)
		return
	}
	if err := json.Unmarshal([]byte(deviceField), &draft); err != nil {
		http.Error(w, "invalid device json", http.StatusBadRequest)
		return
	}
	organizationID := auth.OrganizationFromContext(r.Context())
	if organizationID != "" && draft.OrganizationID != "" && draft.OrganizationID != organizationID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if organizationID != "" {
		draft.OrganizationID = organizationID
	}
	if err := draft.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	asset, err := readAsset(r, h.maxUpload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	run, err := h.manager.Start(r.Context(), draft, asset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"runId": run.ID,
		"state": run.State,
	})
	h.logAudit(r, run.ID, "onboarding.start", map[string]any{
		"device_name": draft.Name,
		"filename":    asset.Filename,
		"size":        asset.Size,
	})
}

func readAsset(r *http.Request, maxUpload int64) (onboarding.DocumentationAsset, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		// A run may start without documentation; the pipeline fails it
		// fast with a fatal upload error and no remote calls.
		return onboarding.DocumentationAsset{}, nil
	}
	defer file.Close()
	if header.Size > maxUpload {
		return onboarding.DocumentationAsset{}, errors.New("documentation file too large")
	}
	content, err := io.ReadAll(io.LimitReader(file, maxUpload+1))
	if err != nil {
		return onboarding.DocumentationAsset{}, errors.New("read documentation file error")
	}
	if int64(len(content)) > maxUpload {
		return onboarding.DocumentationAsset{}, errors.New("documentation file too large")
	}
	return onboarding.DocumentationAsset{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        int64(len(content)),
		Content:     content,
	}, nil
}

type runResponse struct {
	RunID       string                 `json:"runId"`
	State       string                 `json:"state"`
	StartedAt   time.Time              `json:"startedAt"`
	FinishedAt  *time.Time             `json:"finishedAt,omitempty"`
	Progress    *onboarding.Snapshot   `json:"progress,omitempty"`
	Result      *onboarding.Result     `json:"result,omitempty"`
	Rules       []rules.GeneratedRule  `json:"rules,omitempty"`
	Maintenance []maintenance.Item     `json:"maintenance,omitempty"`
	Safety      []safety.Precaution    `json:"safety,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

func (h *OnboardingHandler) handleGet(w http.ResponseWriter, r *http.Request, runID string) {
	run, err := h.manager.Get(runID)
	if err != nil {
		respondRunError(w, err)
		return
	}

	resp := runResponse{
		RunID:     run.ID,
		State:     run.State,
		StartedAt: run.StartedAt,
	}
	if !run.FinishedAt.IsZero() {
		finished := run.FinishedAt
		resp.FinishedAt = &finished
	}
	if snapshot, ok := run.Stream.Latest(); ok {
		resp.Progress = &snapshot
	}
	if run.Outcome != nil {
		result := run.Outcome.Result
		resp.Result = &result
		resp.Rules = run.Outcome.Rules
		resp.Maintenance = run.Outcome.Maintenance
		resp.Safety = run.Outcome.Safety
	}
	if run.Err != nil {
		resp.Error = run.Err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *OnboardingHandler) handleCancel(w http.ResponseWriter, r *http.Request, runID string) {
	if err := h.manager.Cancel(runID); err != nil {
		respondRunError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"runId": runID, "cancelled": true})
	h.logAudit(r, runID, "onboarding.cancel", nil)
}

func (h *OnboardingHandler) handleToggleRule(w http.ResponseWriter, r *http.Request, runID, ruleID string) {
	updated, err := h.manager.ToggleRule(runID, ruleID)
	if err != nil {
		respondRunError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"rules": updated})
	h.logAudit(r, runID, "onboarding.rule_toggle", map[string]any{"rule_id": ruleID})
}

func (h *OnboardingHandler) handleCommitRules(w http.ResponseWriter, r *http.Request, runID string) {
	committed, invalid, err := h.manager.CommitRules(r.Context(), runID)
	if err != nil {
		respondRunError(w, err)
		return
	}
	if len(invalid) > 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]any{"invalid": invalid})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"committed": committed})
	h.logAudit(r, runID, "onboarding.rules_commit", map[string]any{"count": len(committed)})
}

func respondRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, onboardingapp.ErrRunNotFound):
		http.Error(w, "run not found", http.StatusNotFound)
	case errors.Is(err, onboardingapp.ErrRunNotFinished):
		http.Error(w, "run still in progress", http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *OnboardingHandler) logAudit(r *http.Request, runID, action string, meta map[string]any) {
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
		ResourceType:   "onboarding_run",
		ResourceID:     runID,
		Metadata:       payload,
		IP:             audit.ClientIP(r),
		UserAgent:      r.UserAgent(),
	})
}
