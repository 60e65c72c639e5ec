package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	maintenance "iot-console/internal/maintenance/domain"
	onboardingapp "iot-console/internal/onboarding/application"
	onboarding "iot-console/internal/onboarding/domain"
	rules "iot-console/internal/rules/domain"
	safety "iot-console/internal/safety/domain"
)

type fakeDocStore struct{}

func (fakeDocStore) Upload(_ context.Context, _ onboarding.DocumentationAsset) (string, error) {
	return "doc-1", nil
}

type fakeDeviceCreator struct{}

func (fakeDeviceCreator) Create(_ context.Context, _ onboarding.DeviceDraft) (string, error) {
	return "dev-1", nil
}

type fakeRuleGen struct{}

func (fakeRuleGen) GenerateRules(_ context.Context, _ string) ([]rules.GeneratedRule, error) {
	return []rules.GeneratedRule{
		{
			Name: "High temperature",
			Condition: rules.Condition{
				Metric:   "temperature",
				Operator: rules.OperatorGreater,
				Value:    "85",
			},
			Action:   rules.Action{Type: "notification"},
			Priority: rules.PriorityHigh,
			Category: rules.CategoryTemperature,
		},
	}, nil
}

type fakeMaintGen struct{}

func (fakeMaintGen) GenerateMaintenance(_ context.Context, _ string) ([]maintenance.Item, error) {
	return []maintenance.Item{{TaskName: "Inspect wiring", Frequency: maintenance.FrequencyMonthly}}, nil
}

type fakeSafetyGen struct{}

func (fakeSafetyGen) GenerateSafety(_ context.Context, _ string) ([]safety.Precaution, error) {
	return []safety.Precaution{{Title: "Disconnect power", Severity: safety.SeverityHigh}}, nil
}

type fakeIndexer struct{}

func (fakeIndexer) Index(_ context.Context, _ onboarding.DocumentationAsset, _ string) error {
	return nil
}

type memRuleStore struct {
	saved []rules.Rule
}

func (s *memRuleStore) SaveAll(_ context.Context, list []rules.Rule) error {
	s.saved = append(s.saved, list...)
	return nil
}

func newTestHandler(t *testing.T) (*OnboardingHandler, *onboardingapp.Manager, *memRuleStore) {
	t.Helper()
	orch, err := onboardingapp.NewOrchestrator(
		fakeDocStore{}, fakeDeviceCreator{}, fakeRuleGen{}, fakeMaintGen{}, fakeSafetyGen{}, fakeIndexer{},
		onboardingapp.WithInterpolationInterval(0),
	)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	store := &memRuleStore{}
	manager, err := onboardingapp.NewManager(orch, store)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(manager.Close)
	handler, err := NewOnboardingHandler(manager, nil)
	if err != nil {
		t.Fatalf("NewOnboardingHandler: %v", err)
	}
	return handler, manager, store
}

func multipartStart(t *testing.T, device string, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	if device != "" {
		if err := writer.WriteField("device", device); err != nil {
			t.Fatalf("write device field: %v", err)
		}
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("write file part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return buf, writer.FormDataContentType()
}

func startRun(t *testing.T, handler *OnboardingHandler) string {
	t.Helper()
	body, contentType := multipartStart(t, `{"name":"Pump 1","deviceType":"pump"}`, "manual.md", "# Manual\nDetails.")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/onboarding/runs", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("start: expected 202, got %d: %s", resp.Code, resp.Body.String())
	}
	var out struct {
		RunID string `json:"runId"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode start response: %v", err)
	}
	if out.RunID == "" {
		t.Fatal("empty run id")
	}
	return out.RunID
}

func waitCompleted(t *testing.T, handler *OnboardingHandler, runID string) runResponse {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/onboarding/runs/"+runID, nil)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("get: expected 200, got %d", resp.Code)
		}
		var run runResponse
		if err := json.Unmarshal(resp.Body.Bytes(), &run); err != nil {
			t.Fatalf("decode run: %v", err)
		}
		if run.State != onboardingapp.RunStateRunning {
			return run
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("run did not finish")
	return runResponse{}
}

func TestStartAndGetRun(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	runID := startRun(t, handler)
	run := waitCompleted(t, handler, runID)
	if run.State != onboardingapp.RunStateCompleted {
		t.Fatalf("state = %s, error = %s", run.State, run.Error)
	}
	if run.Result == nil || run.Result.DeviceID != "dev-1" {
		t.Fatalf("result = %+v", run.Result)
	}
	if len(run.Rules) != 1 || len(run.Maintenance) != 1 || len(run.Safety) != 1 {
		t.Fatalf("content = %d/%d/%d", len(run.Rules), len(run.Maintenance), len(run.Safety))
	}
}

func TestStartRejectsMissingDevicePart(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	body, contentType := multipartStart(t, "", "manual.md", "content")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/onboarding/runs", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestStartWithoutFileFailsRunFast(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	body, contentType := multipartStart(t, `{"name":"Pump 1","deviceType":"pump"}`, "", "")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/onboarding/runs", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.Code)
	}
	var out struct {
		RunID string `json:"runId"`
	}
	_ = json.Unmarshal(resp.Body.Bytes(), &out)
	run := waitCompleted(t, handler, out.RunID)
	if run.State != onboardingapp.RunStateFailed {
		t.Fatalf("state = %s", run.State)
	}
	if !strings.Contains(run.Error, "no documentation asset") {
		t.Fatalf("error = %q", run.Error)
	}
}

func TestStartRejectsOversizedFile(t *testing.T) {
	handler, manager, _ := newTestHandler(t)
	_ = manager
	small, err := NewOnboardingHandler(handler.manager, nil, WithMaxUploadBytes(16))
	if err != nil {
		t.Fatalf("NewOnboardingHandler: %v", err)
	}
	body, contentType := multipartStart(t, `{"name":"Pump 1","deviceType":"pump"}`, "manual.md", strings.Repeat("x", 64))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/onboarding/runs", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	small.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestGetUnknownRun(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/onboarding/runs/missing", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestToggleAndCommitRules(t *testing.T) {
	handler, _, store := newTestHandler(t)
	runID := startRun(t, handler)
	run := waitCompleted(t, handler, runID)
	if len(run.Rules) != 1 {
		t.Fatalf("rules = %d", len(run.Rules))
	}
	ruleID := run.Rules[0].ID

	toggle := httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/api/v1/onboarding/runs/%s/rules/%s/toggle", runID, ruleID), nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, toggle)
	if resp.Code != http.StatusOK {
		t.Fatalf("toggle: expected 200, got %d", resp.Code)
	}
	var toggled struct {
		Rules []rules.GeneratedRule `json:"rules"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &toggled); err != nil {
		t.Fatalf("decode toggle: %v", err)
	}
	if len(toggled.Rules) != 1 || toggled.Rules[0].Selected {
		t.Fatalf("toggled = %+v", toggled.Rules)
	}

	// Toggle back on, then commit.
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/api/v1/onboarding/runs/%s/rules/%s/toggle", runID, ruleID), nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("toggle back: expected 200, got %d", resp.Code)
	}

	commit := httptest.NewRequest(http.MethodPost, "/api/v1/onboarding/runs/"+runID+"/rules/commit", nil)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, commit)
	if resp.Code != http.StatusOK {
		t.Fatalf("commit: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if len(store.saved) != 1 {
		t.Fatalf("persisted = %d", len(store.saved))
	}
}

func TestCancelEndpoint(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	runID := startRun(t, handler)
	waitCompleted(t, handler, runID)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/onboarding/runs/"+runID+"/cancel", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("cancel finished run: expected 200, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/onboarding/runs/missing/cancel", nil)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("cancel unknown run: expected 404, got %d", resp.Code)
	}
}

func TestStreamDeliversProgressAndFinished(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	runID := startRun(t, handler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/onboarding/runs/"+runID+"/stream", nil)
	resp := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		handler.ServeHTTP(resp, req)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not finish")
	}

	body := resp.Body.String()
	if !strings.Contains(body, "event: ready") {
		t.Fatalf("missing ready event: %q", body)
	}
	if !strings.Contains(body, "event: finished") {
		t.Fatalf("missing finished event: %q", body)
	}
	if !strings.Contains(body, `"percent":100`) {
		t.Fatalf("missing terminal snapshot: %q", body)
	}
}
