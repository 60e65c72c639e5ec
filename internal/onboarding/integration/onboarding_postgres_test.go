package integration_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	deviceapp "iot-console/internal/devices/application"
	devicepg "iot-console/internal/devices/infrastructure/postgres"
	"iot-console/internal/eventing"
	"iot-console/internal/eventing/eventbus"
	eventingpg "iot-console/internal/eventing/infrastructure/postgres"
	"iot-console/internal/genai"
	maintpg "iot-console/internal/maintenance/infrastructure/postgres"
	onboardingapp "iot-console/internal/onboarding/application"
	onboarding "iot-console/internal/onboarding/domain"
	onboardinghttp "iot-console/internal/onboarding/interfaces/http"
	rulepg "iot-console/internal/rules/infrastructure/postgres"
	safetypg "iot-console/internal/safety/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestOnboarding_FullFlowPostgres(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := applyMigrations(db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	ctx := context.Background()
	for _, table := range []string{"rules", "maintenance_items", "safety_precautions", "devices", "event_outbox", "audit_logs"} {
		if _, err := db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			t.Fatalf("clean %s: %v", table, err)
		}
	}

	pipeline := httptest.NewServer(newFakePipeline())
	defer pipeline.Close()

	client, err := genai.NewPipelineClient(genai.PipelineConfig{
		BaseURL: pipeline.URL,
		Timeout: 10 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("pipeline client: %v", err)
	}

	deviceRepo := devicepg.NewRepository(db)
	ruleRepo := rulepg.NewRepository(db)
	maintRepo := maintpg.NewRepository(db)
	safetyRepo := safetypg.NewRepository(db)

	deviceService, err := deviceapp.NewDeviceService(deviceRepo, nil)
	if err != nil {
		t.Fatalf("device service: %v", err)
	}

	bus := eventbus.NewInMemoryBus()
	registry := eventing.NewRegistry()
	registry.Register(onboardingapp.DeviceOnboarded{})
	registry.Register(onboardingapp.OnboardingDegraded{})
	outboxStore := eventingpg.NewOutboxStore(db)
	dlqStore := eventingpg.NewDLQStore(db)
	publisher := eventing.NewPublisher(outboxStore, "org-int", bus, nil)
	dispatcher := eventing.NewDispatcher(bus, outboxStore, registry, dlqStore)

	orchestrator, err := onboardingapp.NewOrchestrator(client, deviceService, client, client, client, noopIndexer{},
		onboardingapp.WithPublisher(publisher),
		onboardingapp.WithStores(maintRepo, safetyRepo),
		onboardingapp.WithInterpolationInterval(0),
	)
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}
	manager, err := onboardingapp.NewManager(orchestrator, ruleRepo)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	defer manager.Close()
	handler, err := onboardinghttp.NewOnboardingHandler(manager, nil)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	runID := startRun(t, handler)
	run := waitForState(t, handler, runID, "COMPLETED")
	if len(run.Rules) != 3 {
		t.Fatalf("expected 3 proposed rules, got %d", len(run.Rules))
	}
	if run.Result == nil || run.Result.DeviceID == "" {
		t.Fatalf("expected device id in result, got %+v", run.Result)
	}
	deviceID := run.Result.DeviceID

	device, err := deviceRepo.Get(ctx, deviceID)
	if err != nil {
		t.Fatalf("device row: %v", err)
	}
	if device.Name != "Coolant Pump 7" || device.OrganizationID != "org-int" {
		t.Fatalf("unexpected device row: %+v", device)
	}

	items, err := maintRepo.ListByDevice(ctx, deviceID)
	if err != nil {
		t.Fatalf("maintenance rows: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 maintenance items, got %d", len(items))
	}
	precautions, err := safetyRepo.ListByDevice(ctx, deviceID)
	if err != nil {
		t.Fatalf("safety rows: %v", err)
	}
	if len(precautions) != 2 {
		t.Fatalf("expected 2 precautions, got %d", len(precautions))
	}

	// Rules are only persisted on explicit commit.
	persisted, err := ruleRepo.List(ctx, "org-int")
	if err != nil {
		t.Fatalf("rules before commit: %v", err)
	}
	if len(persisted) != 0 {
		t.Fatalf("expected no rules before commit, got %d", len(persisted))
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/onboarding/runs/"+runID+"/rules/commit", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("commit: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	persisted, err = ruleRepo.List(ctx, "org-int")
	if err != nil {
		t.Fatalf("rules after commit: %v", err)
	}
	if len(persisted) != 3 {
		t.Fatalf("expected 3 committed rules, got %d", len(persisted))
	}

	var outboxCount int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM event_outbox").Scan(&outboxCount); err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	if outboxCount == 0 {
		t.Fatal("expected an outbox record for the onboarded device")
	}
	result, err := dispatcher.Dispatch(ctx, 100)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if result.Sent != outboxCount || result.Failed != 0 {
		t.Fatalf("dispatch result: %+v", result)
	}
	var pending int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM event_outbox WHERE status = 'pending'").Scan(&pending); err != nil {
		t.Fatalf("count pending: %v", err)
	}
	if pending != 0 {
		t.Fatalf("expected no pending outbox records, got %d", pending)
	}
}

func TestOnboarding_DegradedWhenGenerationDown(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if err := applyMigrations(db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	for _, table := range []string{"rules", "maintenance_items", "safety_precautions", "devices"} {
		if _, err := db.ExecContext(context.Background(), "DELETE FROM "+table); err != nil {
			t.Fatalf("clean %s: %v", table, err)
		}
	}

	fake := newFakePipeline()
	fake.failGeneration = true
	pipeline := httptest.NewServer(fake)
	defer pipeline.Close()

	client, err := genai.NewPipelineClient(genai.PipelineConfig{
		BaseURL: pipeline.URL,
		Timeout: 5 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("pipeline client: %v", err)
	}

	deviceService, err := deviceapp.NewDeviceService(devicepg.NewRepository(db), nil)
	if err != nil {
		t.Fatalf("device service: %v", err)
	}
	orchestrator, err := onboardingapp.NewOrchestrator(client, deviceService, client, client, client, noopIndexer{},
		onboardingapp.WithInterpolationInterval(0),
	)
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}
	manager, err := onboardingapp.NewManager(orchestrator, nil)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	defer manager.Close()
	handler, err := onboardinghttp.NewOnboardingHandler(manager, nil)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	runID := startRun(t, handler)
	run := waitForState(t, handler, runID, "COMPLETED")

	// Generation is down but the upload succeeded, so the run completes
	// degraded with fallback rules instead of failing.
	if run.Result == nil || !run.Result.Degraded() {
		t.Fatalf("expected degraded result, got %+v", run.Result)
	}
	if len(run.Rules) == 0 {
		t.Fatal("expected fallback rule proposals")
	}
}

type startResponse struct {
	RunID string `json:"runId"`
	State string `json:"state"`
}

type runView struct {
	RunID  string             `json:"runId"`
	State  string             `json:"state"`
	Result *onboarding.Result `json:"result"`
	Rules  []json.RawMessage  `json:"rules"`
	Error  string             `json:"error"`
}

func startRun(t *testing.T, handler http.Handler) string {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("device", `{
		"name": "Coolant Pump 7",
		"deviceType": "pump",
		"location": "line-3",
		"connectionType": "MQTT",
		"organizationId": "org-int"
	}`); err != nil {
		t.Fatalf("device field: %v", err)
	}
	part, err := writer.CreateFormFile("file", "pump-manual.pdf")
	if err != nil {
		t.Fatalf("file part: %v", err)
	}
	if _, err := part.Write([]byte("coolant pump operating manual")); err != nil {
		t.Fatalf("file content: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/onboarding/runs", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("start: expected 202, got %d: %s", resp.Code, resp.Body.String())
	}
	var started startResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &started); err != nil {
		t.Fatalf("decode start: %v", err)
	}
	if started.RunID == "" {
		t.Fatal("empty run id")
	}
	return started.RunID
}

func waitForState(t *testing.T, handler http.Handler, runID, want string) runView {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/onboarding/runs/"+runID, nil)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("get run: expected 200, got %d", resp.Code)
		}
		var run runView
		if err := json.Unmarshal(resp.Body.Bytes(), &run); err != nil {
			t.Fatalf("decode run: %v", err)
		}
		switch run.State {
		case want:
			return run
		case "RUNNING":
			time.Sleep(50 * time.Millisecond)
		default:
			t.Fatalf("run reached %s (want %s): %s", run.State, want, run.Error)
		}
	}
	t.Fatalf("run %s did not reach %s in time", runID, want)
	return runView{}
}

func applyMigrations(db *sql.DB) error {
	path := filepath.Join(projectRoot(), "migrations", "001_init.sql")
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	_, err = db.Exec(string(content))
	return err
}

func projectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	return filepath.Clean(filepath.Join(dir, "..", "..", ".."))
}

type noopIndexer struct{}

func (noopIndexer) Index(context.Context, onboarding.DocumentationAsset, string) error { return nil }

type fakePipeline struct {
	mux            *http.ServeMux
	failGeneration bool
}

func newFakePipeline() *fakePipeline {
	f := &fakePipeline{mux: http.NewServeMux()}
	f.mux.HandleFunc("/api/v1/documents", f.handleUpload)
	f.mux.HandleFunc("/api/v1/generate/rules", func(w http.ResponseWriter, r *http.Request) {
		f.handleGenerate(w, r, map[string]any{
			"rules": []map[string]any{
				{"name": "High temperature", "metric": "temperature", "operator": ">", "value": "85", "actionType": "notification", "priority": "HIGH", "category": "temperature"},
				{"name": "Connection lost", "metric": "last_seen_seconds", "operator": ">", "value": "300", "actionType": "notification", "priority": "HIGH", "category": "connectivity"},
				{"name": "Low flow", "metric": "flow_lpm", "operator": "<", "value": "10", "actionType": "notification", "priority": "MEDIUM", "category": "performance"},
			},
		})
	})
	f.mux.HandleFunc("/api/v1/generate/maintenance", func(w http.ResponseWriter, r *http.Request) {
		f.handleGenerate(w, r, map[string]any{
			"items": []map[string]any{
				{"taskName": "Inspect seals", "frequency": "monthly", "priority": "HIGH", "estimatedMins": 30},
				{"taskName": "Replace filter", "frequency": "quarterly", "priority": "MEDIUM", "estimatedMins": 45},
			},
		})
	})
	f.mux.HandleFunc("/api/v1/generate/safety", func(w http.ResponseWriter, r *http.Request) {
		f.handleGenerate(w, r, map[string]any{
			"precautions": []map[string]any{
				{"title": "Disconnect power before servicing", "severity": "CRITICAL", "category": "electrical", "mitigation": "Lock out the breaker"},
				{"title": "Hot surfaces", "severity": "HIGH", "recommendedPpe": "Heat-resistant gloves"},
			},
		})
	})
	return f
}

func (f *fakePipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mux.ServeHTTP(w, r)
}

func (f *fakePipeline) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, `{"error":"bad form"}`, http.StatusBadRequest)
		return
	}
	if _, _, err := r.FormFile("file"); err != nil {
		http.Error(w, `{"error":"missing file"}`, http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"documentId": "doc-0001"})
}

func (f *fakePipeline) handleGenerate(w http.ResponseWriter, r *http.Request, body map[string]any) {
	if f.failGeneration {
		http.Error(w, `{"error":"pipeline down"}`, http.StatusServiceUnavailable)
		return
	}
	var req struct {
		DocumentID string `json:"documentId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DocumentID == "" {
		http.Error(w, `{"error":"missing documentId"}`, http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
