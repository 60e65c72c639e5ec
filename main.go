package main

import (
	"context"
	"database/sql"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.uber.org/zap"

	"iot-console/internal/audit"
	"iot-console/internal/auth"
	deviceapp "iot-console/internal/devices/application"
	devicerepo "iot-console/internal/devices/infrastructure/postgres"
	devicehttp "iot-console/internal/devices/interfaces/http"
	"iot-console/internal/eventing"
	"iot-console/internal/eventing/eventbus"
	eventingrepo "iot-console/internal/eventing/infrastructure/postgres"
	"iot-console/internal/genai"
	"iot-console/internal/knowledge"
	"iot-console/internal/logging"
	maintrepo "iot-console/internal/maintenance/infrastructure/postgres"
	"iot-console/internal/notify"
	"iot-console/internal/observability/metrics"
	onboardingapp "iot-console/internal/onboarding/application"
	onboarding "iot-console/internal/onboarding/domain"
	onboardinghttp "iot-console/internal/onboarding/interfaces/http"
	"iot-console/internal/reports"
	rulerepo "iot-console/internal/rules/infrastructure/postgres"
	rulehttp "iot-console/internal/rules/interfaces/http"
	safetyrepo "iot-console/internal/safety/infrastructure/postgres"
)

func main() {
	cfg := loadConfig()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, "iot-console")
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db_open_error", zap.Error(err))
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatal("db_ping_error", zap.Error(err))
	}

	metrics.Init(db, logger)

	appCfg, err := onboardingapp.LoadConfig()
	if err != nil {
		logger.Fatal("onboarding_config_error", zap.Error(err))
	}

	auditRepo := audit.NewRepository(db)
	deviceRepo := devicerepo.NewRepository(db)
	ruleRepo := rulerepo.NewRepository(db)
	maintenanceRepo := maintrepo.NewRepository(db)
	safetyRepo := safetyrepo.NewRepository(db)

	deviceService, err := deviceapp.NewDeviceService(deviceRepo, logger)
	if err != nil {
		logger.Fatal("device_service_error", zap.Error(err))
	}

	backend, err := buildGenerationBackend(cfg, appCfg, logger)
	if err != nil {
		logger.Fatal("generation_backend_error", zap.Error(err))
	}

	indexer, searchHandler := buildKnowledge(cfg, logger)

	bus := eventbus.NewInMemoryBus()
	registry := eventing.NewRegistry()
	registry.Register(onboardingapp.DeviceOnboarded{})
	registry.Register(onboardingapp.OnboardingDegraded{})

	outboxStore := eventingrepo.NewOutboxStore(db)
	processedStore := eventingrepo.NewProcessedStore(db)
	dlqStore := eventingrepo.NewDLQStore(db)
	dispatcher := eventing.NewDispatcher(bus, outboxStore, registry, dlqStore,
		eventing.WithDispatcherLogger(logger))
	publisher := eventing.NewPublisher(outboxStore, cfg.OrganizationID, bus, logger)

	if cfg.NotifyWebhookURL != "" {
		channel, err := notify.NewWebhookChannel(cfg.NotifyWebhookURL)
		if err != nil {
			logger.Fatal("notify_webhook_error", zap.Error(err))
		}
		consumer, err := notify.NewOnboardingConsumer(channel, logger)
		if err != nil {
			logger.Fatal("notify_consumer_error", zap.Error(err))
		}
		eventing.Subscribe(bus, eventbus.EventTypeOf[onboardingapp.DeviceOnboarded](), "notify.onboarded", consumer.Consume, processedStore)
		eventing.Subscribe(bus, eventbus.EventTypeOf[onboardingapp.OnboardingDegraded](), "notify.degraded", consumer.Consume, processedStore)
	}

	orchestrator, err := onboardingapp.NewOrchestrator(
		backend, deviceService, backend, backend, backend, indexer,
		onboardingapp.WithPublisher(publisher),
		onboardingapp.WithSelectionPolicy(appCfg.Policy),
		onboardingapp.WithStores(maintenanceRepo, safetyRepo),
		onboardingapp.WithLogger(logger),
		onboardingapp.WithInterpolationInterval(appCfg.InterpolationInterval()),
	)
	if err != nil {
		logger.Fatal("orchestrator_error", zap.Error(err))
	}

	manager, err := onboardingapp.NewManager(orchestrator, ruleRepo,
		onboardingapp.WithRunRetention(appCfg.RunRetention()),
		onboardingapp.WithManagerLogger(logger),
	)
	if err != nil {
		logger.Fatal("run_manager_error", zap.Error(err))
	}
	defer manager.Close()

	go dispatchLoop(dispatcher, cfg.DispatchInterval, logger)

	onboardingHandler, err := onboardinghttp.NewOnboardingHandler(manager, auditRepo,
		onboardinghttp.WithMaxUploadBytes(appCfg.MaxUploadBytes))
	if err != nil {
		logger.Fatal("onboarding_handler_error", zap.Error(err))
	}
	ruleHandler, err := rulehttp.NewRuleHandler(ruleRepo, auditRepo)
	if err != nil {
		logger.Fatal("rule_handler_error", zap.Error(err))
	}
	deviceHandler, err := devicehttp.NewDeviceHandler(deviceService, auditRepo)
	if err != nil {
		logger.Fatal("device_handler_error", zap.Error(err))
	}
	reportHandler, err := reports.NewHandler(deviceService, ruleRepo, maintenanceRepo, safetyRepo, auditRepo)
	if err != nil {
		logger.Fatal("report_handler_error", zap.Error(err))
	}

	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), auth.NewPolicy())
	opsAuth := auth.NewOpsAuthMiddleware([]byte(cfg.OpsSecret), time.Duration(cfg.OpsSkewSeconds)*time.Second)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/onboarding/runs", onboardingHandler)
	mux.Handle("/api/v1/onboarding/runs/", onboardingHandler)
	mux.Handle("/api/v1/rules", ruleHandler)
	mux.Handle("/api/v1/rules/", ruleHandler)
	mux.Handle("/api/v1/devices", deviceHandler)
	mux.HandleFunc("/api/v1/devices/", func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/reports/") {
			reportHandler.ServeHTTP(w, r)
			return
		}
		deviceHandler.ServeHTTP(w, r)
	})
	if searchHandler != nil {
		mux.Handle("/api/v1/knowledge/search", searchHandler)
	}
	mux.Handle("/internal/events/dispatch", opsAuth.Wrap(dispatchHandler(dispatcher, logger)))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Info("http_listening", zap.String("addr", cfg.HTTPAddr))
	logger.Fatal("http_server_stopped", zap.Error(server.ListenAndServe()))
}

// generationBackend is both the document store and the three generators.
type generationBackend interface {
	onboardingapp.DocumentStore
	onboardingapp.RuleGenerator
	onboardingapp.MaintenanceGenerator
	onboardingapp.SafetyGenerator
}

func buildGenerationBackend(cfg config, appCfg onboardingapp.Config, logger *zap.Logger) (generationBackend, error) {
	if cfg.AIPipelineURL != "" {
		return genai.NewPipelineClient(genai.PipelineConfig{
			BaseURL:    cfg.AIPipelineURL,
			APIKey:     cfg.AIPipelineAPIKey,
			Timeout:    appCfg.GenerationTimeout(),
			RetryCount: cfg.AIPipelineRetries,
		}, logger)
	}
	return genai.NewOpenAIBackend(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, logger)
}

func buildKnowledge(cfg config, logger *zap.Logger) (onboardingapp.KnowledgeIndexer, *knowledge.SearchHandler) {
	if cfg.WeaviateURL == "" {
		logger.Warn("weaviate_disabled")
		return noopIndexer{}, nil
	}
	parsed, err := url.Parse(cfg.WeaviateURL)
	if err != nil || parsed.Host == "" {
		logger.Fatal("weaviate_url_error", zap.String("url", cfg.WeaviateURL))
	}
	client, err := weaviate.NewClient(weaviate.Config{Host: parsed.Host, Scheme: parsed.Scheme})
	if err != nil {
		logger.Fatal("weaviate_client_error", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := knowledge.EnsureSchema(ctx, client); err != nil {
		logger.Fatal("weaviate_schema_error", zap.Error(err))
	}
	indexer, err := knowledge.NewIndexer(client, logger)
	if err != nil {
		logger.Fatal("knowledge_indexer_error", zap.Error(err))
	}
	searchHandler, err := knowledge.NewSearchHandler(indexer)
	if err != nil {
		logger.Fatal("knowledge_handler_error", zap.Error(err))
	}
	return indexer, searchHandler
}

// noopIndexer stands in when no knowledge base is configured.
type noopIndexer struct{}

func (noopIndexer) Index(_ context.Context, _ onboarding.DocumentationAsset, _ string) error {
	return nil
}

func dispatchLoop(dispatcher *eventing.Dispatcher, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		result, err := dispatcher.Dispatch(context.Background(), 100)
		if err != nil {
			logger.Warn("outbox_dispatch_error", zap.Error(err))
			continue
		}
		if result.Failed > 0 || result.DLQ > 0 {
			logger.Warn("outbox_dispatch_partial",
				zap.Int("sent", result.Sent),
				zap.Int("failed", result.Failed),
				zap.Int("dlq", result.DLQ))
		}
	}
}

func dispatchHandler(dispatcher *eventing.Dispatcher, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		result, err := dispatcher.Dispatch(r.Context(), 500)
		if err != nil {
			logger.Warn("outbox_dispatch_error", zap.Error(err))
			http.Error(w, "dispatch error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(
			`{"sent":` + strconv.Itoa(result.Sent) +
				`,"failed":` + strconv.Itoa(result.Failed) +
				`,"dlq":` + strconv.Itoa(result.DLQ) + `}`))
	})
}

type config struct {
	DatabaseURL       string
	HTTPAddr          string
	OrganizationID    string
	JWTSecret         string
	OpsSecret         string
	OpsSkewSeconds    int
	AIPipelineURL     string
	AIPipelineAPIKey  string
	AIPipelineRetries int
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIBaseURL     string
	WeaviateURL       string
	NotifyWebhookURL  string
	DispatchInterval  time.Duration
	LogLevel          string
	LogFormat         string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:       getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:          getenvDefault("HTTP_ADDR", ":8080"),
		OrganizationID:    getenvDefault("ORGANIZATION_ID", "org-demo"),
		JWTSecret:         getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		OpsSecret:         getenvDefault("OPS_HMAC_SECRET", ""),
		OpsSkewSeconds:    getenvIntDefault("OPS_MAX_SKEW_SECONDS", 300),
		AIPipelineURL:     getenvDefault("AI_PIPELINE_URL", ""),
		AIPipelineAPIKey:  getenvDefault("AI_PIPELINE_API_KEY", ""),
		AIPipelineRetries: getenvIntDefault("AI_PIPELINE_RETRIES", 2),
		OpenAIAPIKey:      getenvDefault("OPENAI_API_KEY", ""),
		OpenAIModel:       getenvDefault("OPENAI_MODEL", ""),
		OpenAIBaseURL:     getenvDefault("OPENAI_BASE_URL", ""),
		WeaviateURL:       getenvDefault("WEAVIATE_URL", ""),
		NotifyWebhookURL:  getenvDefault("NOTIFY_WEBHOOK_URL", ""),
		DispatchInterval:  getenvDuration("OUTBOX_DISPATCH_INTERVAL", 2*time.Second),
		LogLevel:          getenvDefault("LOG_LEVEL", "info"),
		LogFormat:         getenvDefault("LOG_FORMAT", "json"),
	}
	if cfg.DatabaseURL == "" {
		panic("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		panic("AUTH_JWT_SECRET is required")
	}
	if cfg.AIPipelineURL == "" && cfg.OpenAIAPIKey == "" {
		panic("AI_PIPELINE_URL or OPENAI_API_KEY is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Info("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", resp.status),
			zap.Duration("duration", time.Since(start)))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush forwards SSE flushes through the logging wrapper.
func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
