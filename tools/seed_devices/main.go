// seed_devices populates a console database with demo devices and their
// generated content, and can optionally start real onboarding runs against a
// running API instead of writing rows directly.
package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type config struct {
	dsn            string
	baseURL        string
	authToken      string
	organizationID string
	devicePrefix   string
	deviceCount    int
	rulesPerDevice int
	startRuns      bool
}

func main() {
	cfg := parseConfig()
	if cfg.deviceCount <= 0 {
		log.Fatal("device-count must be > 0")
	}

	ctx := context.Background()

	if cfg.startRuns {
		if cfg.baseURL == "" {
			log.Fatal("base-url is required when start-runs is enabled")
		}
		log.Printf("starting onboarding runs: devices=%d org=%s", cfg.deviceCount, cfg.organizationID)
		if err := startRuns(ctx, cfg); err != nil {
			log.Fatalf("start runs: %v", err)
		}
		log.Printf("seed completed via onboarding API")
		return
	}

	if cfg.dsn == "" {
		log.Fatal("PG_DSN or DATABASE_URL is required")
	}
	db, err := sql.Open("pgx", cfg.dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	log.Printf("seeding devices: count=%d org=%s rules-per-device=%d", cfg.deviceCount, cfg.organizationID, cfg.rulesPerDevice)
	if err := seedDirect(ctx, db, cfg); err != nil {
		log.Fatalf("seed: %v", err)
	}
	log.Printf("seed completed")
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.dsn, "pg-dsn", envOrDefault("PG_DSN", envOrDefault("DATABASE_URL", "")), "Postgres DSN")
	flag.StringVar(&cfg.baseURL, "base-url", envOrDefault("BASE_URL", ""), "console API base URL")
	flag.StringVar(&cfg.authToken, "auth-token", envOrDefault("AUTH_TOKEN", ""), "bearer token for API calls")
	flag.StringVar(&cfg.organizationID, "org", envOrDefault("ORGANIZATION_ID", "org-demo"), "organization id")
	flag.StringVar(&cfg.devicePrefix, "device-prefix", envOrDefault("DEVICE_PREFIX", "demo-pump-"), "device name prefix")
	flag.IntVar(&cfg.deviceCount, "device-count", envOrInt("DEVICE_COUNT", 10), "number of devices to seed")
	flag.IntVar(&cfg.rulesPerDevice, "rules-per-device", envOrInt("RULES_PER_DEVICE", 3), "monitoring rules per device")
	flag.BoolVar(&cfg.startRuns, "start-runs", envOrBool("START_RUNS", false), "start onboarding runs via the API instead of writing rows")
	flag.Parse()
	return cfg
}

func seedDirect(ctx context.Context, db *sql.DB, cfg config) error {
	now := time.Now().UTC()
	for i := 1; i <= cfg.deviceCount; i++ {
		deviceID := uuid.NewString()
		name := fmt.Sprintf("%s%04d", cfg.devicePrefix, i)
		if _, err := db.ExecContext(ctx, `
INSERT INTO devices (
	id, name, device_type, location, manufacturer, model,
	connection_type, connection_config, organization_id, status, created_at, updated_at
) VALUES ($1, $2, 'pump', 'demo-hall', 'Seeder', 'S-1000', 'MQTT', '{}', $3, 'ACTIVE', $4, $4)
ON CONFLICT (id) DO NOTHING`, deviceID, name, cfg.organizationID, now); err != nil {
			return fmt.Errorf("insert device %s: %w", name, err)
		}

		for r := 1; r <= cfg.rulesPerDevice; r++ {
			conditions, _ := json.Marshal([]map[string]any{
				{"deviceId": deviceID, "metric": "temperature", "operator": ">", "value": strconv.Itoa(60 + r*10)},
			})
			actions, _ := json.Marshal([]map[string]any{
				{"type": "notification", "target": "operators"},
			})
			if _, err := db.ExecContext(ctx, `
INSERT INTO rules (
	id, name, description, conditions, actions, priority,
	organization_id, active, created_at, updated_at
) VALUES ($1, $2, 'seeded rule', $3, $4, 'MEDIUM', $5, TRUE, $6, $6)
ON CONFLICT (id) DO NOTHING`, uuid.NewString(), fmt.Sprintf("%s temp > %d", name, 60+r*10), conditions, actions, cfg.organizationID, now); err != nil {
				return fmt.Errorf("insert rule for %s: %w", name, err)
			}
		}

		if _, err := db.ExecContext(ctx, `
INSERT INTO maintenance_items (
	id, device_id, task_name, description, frequency, priority,
	estimated_mins, last_maintenance, next_maintenance, created_at
) VALUES ($1, $2, 'Inspect seals', 'seeded task', 'monthly', 'HIGH', 30, NULL, $3, $4)
ON CONFLICT (id) DO NOTHING`, uuid.NewString(), deviceID, now.AddDate(0, 1, 0), now); err != nil {
			return fmt.Errorf("insert maintenance for %s: %w", name, err)
		}

		if _, err := db.ExecContext(ctx, `
INSERT INTO safety_precautions (
	id, device_id, title, description, severity, category,
	mitigation, about_reaction, recommended_ppe, created_at
) VALUES ($1, $2, 'Disconnect power before servicing', 'seeded precaution', 'CRITICAL', 'electrical', 'Lock out the breaker', '', 'Insulated gloves', $3)
ON CONFLICT (id) DO NOTHING`, uuid.NewString(), deviceID, now); err != nil {
			return fmt.Errorf("insert precaution for %s: %w", name, err)
		}
	}
	return nil
}

func startRuns(ctx context.Context, cfg config) error {
	client := &http.Client{Timeout: 30 * time.Second}
	for i := 1; i <= cfg.deviceCount; i++ {
		name := fmt.Sprintf("%s%04d", cfg.devicePrefix, i)
		runID, err := startRun(ctx, client, cfg, name)
		if err != nil {
			return fmt.Errorf("device %s: %w", name, err)
		}
		log.Printf("run started: device=%s run=%s", name, runID)
	}
	return nil
}

func startRun(ctx context.Context, client *http.Client, cfg config, name string) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	device, _ := json.Marshal(map[string]string{
		"name":           name,
		"deviceType":     "pump",
		"location":       "demo-hall",
		"connectionType": "MQTT",
		"organizationId": cfg.organizationID,
	})
	if err := writer.WriteField("device", string(device)); err != nil {
		return "", err
	}
	part, err := writer.CreateFormFile("file", name+"-manual.txt")
	if err != nil {
		return "", err
	}
	if _, err := part.Write([]byte("seeded demo manual for " + name)); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.baseURL+"/api/v1/onboarding/runs", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if cfg.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.authToken)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	var out struct {
		RunID string `json:"runId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.RunID, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
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

func envOrBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
