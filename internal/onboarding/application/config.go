package application

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	rules "iot-console/internal/rules/domain"
)

// Config defines onboarding configuration.
type Config struct {
	Policy                rules.SelectionPolicy `yaml:"policy"`
	InterpolationMs       int                   `yaml:"interpolation_ms"`
	RunRetentionMinutes   int                   `yaml:"run_retention_minutes"`
	MaxUploadBytes        int64                 `yaml:"max_upload_bytes"`
	GenerationTimeoutSecs int                   `yaml:"generation_timeout_secs"`
}

// LoadConfig loads onboarding config from yaml or env. ONBOARDING_CONFIG
// points at the yaml file; env vars fill anything the file leaves unset.
func LoadConfig() (Config, error) {
	cfg := Config{
		Policy:                rules.DefaultSelectionPolicy(),
		InterpolationMs:       getenvIntDefault("ONBOARDING_INTERPOLATION_MS", 400),
		RunRetentionMinutes:   getenvIntDefault("ONBOARDING_RUN_RETENTION_MINUTES", 30),
		MaxUploadBytes:        int64(getenvIntDefault("ONBOARDING_MAX_UPLOAD_BYTES", 25<<20)),
		GenerationTimeoutSecs: getenvIntDefault("ONBOARDING_GENERATION_TIMEOUT_SECS", 120),
	}

	if path := os.Getenv("ONBOARDING_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		var fileCfg Config
		fileCfg.Policy = rules.DefaultSelectionPolicy()
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, err
		}
		mergeConfig(&cfg, fileCfg)
	}

	if threshold := getenvFloatDefault("ONBOARDING_HIGH_TEMP_THRESHOLD_C", 0); threshold > 0 {
		cfg.Policy.HighTempThresholdC = threshold
	}
	if cfg.Policy.HighTempThresholdC <= 0 {
		cfg.Policy.HighTempThresholdC = rules.DefaultSelectionPolicy().HighTempThresholdC
	}
	return cfg, nil
}

// InterpolationInterval returns the configured tick as a duration.
func (c Config) InterpolationInterval() time.Duration {
	return time.Duration(c.InterpolationMs) * time.Millisecond
}

// RunRetention returns the configured retention as a duration.
func (c Config) RunRetention() time.Duration {
	return time.Duration(c.RunRetentionMinutes) * time.Minute
}

// GenerationTimeout returns the per-stage remote call timeout.
func (c Config) GenerationTimeout() time.Duration {
	return time.Duration(c.GenerationTimeoutSecs) * time.Second
}

func mergeConfig(cfg *Config, file Config) {
	if len(file.Policy.Defaults) > 0 {
		cfg.Policy.Defaults = file.Policy.Defaults
	}
	if file.Policy.HighTempThresholdC > 0 {
		cfg.Policy.HighTempThresholdC = file.Policy.HighTempThresholdC
	}
	if file.InterpolationMs > 0 {
		cfg.InterpolationMs = file.InterpolationMs
	}
	if file.RunRetentionMinutes > 0 {
		cfg.RunRetentionMinutes = file.RunRetentionMinutes
	}
	if file.MaxUploadBytes > 0 {
		cfg.MaxUploadBytes = file.MaxUploadBytes
	}
	if file.GenerationTimeoutSecs > 0 {
		cfg.GenerationTimeoutSecs = file.GenerationTimeoutSecs
	}
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

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
