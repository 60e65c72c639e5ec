// Package genai talks to the AI generation backends that turn uploaded
// device documentation into monitoring rules, maintenance schedules and
// safety precautions.
package genai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	maintenance "iot-console/internal/maintenance/domain"
	onboarding "iot-console/internal/onboarding/domain"
	rules "iot-console/internal/rules/domain"
	safety "iot-console/internal/safety/domain"
)

// PipelineConfig configures the generation pipeline client.
type PipelineConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RetryCount int
}

// PipelineClient calls the document analysis pipeline over HTTP. It serves
// the orchestrator's upload and all three generation ports.
type PipelineClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewPipelineClient constructs a client.
func NewPipelineClient(cfg PipelineConfig, logger *zap.Logger) (*PipelineClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("genai: empty base url")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	return &PipelineClient{httpClient: client, logger: logger}, nil
}

type uploadResponse struct {
	DocumentID string `json:"documentId"`
	Error      string `json:"error,omitempty"`
}

// Upload sends the documentation asset and returns the pipeline's document
// id used by the generation calls.
func (c *PipelineClient) Upload(ctx context.Context, asset onboarding.DocumentationAsset) (string, error) {
	var response uploadResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFileReader("file", asset.Filename, bytesReader(asset.Content)).
		SetFormData(map[string]string{"contentType": asset.ContentType}).
		SetResult(&response).
		Post("/api/v1/documents")
	if err != nil {
		return "", fmt.Errorf("genai: upload failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("genai: upload rejected: %s", resp.Status())
	}
	if response.DocumentID == "" {
		return "", errors.New("genai: upload response missing document id")
	}
	c.logger.Info("document_uploaded",
		zap.String("file", asset.Filename),
		zap.String("document_id", response.DocumentID),
	)
	return response.DocumentID, nil
}

type generateRequest struct {
	DocumentID string `json:"documentId"`
}

type rulesResponse struct {
	Rules []rulePayload `json:"rules"`
	Error string        `json:"error,omitempty"`
}

type maintenanceResponse struct {
	Items []maintenancePayload `json:"items"`
	Error string               `json:"error,omitempty"`
}

type safetyResponse struct {
	Precautions []safetyPayload `json:"precautions"`
	Error       string          `json:"error,omitempty"`
}

// GenerateRules asks the pipeline for monitoring rule proposals.
func (c *PipelineClient) GenerateRules(ctx context.Context, remoteID string) ([]rules.GeneratedRule, error) {
	var response rulesResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(generateRequest{DocumentID: remoteID}).
		SetResult(&response).
		Post("/api/v1/generate/rules")
	if err != nil {
		return nil, fmt.Errorf("genai: rule generation failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("genai: rule generation rejected: %s", resp.Status())
	}
	if response.Error != "" {
		return nil, fmt.Errorf("genai: rule generation error: %s", response.Error)
	}
	out, err := mapRules(response.Rules)
	if err != nil {
		return nil, err
	}
	c.logger.Info("rules_generated", zap.String("document_id", remoteID), zap.Int("count", len(out)))
	return out, nil
}

// GenerateMaintenance asks the pipeline for a maintenance schedule.
func (c *PipelineClient) GenerateMaintenance(ctx context.Context, remoteID string) ([]maintenance.Item, error) {
	var response maintenanceResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(generateRequest{DocumentID: remoteID}).
		SetResult(&response).
		Post("/api/v1/generate/maintenance")
	if err != nil {
		return nil, fmt.Errorf("genai: maintenance generation failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("genai: maintenance generation rejected: %s", resp.Status())
	}
	if response.Error != "" {
		return nil, fmt.Errorf("genai: maintenance generation error: %s", response.Error)
	}
	out := mapMaintenance(response.Items)
	c.logger.Info("maintenance_generated", zap.String("document_id", remoteID), zap.Int("count", len(out)))
	return out, nil
}

// GenerateSafety asks the pipeline for safety precautions.
func (c *PipelineClient) GenerateSafety(ctx context.Context, remoteID string) ([]safety.Precaution, error) {
	var response safetyResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(generateRequest{DocumentID: remoteID}).
		SetResult(&response).
		Post("/api/v1/generate/safety")
	if err != nil {
		return nil, fmt.Errorf("genai: safety generation failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("genai: safety generation rejected: %s", resp.Status())
	}
	if response.Error != "" {
		return nil, fmt.Errorf("genai: safety generation error: %s", response.Error)
	}
	out := mapSafety(response.Precautions)
	c.logger.Info("safety_generated", zap.String("document_id", remoteID), zap.Int("count", len(out)))
	return out, nil
}
