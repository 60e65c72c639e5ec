package genai

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	maintenance "iot-console/internal/maintenance/domain"
	onboarding "iot-console/internal/onboarding/domain"
	rules "iot-console/internal/rules/domain"
	safety "iot-console/internal/safety/domain"
)

// maxPromptBytes caps how much documentation text goes into one prompt.
const maxPromptBytes = 48 << 10

// chatCompleter is the slice of the OpenAI client the backend uses.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIBackend generates content by prompting a chat model directly, with
// no pipeline service in between. Uploaded documents are held in memory for
// the lifetime of the run, keyed by the returned document id.
type OpenAIBackend struct {
	client chatCompleter
	model  string
	logger *zap.Logger

	mu   sync.RWMutex
	docs map[string][]byte
}

// NewOpenAIBackend constructs a backend. baseURL is optional and points the
// client at a compatible self-hosted endpoint.
func NewOpenAIBackend(apiKey, model, baseURL string, logger *zap.Logger) (*OpenAIBackend, error) {
	if apiKey == "" {
		return nil, errors.New("genai: empty api key")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIBackend{
		client: openai.NewClientWithConfig(config),
		model:  model,
		logger: logger,
		docs:   make(map[string][]byte),
	}, nil
}

// Upload keeps the documentation text for the generation prompts.
func (b *OpenAIBackend) Upload(_ context.Context, asset onboarding.DocumentationAsset) (string, error) {
	if asset.Empty() {
		return "", errors.New("genai: empty documentation asset")
	}
	id := uuid.NewString()
	b.mu.Lock()
	b.docs[id] = asset.Content
	b.mu.Unlock()
	return id, nil
}

// Forget drops a stored document once the run no longer needs it.
func (b *OpenAIBackend) Forget(remoteID string) {
	b.mu.Lock()
	delete(b.docs, remoteID)
	b.mu.Unlock()
}

func (b *OpenAIBackend) document(remoteID string) (string, error) {
	b.mu.RLock()
	content, ok := b.docs[remoteID]
	b.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("genai: unknown document %s", remoteID)
	}
	if len(content) > maxPromptBytes {
		content = content[:maxPromptBytes]
	}
	return string(content), nil
}

func (b *OpenAIBackend) complete(ctx context.Context, template, remoteID string) (string, error) {
	text, err := b.document(remoteID)
	if err != nil {
		return "", err
	}
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(template, text)},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("genai: chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("genai: chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateRules prompts the model for monitoring rules.
func (b *OpenAIBackend) GenerateRules(ctx context.Context, remoteID string) ([]rules.GeneratedRule, error) {
	raw, err := b.complete(ctx, rulesPromptTemplate, remoteID)
	if err != nil {
		return nil, err
	}
	payloads, err := decodeRuleArray(raw)
	if err != nil {
		return nil, err
	}
	out, err := mapRules(payloads)
	if err != nil {
		return nil, err
	}
	b.logger.Info("rules_generated", zap.String("document_id", remoteID), zap.Int("count", len(out)))
	return out, nil
}

// GenerateMaintenance prompts the model for a maintenance schedule.
func (b *OpenAIBackend) GenerateMaintenance(ctx context.Context, remoteID string) ([]maintenance.Item, error) {
	raw, err := b.complete(ctx, maintenancePromptTemplate, remoteID)
	if err != nil {
		return nil, err
	}
	payloads, err := decodeMaintenanceArray(raw)
	if err != nil {
		return nil, err
	}
	out := mapMaintenance(payloads)
	b.logger.Info("maintenance_generated", zap.String("document_id", remoteID), zap.Int("count", len(out)))
	return out, nil
}

// GenerateSafety prompts the model for safety precautions.
func (b *OpenAIBackend) GenerateSafety(ctx context.Context, remoteID string) ([]safety.Precaution, error) {
	raw, err := b.complete(ctx, safetyPromptTemplate, remoteID)
	if err != nil {
		return nil, err
	}
	payloads, err := decodeSafetyArray(raw)
	if err != nil {
		return nil, err
	}
	out := mapSafety(payloads)
	b.logger.Info("safety_generated", zap.String("document_id", remoteID), zap.Int("count", len(out)))
	return out, nil
}
