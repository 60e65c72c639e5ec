package application

import (
	"context"
	"time"

	maintenance "iot-console/internal/maintenance/domain"
	onboarding "iot-console/internal/onboarding/domain"
	rules "iot-console/internal/rules/domain"
	safety "iot-console/internal/safety/domain"
)

// DocumentStore uploads the documentation asset and returns its remote id.
// Failure is fatal for the run.
type DocumentStore interface {
	Upload(ctx context.Context, asset onboarding.DocumentationAsset) (string, error)
}

// DeviceCreator persists the device draft and returns the new device id.
// Failure is fatal for the run.
type DeviceCreator interface {
	Create(ctx context.Context, draft onboarding.DeviceDraft) (string, error)
}

// RuleGenerator proposes monitoring rules from the uploaded documentation.
type RuleGenerator interface {
	GenerateRules(ctx context.Context, remoteID string) ([]rules.GeneratedRule, error)
}

// MaintenanceGenerator proposes a maintenance schedule from the uploaded
// documentation.
type MaintenanceGenerator interface {
	GenerateMaintenance(ctx context.Context, remoteID string) ([]maintenance.Item, error)
}

// SafetyGenerator extracts safety precautions from the uploaded
// documentation.
type SafetyGenerator interface {
	GenerateSafety(ctx context.Context, remoteID string) ([]safety.Precaution, error)
}

// KnowledgeIndexer makes the documentation searchable in the knowledge base.
type KnowledgeIndexer interface {
	Index(ctx context.Context, asset onboarding.DocumentationAsset, deviceID string) error
}

// EventPublisher forwards domain events, usually through the outbox.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

// MaintenanceStore persists a generated maintenance schedule.
type MaintenanceStore interface {
	SaveAll(ctx context.Context, deviceID string, items []maintenance.Item) error
}

// SafetyStore persists generated safety precautions.
type SafetyStore interface {
	SaveAll(ctx context.Context, deviceID string, precautions []safety.Precaution) error
}

// RuleStore persists committed rules.
type RuleStore interface {
	SaveAll(ctx context.Context, list []rules.Rule) error
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}
