package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	onboardingapp "iot-console/internal/onboarding/application"
)

// OnboardingConsumer turns onboarding events into operator notifications.
type OnboardingConsumer struct {
	channel Channel
	logger  *zap.Logger
}

// NewOnboardingConsumer constructs a consumer.
func NewOnboardingConsumer(channel Channel, logger *zap.Logger) (*OnboardingConsumer, error) {
	if channel == nil {
		return nil, errors.New("notify consumer: nil channel")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OnboardingConsumer{channel: channel, logger: logger}, nil
}

// HandleDeviceOnboarded notifies about a finished run.
func (c *OnboardingConsumer) HandleDeviceOnboarded(ctx context.Context, event onboardingapp.DeviceOnboarded) error {
	content := fmt.Sprintf(
		"Device onboarded: %s\nRules: %d, maintenance tasks: %d, safety precautions: %d",
		event.DeviceID, event.RuleCount, event.MaintenanceCount, event.SafetyCount,
	)
	if len(event.DegradedStages) > 0 {
		content += "\nDegraded stages: " + strings.Join(event.DegradedStages, ", ")
	}
	return c.channel.Send(ctx, content)
}

// HandleOnboardingDegraded notifies that default content was substituted.
func (c *OnboardingConsumer) HandleOnboardingDegraded(ctx context.Context, event onboardingapp.OnboardingDegraded) error {
	content := fmt.Sprintf(
		"Onboarding for device %s completed with fallback content.\nStages degraded: %s\nReview the generated rules before committing.",
		event.DeviceID, strings.Join(event.Stages, ", "),
	)
	return c.channel.Send(ctx, content)
}

// Consume adapts the bus delivery to the typed handlers.
func (c *OnboardingConsumer) Consume(ctx context.Context, event any) error {
	switch e := event.(type) {
	case onboardingapp.DeviceOnboarded:
		return c.HandleDeviceOnboarded(ctx, e)
	case onboardingapp.OnboardingDegraded:
		return c.HandleOnboardingDegraded(ctx, e)
	default:
		c.logger.Warn("notify_unexpected_event", zap.String("type", fmt.Sprintf("%T", event)))
		return nil
	}
}
