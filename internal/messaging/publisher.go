package messaging

import (
	"context"

	"go.uber.org/zap"

	"github.com/feral-file/ff-rewards/internal/domain"
	"github.com/feral-file/ff-rewards/internal/logger"
)

// Publisher defines the interface for publishing reward events to the message broker
//
//go:generate mockgen -source=publisher.go -destination=../mocks/publisher.go -package=mocks -mock_names=Publisher=MockPublisher
type Publisher interface {
	// PublishRewardEvent publishes a committed reward event
	PublishRewardEvent(ctx context.Context, event *domain.RewardEvent) error
	// Close closes the connection
	Close()
}

type noopPublisher struct{}

// NewNoopPublisher returns a publisher that drops every event. It is used when no broker is configured.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) PublishRewardEvent(context.Context, *domain.RewardEvent) error { return nil }

func (noopPublisher) Close() {}

// PublishBestEffort publishes events after their transaction committed.
// Failures are logged and never surface to the caller: the grant already happened.
func PublishBestEffort(ctx context.Context, publisher Publisher, events ...*domain.RewardEvent) {
	if publisher == nil {
		return
	}
	for _, event := range events {
		if err := publisher.PublishRewardEvent(ctx, event); err != nil {
			logger.WarnCtx(ctx, "Failed to publish reward event",
				zap.Error(err),
				zap.String("eventID", event.EventID),
				zap.String("type", string(event.Type)))
		}
	}
}
