package messagebus

import (
	"context"

	log "github.com/sirupsen/logrus"

	"example.com/backstage/services/yard/internal/model"
)

// JourneyEventPublisher sends journey events to the events queue
type JourneyEventPublisher struct {
	client     Client
	queue      string
	maxRetries int
}

// NewJourneyEventPublisher creates a publisher for the given queue
func NewJourneyEventPublisher(client Client, queue string) *JourneyEventPublisher {
	return &JourneyEventPublisher{client: client, queue: queue, maxRetries: 3}
}

// PublishJourneyEvent publishes one event, retrying on disconnection
func (p *JourneyEventPublisher) PublishJourneyEvent(ctx context.Context, event model.JourneyEvent) error {
	err := RetryWithBackoff(ctx, func() error {
		return p.client.PublishMessage(ctx, event, p.queue)
	}, p.maxRetries)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"journey_id": event.JourneyID,
			"event_type": event.Type,
		}).Error("Failed to publish journey event")
	}
	return err
}
