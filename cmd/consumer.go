package cmd

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"example.com/backstage/services/yard/internal/messagebus"
	"example.com/backstage/services/yard/internal/service"
)

// drainRegistrations reads one batch from the registration queue and hands
// every message to the processor. The processor settles each message.
func drainRegistrations(
	ctx context.Context,
	client messagebus.Client,
	queue string,
	count int,
	processor *service.RegistrationProcessor,
	logger *logrus.Logger,
) (int, error) {
	messages, err := client.ReceiveMessages(ctx, queue, count)
	if err != nil {
		return 0, err
	}

	failed := 0
	for _, message := range messages {
		if err := processor.Process(ctx, message); err != nil {
			failed++
			logger.WithError(err).Error("Failed to process gate registration")
		}
	}

	if len(messages) > 0 {
		logger.WithFields(logrus.Fields{
			"queue":    queue,
			"received": len(messages),
			"failed":   failed,
		}).Info("Processed gate registrations")
	}
	return len(messages), nil
}

// consumeRegistrations polls the registration queue until ctx is done
func consumeRegistrations(
	ctx context.Context,
	client messagebus.Client,
	queue string,
	processor *service.RegistrationProcessor,
	logger *logrus.Logger,
) error {
	const (
		batchSize    = 20
		idleInterval = 2 * time.Second
	)

	for {
		n, err := drainRegistrations(ctx, client, queue, batchSize, processor, logger)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.WithError(err).Error("Failed to receive gate registrations")
		}

		if n > 0 && err == nil {
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(idleInterval):
		}
	}
}
