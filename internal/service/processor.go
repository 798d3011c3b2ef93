package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"example.com/backstage/services/yard/internal/apperr"
	"example.com/backstage/services/yard/internal/messagebus"
)

// GateRegistration is the message an upstream gate system sends when a
// truck reports at the yard
type GateRegistration struct {
	GatePassID string `json:"gate_pass_id"`
	OperatorID string `json:"operator_id"`
	RegisterRequest
}

// RegistrationProcessor registers journeys from gate registration messages
type RegistrationProcessor struct {
	journeys JourneyService
}

// NewRegistrationProcessor creates a processor backed by the journey service
func NewRegistrationProcessor(journeys JourneyService) *RegistrationProcessor {
	return &RegistrationProcessor{journeys: journeys}
}

// Process handles one message. Messages that can never succeed are completed
// and logged; transient failures are abandoned so the bus redelivers them.
func (p *RegistrationProcessor) Process(ctx context.Context, message messagebus.Message) error {
	var reg GateRegistration
	if err := message.Decode(&reg); err != nil {
		logrus.WithError(err).Error("Dropping undecodable gate registration")
		return message.Complete(ctx)
	}
	if reg.ID == "" {
		reg.ID = reg.GatePassID
	}

	journey, err := p.journeys.Register(ctx, &reg.RegisterRequest, reg.OperatorID)
	if err != nil {
		entry := logrus.WithError(err).WithFields(logrus.Fields{
			"gate_pass_id": reg.GatePassID,
			"kind":         apperr.KindOf(err),
		})
		if retryableKind(apperr.KindOf(err)) {
			entry.Warn("Gate registration failed, abandoning for redelivery")
			if rejectErr := message.Reject(ctx); rejectErr != nil {
				logrus.WithError(rejectErr).Error("Failed to reject message")
			}
			return err
		}
		entry.Error("Dropping invalid gate registration")
		return message.Complete(ctx)
	}

	logrus.WithFields(logrus.Fields{
		"gate_pass_id": reg.GatePassID,
		"journey_id":   journey.UUID,
	}).Info("Gate registration processed")
	return message.Complete(ctx)
}

func retryableKind(kind apperr.Kind) bool {
	return kind == apperr.Storage || kind == apperr.Conflict || kind == apperr.Internal
}
