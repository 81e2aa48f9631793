package servicebus

import (
	"context"
	"encoding/json"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"

	"page-token-service/domain/repository"
	"page-token-service/infrastructure/logger"
)

// TokenEventPublisher publishes token validity changes to a Service Bus queue.
type TokenEventPublisher struct {
	AzservicebusClient *azservicebus.Client
	Queue              string
}

func NewTokenEventPublisher(azServiceBusClient *azservicebus.Client, queue string) repository.ITokenEventPublisher {
	if queue == "" {
		queue = "token-events"
	}
	return &TokenEventPublisher{AzservicebusClient: azServiceBusClient, Queue: queue}
}

func (p *TokenEventPublisher) PublishTokenEvent(ctx context.Context, event repository.TokenEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	sender, err := p.AzservicebusClient.NewSender(p.Queue, nil)
	if err != nil {
		logger.GetLogger().
			WithField("error", err).
			Error("Error while making new sender service bus.")
		return err
	}
	defer func(sender *azservicebus.Sender, ctx context.Context) {
		if err := sender.Close(ctx); err != nil {
			logger.GetLogger().
				WithField("error", err).
				Error("Error while closing sender.")
		}
	}(sender, context.Background())

	sbMessage := &azservicebus.Message{Body: payload}
	if err := sender.SendMessage(ctx, sbMessage, nil); err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while sending token event.")
		return err
	}
	return nil
}
