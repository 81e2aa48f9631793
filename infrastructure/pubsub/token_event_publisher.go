package pubsub

import (
	"context"
	"encoding/json"

	"cloud.google.com/go/pubsub"

	"page-token-service/domain/repository"
	"page-token-service/infrastructure/logger"
)

// TokenEventPublisher publishes token validity changes to a Pub/Sub topic.
type TokenEventPublisher struct {
	PubSubClient *pubsub.Client
	TopicName    string
}

func NewTokenEventPublisher(pubSubClient *pubsub.Client, topicName string) repository.ITokenEventPublisher {
	if topicName == "" {
		topicName = "token-events"
	}
	return &TokenEventPublisher{
		PubSubClient: pubSubClient,
		TopicName:    topicName,
	}
}

func (p *TokenEventPublisher) PublishTokenEvent(ctx context.Context, event repository.TokenEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	topic := p.PubSubClient.Topic(p.TopicName)

	// Create the topic if it doesn't exist.
	exists, err := topic.Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		logger.GetLogger().WithField("topic", p.TopicName).Info("Topic doesn't exist - creating it")
		if _, err = p.PubSubClient.CreateTopic(ctx, p.TopicName); err != nil {
			return err
		}
	}

	serverID, err := topic.Publish(ctx, &pubsub.Message{Data: payload}).Get(ctx)
	if err != nil {
		return err
	}

	logger.GetLogger().
		WithField("serverId", serverID).
		WithField("type", event.Type).
		Info("Token event published")
	return nil
}
