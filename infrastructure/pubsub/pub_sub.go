package pubsub

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// NewPubSub creates the Pub/Sub client for the configured project. Returns
// an error when no project is configured so the caller can run without it.
func NewPubSub(ctx context.Context, projectID string) (*pubsub.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("pubsub project not configured")
	}
	return pubsub.NewClient(ctx, projectID)
}
