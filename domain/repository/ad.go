package repository

import (
	"context"

	"page-token-service/domain/model"
)

// IAd looks up ads for ad-scoped token resolution.
type IAd interface {
	// FindByIDOrTraceID matches either the platform ad id or the internal
	// trace id assigned at creation time.
	FindByIDOrTraceID(ctx context.Context, identifier string) (*model.Ad, error)
}
