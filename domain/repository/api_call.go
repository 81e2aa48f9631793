package repository

import (
	"context"

	"page-token-service/domain/model"
)

// IAPICall is the append-only outcome log for outbound graph calls.
type IAPICall interface {
	Insert(ctx context.Context, result *model.APICallResult) error
	// LatestSuccess returns the most recent successful call for the page
	// whose recorded requirement context covers req, or nil when none.
	LatestSuccess(ctx context.Context, pageID string, req model.Requirements) (*model.APICallResult, error)
}
