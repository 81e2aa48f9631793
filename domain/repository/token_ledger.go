package repository

import (
	"context"

	"page-token-service/domain/model"
)

// ITokenLedger persists the last known health of user and page tokens.
type ITokenLedger interface {
	// Upsert inserts or updates the entry keyed on
	// (app_id, user_id, fb_id, access_token_type) plus page_id for page
	// tokens.
	Upsert(ctx context.Context, entry *model.AccessToken) error
	// FindValidPageTokens returns ledger entries for a page whose token is
	// still marked valid, newest first.
	FindValidPageTokens(ctx context.Context, appID int64, pageID string) ([]*model.AccessToken, error)
	SetValidityByToken(ctx context.Context, token string, valid bool) error
}
