package repository

import (
	"context"

	"page-token-service/domain/model"
)

// IPage is the page side of the credential store.
type IPage interface {
	// FindByIdentifier matches either the platform page id or a linked IG
	// account id within the app scope. activeOnly restricts to active rows.
	FindByIdentifier(ctx context.Context, appID int64, identifier string, activeOnly bool) ([]*model.Page, error)
	// MostRecentToken returns the newest on-file token for a page,
	// regardless of validity. Last-resort fallback.
	MostRecentToken(ctx context.Context, appID int64, pageID string) (string, error)
	UpdateAccessToken(ctx context.Context, pageDBID int64, token string) error
	// SetTokenValidityByToken flips is_token_valid on every page row holding
	// the given token and reports how many rows matched.
	SetTokenValidityByToken(ctx context.Context, token string, valid bool) (int64, error)
	SetTokenValidity(ctx context.Context, pageDBID int64, valid bool) error
	Upsert(ctx context.Context, page *model.Page) error
	// ActivateBestConfig keeps the newest row per (owner, page) active and
	// deactivates older duplicates.
	ActivateBestConfig(ctx context.Context, appID int64, pageID string) error
}
