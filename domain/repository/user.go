package repository

import (
	"context"

	"page-token-service/domain/model"
)

// IUser is the connected-account side of the credential store.
type IUser interface {
	FindByFbIDs(ctx context.Context, appID string, appEnv string, fbIDs []string) ([]*model.User, error)
	GetAccessToken(ctx context.Context, userDBID int64) (string, error)
	SetTokenValidityByToken(ctx context.Context, token string, valid bool) (int64, error)
	Upsert(ctx context.Context, user *model.User) error
}
