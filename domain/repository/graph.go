package repository

import (
	"context"

	"page-token-service/domain/dto"
)

// IGraph is the outbound graph API client.
type IGraph interface {
	// DebugToken introspects inputToken using the app credential.
	DebugToken(ctx context.Context, inputToken string) (*dto.GraphDebugData, error)
	// FindPageToken walks the paginated /{userFbID}/accounts list with the
	// user's token and returns the access token of the matching page, or
	// empty when the page is not among the user's accounts.
	FindPageToken(ctx context.Context, userFbID, userToken, pageID string) (string, error)
	Me(ctx context.Context, token string) (*dto.GraphProfile, error)
	ListAccounts(ctx context.Context, userFbID, userToken string) ([]dto.GraphAccount, error)
	// PublishPageMessage sends a message to a conversation on behalf of the
	// page and returns the raw response body.
	PublishPageMessage(ctx context.Context, pageID, pageToken, recipientID, message string) ([]byte, error)
}
