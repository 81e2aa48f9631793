package repository

import "context"

// TokenEvent describes a token validity change published for downstream
// consumers (reconnect prompts, alerting).
type TokenEvent struct {
	Type      string `json:"type"` // token_invalidated | token_refreshed
	TokenType string `json:"token_type"`
	PageID    string `json:"page_id,omitempty"`
	FbID      string `json:"fb_id,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// ITokenEventPublisher fans token validity changes out to a message broker.
type ITokenEventPublisher interface {
	PublishTokenEvent(ctx context.Context, event TokenEvent) error
}

// IDebugArchive stores raw introspection payloads for offline diagnosis.
type IDebugArchive interface {
	ArchiveDebugPayload(ctx context.Context, tokenType, subjectID string, payload []byte) error
}

// IResolutionCache is a short-TTL cache of resolved page tokens keyed by
// page and requirement profile.
type IResolutionCache interface {
	GetResolvedToken(ctx context.Context, key string) (string, error)
	SetResolvedToken(ctx context.Context, key string, token string) error
	InvalidateResolvedTokens(ctx context.Context, pageID string) error
}
