package model

import (
	"encoding/json"
	"time"
)

const (
	TokenTypeUser = "user"
	TokenTypePage = "page"
)

const (
	TokenStatusActive = "active"
	TokenStatusError  = "error"
)

// AccessToken is a token-ledger entry: the last known health and capability
// profile of a user or page token. Upserts are keyed on
// (app_id, user_id, fb_id, token_type) plus page_id for page tokens.
type AccessToken struct {
	ID                  int64           `json:"id"`
	AppID               int64           `json:"app_id"`
	UserID              int64           `json:"user_id"`
	FbID                string          `json:"fb_id"`
	PageID              *string         `json:"page_id,omitempty"`
	Token               string          `json:"access_token"`
	TokenType           string          `json:"access_token_type"` // user | page
	MessagingEnabled    bool            `json:"page_messaging_enabled"`
	InstagramEnabled    bool            `json:"instagram_messaging_enabled"`
	AdsEnabled          bool            `json:"ad_permissions_enabled"`
	Status              string          `json:"status"` // active | error
	ErrorSource         *string         `json:"error_source,omitempty"`
	ExpiresAt           *time.Time      `json:"expires_at,omitempty"`
	DataAccessExpiresAt *time.Time      `json:"token_data_access_expires_at,omitempty"`
	Scopes              string          `json:"scopes"`
	MissingScopes       string          `json:"missing_scopes"`
	IsTokenValid        *bool           `json:"is_token_valid,omitempty"`
	Details             json.RawMessage `json:"details,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// Requirements are the capabilities a caller needs from a page token.
// Action is a free-form label recorded with call outcomes for diagnostics.
type Requirements struct {
	NeedsMessaging          bool   `json:"needsMessaging"`
	NeedsInstagramMessaging bool   `json:"needsInstagramMessaging"`
	NeedsAds                bool   `json:"needsAds"`
	Action                  string `json:"action,omitempty"`
}

// SatisfiedBy reports whether a ledger entry's capability flags cover every
// requested capability.
func (r Requirements) SatisfiedBy(t *AccessToken) bool {
	if r.NeedsMessaging && !t.MessagingEnabled {
		return false
	}
	if r.NeedsInstagramMessaging && !t.InstagramEnabled {
		return false
	}
	if r.NeedsAds && !t.AdsEnabled {
		return false
	}
	return true
}

// Score counts enabled capabilities; used to rank candidates when several
// owners manage the same page.
func (t *AccessToken) Score() int {
	score := 0
	if t.MessagingEnabled {
		score++
	}
	if t.InstagramEnabled {
		score++
	}
	if t.AdsEnabled {
		score++
	}
	return score
}

// TokenDebugResult is the distilled outcome of introspecting a token,
// including a possible refresh of the token itself.
type TokenDebugResult struct {
	Name                  string   `json:"name,omitempty"`
	AccessToken           string   `json:"accessToken"`
	IsValid               bool     `json:"isValid"`
	Scopes                []string `json:"scopes"`
	MissingScopes         []string `json:"missingScopes"`
	ExpiresAt             int64    `json:"expiresAt"`
	DataAccessExpiresAt   int64    `json:"dataAccessExpiresAt"`
	IssuedAt              int64    `json:"issuedAt"`
	HasMessaging          bool     `json:"hasMessagingPermission"`
	HasInstagramMessaging bool     `json:"hasInstagramMessagingPermission"`
	HasAds                bool     `json:"hasAdPermission"`
}

// AdTokenCandidate pairs a managing user's token with the page token for ad
// operations on that user's behalf.
type AdTokenCandidate struct {
	UserAccessToken string `json:"userAccessToken"`
	UserDBID        int64  `json:"userDbId"`
	PageAccessToken string `json:"pageAccessToken"`
}
