package dto

import "page-token-service/domain/model"

// ResolveTokenResponse is returned by the token resolution endpoint. Source
// names the resolution path taken (ledger, recent_success, single_owner,
// best_candidate, fallback).
type ResolveTokenResponse struct {
	PageID      string `json:"page_id"`
	AccessToken string `json:"access_token,omitempty"`
	Source      string `json:"source,omitempty"`
	Found       bool   `json:"found"`
}

// AdTokensResponse lists user tokens usable for ad operations on a page.
type AdTokensResponse struct {
	AdID       string                   `json:"ad_id"`
	PageID     string                   `json:"page_id"`
	Candidates []model.AdTokenCandidate `json:"candidates"`
}

// SendPageMessageRequest asks the service to publish a message to a page
// conversation using a resolved page token.
type SendPageMessageRequest struct {
	RecipientID string `json:"recipient_id" binding:"required"`
	Message     string `json:"message" binding:"required"`
}

// ServiceTokenRequest trades the app secret for a service JWT.
type ServiceTokenRequest struct {
	AppSecret   string `json:"app_secret" binding:"required"`
	AppID       string `json:"app_id"`
	ServiceName string `json:"service_name"`
}
