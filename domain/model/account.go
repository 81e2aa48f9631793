package model

import (
	"encoding/json"
	"time"
)

// User is a connected platform account that granted us an access token.
// One row per (app scope, fb user id).
type User struct {
	ID            int64           `json:"id"`
	FbID          string          `json:"fb_id"`
	AppID         string          `json:"app_id"`
	AppEnv        string          `json:"app_env"`
	Email         *string         `json:"email,omitempty"`
	AccessToken   string          `json:"access_token"`
	IsTokenValid  *bool           `json:"is_token_valid,omitempty"`
	HasAds        bool            `json:"has_ads"`
	TokenDebug    json.RawMessage `json:"token_debug_result,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Page is a social page (or linked IG account) managed by a connected user.
// The same platform page may appear in several rows when more than one
// connected user manages it; ownership is tied through OwnerFbID.
type Page struct {
	ID           int64           `json:"id"`
	AppID        int64           `json:"app_id"`
	OwnerFbID    string          `json:"fb_id"`
	PageID       string          `json:"fb_page_id"`
	Name         string          `json:"page_name"`
	AccessToken  string          `json:"page_access_token"`
	IGAccountID  *string         `json:"ig_account_id,omitempty"`
	HasIGAccount bool            `json:"has_ig_page"`
	Active       bool            `json:"active"`
	IsTokenValid *bool           `json:"is_token_valid,omitempty"`
	TokenDebug   json.RawMessage `json:"token_debug_result,omitempty"`
	ConfigID     *string         `json:"config_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// OwnershipResult is the outcome of resolving which users manage a page.
// Pages holds the per-owner page rows, Owners the matching user rows in the
// same order (Owners[i] manages Pages[i]).
type OwnershipResult struct {
	ManagedByMultipleUsers bool    `json:"is_managed_by_multiple_users"`
	Pages                  []*Page `json:"pages"`
	Owners                 []*User `json:"owners"`
}
