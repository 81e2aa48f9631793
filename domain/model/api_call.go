package model

import (
	"encoding/json"
	"time"
)

// APICallResult is an append-only record of one outbound graph API call:
// which token was used, whether it worked, and under which requirement
// context. Recent successful rows double as a resolution cache.
type APICallResult struct {
	ID           int64           `json:"id"`
	AppID        *int64          `json:"app_id,omitempty"`
	UserID       *int64          `json:"user_id,omitempty"`
	FbID         *string         `json:"fb_id,omitempty"`
	PageID       *string         `json:"page_id,omitempty"`
	Token        string          `json:"access_token"`
	TokenType    string          `json:"access_token_type"`
	Success      bool            `json:"success"`
	Status       string          `json:"status"`
	ReqURL       string          `json:"req_url"`
	ReqParams    json.RawMessage `json:"req_params,omitempty"`
	Res          json.RawMessage `json:"res,omitempty"`
	Requirements *Requirements   `json:"requirement_context,omitempty"`
	ErrorCode    *string         `json:"error_code,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Ad links a platform ad (or an internally generated trace id) to the page
// and connected user it was created under.
type Ad struct {
	ID        int64     `json:"id"`
	FbAdID    string    `json:"fb_ad_id"`
	AdTraceID *string   `json:"ad_trace_id,omitempty"`
	UserID    int64     `json:"user_id"`
	PageID    *string   `json:"page_id,omitempty"`
	Status    *string   `json:"status,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
