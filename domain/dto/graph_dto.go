package dto

// GraphErrorBody is the raw error object the graph API returns inside
// response payloads.
type GraphErrorBody struct {
	Message          string `json:"message"`
	Type             string `json:"type,omitempty"`
	Code             int    `json:"code"`
	ErrorSubcode     int    `json:"error_subcode,omitempty"`
	ErrorUserTitle   string `json:"error_user_title,omitempty"`
	ErrorUserMsg     string `json:"error_user_msg,omitempty"`
	FbTraceID        string `json:"fbtrace_id,omitempty"`
}

// GranularScope is one entry of debug_token's granular_scopes list.
type GranularScope struct {
	Scope     string   `json:"scope"`
	TargetIDs []string `json:"target_ids,omitempty"`
}

// GraphDebugData is the payload of GET /debug_token.
type GraphDebugData struct {
	AppID               string          `json:"app_id,omitempty"`
	Application         string          `json:"application,omitempty"`
	Type                string          `json:"type,omitempty"`
	IsValid             bool            `json:"is_valid"`
	ExpiresAt           int64           `json:"expires_at"`
	DataAccessExpiresAt int64           `json:"data_access_expires_at"`
	IssuedAt            int64           `json:"issued_at"`
	UserID              string          `json:"user_id,omitempty"`
	Scopes              []string        `json:"scopes"`
	GranularScopes      []GranularScope `json:"granular_scopes"`
	Error               *GraphErrorBody `json:"error,omitempty"`
}

// GraphDebugResponse wraps GraphDebugData the way the API returns it.
type GraphDebugResponse struct {
	Data GraphDebugData `json:"data"`
}

// GraphAccount is one managed page returned by GET /{userId}/accounts.
type GraphAccount struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	AccessToken string   `json:"access_token"`
	Category    string   `json:"category,omitempty"`
	Tasks       []string `json:"tasks,omitempty"`
}

// GraphPaging carries the pagination cursors of a list response.
type GraphPaging struct {
	Next     string `json:"next,omitempty"`
	Previous string `json:"previous,omitempty"`
	Cursors  struct {
		Before string `json:"before,omitempty"`
		After  string `json:"after,omitempty"`
	} `json:"cursors,omitempty"`
}

// GraphAccountsResponse is one page of GET /{userId}/accounts.
type GraphAccountsResponse struct {
	Data   []GraphAccount  `json:"data"`
	Paging *GraphPaging    `json:"paging,omitempty"`
	Error  *GraphErrorBody `json:"error,omitempty"`
}

// GraphProfile is the payload of GET /me.
type GraphProfile struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Email string          `json:"email,omitempty"`
	Error *GraphErrorBody `json:"error,omitempty"`
}
