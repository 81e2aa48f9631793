package graph

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-querystring/query"

	"page-token-service/domain/dto"
	"page-token-service/domain/repository"
	"page-token-service/infrastructure/logger"
)

const defaultBaseURL = "https://graph.facebook.com"

// Config holds everything the client needs to talk to the graph API.
type Config struct {
	AppID        string
	AppSecret    string
	GraphVersion string
	// AccountsPageLimit caps how many pages of /{userId}/accounts a single
	// FindPageToken call may walk.
	AccountsPageLimit int
	// BaseURL overrides the graph endpoint (tests).
	BaseURL    string
	HTTPClient *http.Client
}

// Client is the HTTP client for the graph API.
type Client struct {
	config Config
	http   *http.Client
	base   string
}

// NewClient creates a graph API client.
func NewClient(config Config) repository.IGraph {
	if config.GraphVersion == "" {
		config.GraphVersion = "v19.0"
	}
	if config.AccountsPageLimit <= 0 {
		config.AccountsPageLimit = 25
	}
	base := config.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{config: config, http: httpClient, base: strings.TrimRight(base, "/")}
}

// appToken is the app-scoped credential used for introspection.
func (c *Client) appToken() string {
	return fmt.Sprintf("%s|%s", c.config.AppID, c.config.AppSecret)
}

// AppSecretProof computes the appsecret_proof HMAC for a token.
func AppSecretProof(accessToken, appSecret string) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write([]byte(accessToken))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) endpoint(path string) string {
	return fmt.Sprintf("%s/%s%s", c.base, c.config.GraphVersion, path)
}

type debugTokenParams struct {
	InputToken  string `url:"input_token"`
	AccessToken string `url:"access_token"`
}

// DebugToken introspects a token with the app credential. A graph-level
// error inside the payload is returned in the data, not as a Go error;
// transport and envelope errors come back as *APIError.
func (c *Client) DebugToken(ctx context.Context, inputToken string) (*dto.GraphDebugData, error) {
	params, err := query.Values(debugTokenParams{
		InputToken:  inputToken,
		AccessToken: c.appToken(),
	})
	if err != nil {
		return nil, Normalize(err)
	}

	body, status, www, err := c.get(ctx, c.endpoint("/debug_token"), params)
	if err != nil {
		return nil, err
	}

	var debugRes dto.GraphDebugResponse
	if err := json.Unmarshal(body, &debugRes); err != nil {
		return nil, Normalize(fmt.Errorf("decoding debug_token response: %w", err))
	}
	if status != http.StatusOK && debugRes.Data.Error == nil {
		if envErr := envelopeError(body, status, www); envErr != nil {
			return nil, envErr
		}
	}
	return &debugRes.Data, nil
}

type accountsParams struct {
	AccessToken    string `url:"access_token"`
	AppSecretProof string `url:"appsecret_proof"`
	Limit          int    `url:"limit"`
}

// FindPageToken walks the user's /accounts pages looking for pageID and
// returns its access token, or empty when the page is not found before the
// page cap is reached.
func (c *Client) FindPageToken(ctx context.Context, userFbID, userToken, pageID string) (string, error) {
	params, err := query.Values(accountsParams{
		AccessToken:    userToken,
		AppSecretProof: AppSecretProof(userToken, c.config.AppSecret),
		Limit:          100,
	})
	if err != nil {
		return "", Normalize(err)
	}

	nextURL := c.endpoint(fmt.Sprintf("/%s/accounts", userFbID)) + "?" + params.Encode()
	for page := 0; page < c.config.AccountsPageLimit && nextURL != ""; page++ {
		accounts, next, err := c.fetchAccountsPage(ctx, nextURL)
		if err != nil {
			return "", err
		}
		for _, account := range accounts {
			if account.ID == pageID {
				return account.AccessToken, nil
			}
		}
		nextURL = next
	}
	return "", nil
}

// ListAccounts collects every page the user manages, bounded by the page cap.
func (c *Client) ListAccounts(ctx context.Context, userFbID, userToken string) ([]dto.GraphAccount, error) {
	params, err := query.Values(accountsParams{
		AccessToken:    userToken,
		AppSecretProof: AppSecretProof(userToken, c.config.AppSecret),
		Limit:          100,
	})
	if err != nil {
		return nil, Normalize(err)
	}

	var all []dto.GraphAccount
	nextURL := c.endpoint(fmt.Sprintf("/%s/accounts", userFbID)) + "?" + params.Encode()
	for page := 0; page < c.config.AccountsPageLimit && nextURL != ""; page++ {
		accounts, next, err := c.fetchAccountsPage(ctx, nextURL)
		if err != nil {
			return nil, err
		}
		all = append(all, accounts...)
		nextURL = next
	}
	return all, nil
}

func (c *Client) fetchAccountsPage(ctx context.Context, pageURL string) ([]dto.GraphAccount, string, error) {
	body, status, www, err := c.get(ctx, pageURL, nil)
	if err != nil {
		return nil, "", err
	}
	var accountsRes dto.GraphAccountsResponse
	if err := json.Unmarshal(body, &accountsRes); err != nil {
		return nil, "", Normalize(fmt.Errorf("decoding accounts response: %w", err))
	}
	if accountsRes.Error != nil {
		return nil, "", FromBody(accountsRes.Error, status, www)
	}
	next := ""
	if accountsRes.Paging != nil {
		next = accountsRes.Paging.Next
	}
	return accountsRes.Data, next, nil
}

// Me fetches the profile behind a user token.
func (c *Client) Me(ctx context.Context, token string) (*dto.GraphProfile, error) {
	params := url.Values{}
	params.Set("fields", "id,name,email")
	params.Set("access_token", token)
	params.Set("appsecret_proof", AppSecretProof(token, c.config.AppSecret))

	body, status, www, err := c.get(ctx, c.endpoint("/me"), params)
	if err != nil {
		return nil, err
	}
	var profile dto.GraphProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, Normalize(fmt.Errorf("decoding profile response: %w", err))
	}
	if profile.Error != nil {
		return nil, FromBody(profile.Error, status, www)
	}
	return &profile, nil
}

// PublishPageMessage sends a message to a conversation on behalf of the page.
func (c *Client) PublishPageMessage(ctx context.Context, pageID, pageToken, recipientID, message string) ([]byte, error) {
	recipient, _ := json.Marshal(map[string]string{"id": recipientID})
	payload, _ := json.Marshal(map[string]string{"text": message})

	form := url.Values{}
	form.Set("recipient", string(recipient))
	form.Set("message", string(payload))
	form.Set("messaging_type", "RESPONSE")
	form.Set("access_token", pageToken)
	form.Set("appsecret_proof", AppSecretProof(pageToken, c.config.AppSecret))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint(fmt.Sprintf("/%s/messages", pageID)), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, Normalize(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, Transport(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Transport(err)
	}
	if resp.StatusCode != http.StatusOK {
		if envErr := envelopeError(body, resp.StatusCode, resp.Header.Get("WWW-Authenticate")); envErr != nil {
			return nil, envErr
		}
		return nil, &APIError{Kind: KindInternal, Message: string(body), HTTPStatus: resp.StatusCode}
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, rawURL string, params url.Values) ([]byte, int, string, error) {
	if len(params) > 0 {
		if strings.Contains(rawURL, "?") {
			rawURL = rawURL + "&" + params.Encode()
		} else {
			rawURL = rawURL + "?" + params.Encode()
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, "", Normalize(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Graph API request failed")
		return nil, 0, "", Transport(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, "", Transport(err)
	}
	return body, resp.StatusCode, resp.Header.Get("WWW-Authenticate"), nil
}

// envelopeError decodes a top-level {"error": {...}} body, if present.
func envelopeError(body []byte, status int, www string) *APIError {
	var envelope struct {
		Error *dto.GraphErrorBody `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error == nil {
		return nil
	}
	return FromBody(envelope.Error, status, www)
}
