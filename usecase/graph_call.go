package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"page-token-service/domain/model"
	"page-token-service/domain/repository"
	"page-token-service/infrastructure/clients/graph"
	"page-token-service/infrastructure/logger"
)

// ErrNoUsableToken is returned when resolution produced nothing to call
// with.
var ErrNoUsableToken = errors.New("no usable page access token")

// CallParams describes the call being wrapped, for outcome logging and
// invalidation bookkeeping.
type CallParams struct {
	PageID       string
	Token        string
	TokenType    string
	Requirements *model.Requirements
	ReqURL       string
	ReqParams    json.RawMessage
}

// CallFunc performs the actual graph call and returns the raw response body.
type CallFunc func(ctx context.Context) ([]byte, error)

// CallGraphAPI runs op exactly once, records the outcome, and on the
// invalid-token code marks the token invalid everywhere. The returned error
// is always a normalized *graph.APIError.
func (u *TokenUsecase) CallGraphAPI(ctx context.Context, params CallParams, op CallFunc) ([]byte, error) {
	body, err := op(ctx)
	if err != nil {
		apiErr := graph.Normalize(err)
		u.logCallOutcome(ctx, params, nil, apiErr)
		if apiErr.IsTokenInvalid() {
			if invErr := u.InvalidateToken(ctx, params.Token, params.PageID, apiErr.Code, apiErr.Message); invErr != nil {
				logger.GetLogger().WithField("error", invErr).Error("Error while invalidating token")
			}
		}
		return nil, apiErr
	}
	u.logCallOutcome(ctx, params, body, nil)
	return body, nil
}

// logCallOutcome appends a row to the call log. Logging failures never
// affect the call result.
func (u *TokenUsecase) logCallOutcome(ctx context.Context, params CallParams, body []byte, apiErr *graph.APIError) {
	result := &model.APICallResult{
		Token:        params.Token,
		TokenType:    params.TokenType,
		ReqURL:       params.ReqURL,
		ReqParams:    params.ReqParams,
		Requirements: params.Requirements,
	}
	appID := u.config.NumericAppID
	result.AppID = &appID
	if params.PageID != "" {
		pageID := params.PageID
		result.PageID = &pageID
	}
	if apiErr != nil {
		result.Success = false
		result.Status = "error"
		code := strconv.Itoa(apiErr.Code)
		result.ErrorCode = &code
		message := apiErr.Message
		result.ErrorMessage = &message
		if payload, err := json.Marshal(apiErr); err == nil {
			result.Res = payload
		}
	} else {
		result.Success = true
		result.Status = "ok"
		result.Res = body
	}
	if err := u.callRepo.Insert(ctx, result); err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while logging call outcome")
	}
}

// InvalidateToken flips validity on the page rows holding the token, or the
// user rows when no page matched, plus the ledger, then drops cached
// resolutions and notifies subscribers.
func (u *TokenUsecase) InvalidateToken(ctx context.Context, token, pageID string, errorCode int, reason string) error {
	tokenType := model.TokenTypePage
	matched, err := u.pageRepo.SetTokenValidityByToken(ctx, token, false)
	if err != nil {
		return err
	}
	if matched == 0 {
		tokenType = model.TokenTypeUser
		if _, err := u.userRepo.SetTokenValidityByToken(ctx, token, false); err != nil {
			return err
		}
	}
	if err := u.ledgerRepo.SetValidityByToken(ctx, token, false); err != nil {
		return err
	}
	if u.cache != nil && pageID != "" {
		if err := u.cache.InvalidateResolvedTokens(ctx, pageID); err != nil {
			logger.GetLogger().WithField("error", err).Warn("Error while dropping cached resolutions")
		}
	}
	u.publishEvent(ctx, repository.TokenEvent{
		Type:      "token_invalidated",
		TokenType: tokenType,
		PageID:    pageID,
		ErrorCode: errorCode,
		Reason:    reason,
	})
	return nil
}

// publishEvent fans the event out to the brokers and the SSE hub.
func (u *TokenUsecase) publishEvent(ctx context.Context, event repository.TokenEvent) {
	for _, publisher := range u.publishers {
		if publisher == nil {
			continue
		}
		if err := publisher.PublishTokenEvent(ctx, event); err != nil {
			logger.GetLogger().WithField("error", err).Warn("Error while publishing token event")
		}
	}
	if u.hub != nil {
		u.hub.Broadcast(event)
	}
}

// SendPageMessage resolves a messaging-capable token for the page and sends
// a message through the wrapped call path.
func (u *TokenUsecase) SendPageMessage(ctx context.Context, pageID, recipientID, message string) ([]byte, error) {
	req := model.Requirements{NeedsMessaging: true, Action: "send_message"}
	token, source := u.ResolvePageAccessToken(ctx, pageID, req)
	if token == "" {
		return nil, ErrNoUsableToken
	}
	logger.GetLogger().
		WithField("pageId", pageID).
		WithField("source", source).
		Info("Resolved page token for message send")

	reqParams, _ := json.Marshal(map[string]string{"recipient_id": recipientID})
	params := CallParams{
		PageID:       pageID,
		Token:        token,
		TokenType:    model.TokenTypePage,
		Requirements: &req,
		ReqURL:       fmt.Sprintf("/%s/messages", pageID),
		ReqParams:    reqParams,
	}
	return u.CallGraphAPI(ctx, params, func(ctx context.Context) ([]byte, error) {
		return u.graph.PublishPageMessage(ctx, pageID, token, recipientID, message)
	})
}
