package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"page-token-service/domain/dto"
	"page-token-service/domain/model"
	"page-token-service/domain/repository"
	"page-token-service/infrastructure/clients/graph"
	"page-token-service/infrastructure/logger"
)

// Capability scopes checked against debug_token granular scopes.
const (
	scopeMessaging          = "pages_messaging"
	scopeInstagramMessaging = "instagram_manage_messages"
	scopeAds                = "ads_management"
)

// ownerDebugResult is the combined introspection outcome for one
// (user, page) owner pair.
type ownerDebugResult struct {
	UserDBID    int64
	PageDBID    int64
	PageID      string
	UserDebug   *model.TokenDebugResult
	PageDebug   *model.TokenDebugResult
	Status      string
	ErrorSource string
}

// debugAllOwners introspects every owner pair, persisting ledger entries as
// it goes. Failures are recorded per pair, never propagated.
func (u *TokenUsecase) debugAllOwners(ctx context.Context, ownership *model.OwnershipResult) []*ownerDebugResult {
	var results []*ownerDebugResult
	for i, page := range ownership.Pages {
		owner := ownership.Owners[i]
		result := u.debugOwnerTokens(ctx, owner, page)
		results = append(results, result)
	}
	return results
}

// debugOwnerTokens introspects the owner's user token and the page token
// (refreshing the page token once when invalid), then upserts both ledger
// rows.
func (u *TokenUsecase) debugOwnerTokens(ctx context.Context, owner *model.User, page *model.Page) *ownerDebugResult {
	result := &ownerDebugResult{
		UserDBID: owner.ID,
		PageDBID: page.ID,
		PageID:   page.PageID,
		Status:   model.TokenStatusActive,
	}
	log := logger.GetLogger().
		WithField("pageId", page.PageID).
		WithField("userId", owner.ID)

	userDebug, err := u.debugUserToken(ctx, owner)
	if err != nil {
		log.WithField("error", err).Error("Error while debugging user token")
		result.Status = model.TokenStatusError
		result.ErrorSource = "user_token"
	} else {
		result.UserDebug = userDebug
	}

	pageDebug, err := u.debugPageToken(ctx, owner, page)
	if err != nil {
		log.WithField("error", err).Error("Error while debugging page token")
		result.Status = model.TokenStatusError
		if result.ErrorSource == "" {
			result.ErrorSource = "page_token"
		}
	} else {
		result.PageDebug = pageDebug
	}

	u.persistOwnerDebug(ctx, owner, page, result)
	return result
}

// debugUserToken introspects the owner's user token. Error code 190 is
// terminal: the user must reconnect.
func (u *TokenUsecase) debugUserToken(ctx context.Context, owner *model.User) (*model.TokenDebugResult, error) {
	data, err := u.graph.DebugToken(ctx, owner.AccessToken)
	if err != nil {
		return nil, err
	}
	u.archivePayload(ctx, model.TokenTypeUser, owner.FbID, data)
	if data.Error != nil {
		if data.Error.Code == graph.CodeTokenInvalid {
			if _, err := u.userRepo.SetTokenValidityByToken(ctx, owner.AccessToken, false); err != nil {
				logger.GetLogger().WithField("error", err).Error("Error while marking user token invalid")
			}
		}
		return nil, graph.FromBody(data.Error, 0, "")
	}
	return u.buildDebugResult(data, owner.AccessToken), nil
}

// debugPageToken introspects the page token. When the token is invalid or
// errored it tries exactly one refresh: walk the owner's /accounts pages for
// a fresh token, persist it, and re-introspect. A second failure with the
// invalid-token code is terminal.
func (u *TokenUsecase) debugPageToken(ctx context.Context, owner *model.User, page *model.Page) (*model.TokenDebugResult, error) {
	token := page.AccessToken
	var data *dto.GraphDebugData
	if token != "" {
		var err error
		data, err = u.graph.DebugToken(ctx, token)
		if err != nil {
			return nil, err
		}
	}

	if data == nil || data.Error != nil || !data.IsValid {
		freshToken, err := u.graph.FindPageToken(ctx, owner.FbID, owner.AccessToken, page.PageID)
		if err != nil {
			return nil, err
		}
		if freshToken == "" {
			if data != nil && data.Error != nil {
				return nil, graph.FromBody(data.Error, 0, "")
			}
			return nil, fmt.Errorf("page %s not found among user accounts", page.PageID)
		}

		data, err = u.graph.DebugToken(ctx, freshToken)
		if err != nil {
			return nil, err
		}
		if data.Error != nil {
			// One refresh only; an invalid refreshed token means reconnect.
			return nil, graph.FromBody(data.Error, 0, "")
		}
		if freshToken != token {
			if err := u.pageRepo.UpdateAccessToken(ctx, page.ID, freshToken); err != nil {
				logger.GetLogger().WithField("error", err).Error("Error while persisting refreshed page token")
			}
			u.publishEvent(ctx, repository.TokenEvent{
				Type:      "token_refreshed",
				TokenType: model.TokenTypePage,
				PageID:    page.PageID,
				FbID:      owner.FbID,
			})
		}
		token = freshToken
	}

	u.archivePayload(ctx, model.TokenTypePage, page.PageID, data)
	return u.buildDebugResult(data, token), nil
}

// buildDebugResult distills a debug_token payload into capability flags and
// missing-scope bookkeeping.
func (u *TokenUsecase) buildDebugResult(data *dto.GraphDebugData, token string) *model.TokenDebugResult {
	granted := map[string]bool{}
	for _, scope := range data.Scopes {
		granted[scope] = true
	}
	var missing []string
	for _, required := range u.config.RequiredScopes {
		required = strings.TrimSpace(required)
		if required != "" && !granted[required] {
			missing = append(missing, required)
		}
	}
	return &model.TokenDebugResult{
		AccessToken:           token,
		IsValid:               data.IsValid,
		Scopes:                data.Scopes,
		MissingScopes:         missing,
		ExpiresAt:             data.ExpiresAt,
		DataAccessExpiresAt:   data.DataAccessExpiresAt,
		IssuedAt:              data.IssuedAt,
		HasMessaging:          hasGranularScope(data.GranularScopes, scopeMessaging),
		HasInstagramMessaging: hasGranularScope(data.GranularScopes, scopeInstagramMessaging),
		HasAds:                hasGranularScope(data.GranularScopes, scopeAds),
	}
}

func hasGranularScope(scopes []dto.GranularScope, name string) bool {
	for _, s := range scopes {
		if s.Scope == name {
			return true
		}
	}
	return false
}

// persistOwnerDebug upserts the user and page ledger rows for one owner
// pair.
func (u *TokenUsecase) persistOwnerDebug(ctx context.Context, owner *model.User, page *model.Page, result *ownerDebugResult) {
	log := logger.GetLogger().WithField("pageId", page.PageID)

	userEntry := u.ledgerEntryFromDebug(owner, nil, result.UserDebug, result)
	userEntry.Token = owner.AccessToken
	userEntry.TokenType = model.TokenTypeUser
	if err := u.ledgerRepo.Upsert(ctx, userEntry); err != nil {
		log.WithField("error", err).Error("Error while upserting user ledger entry")
	}

	pageEntry := u.ledgerEntryFromDebug(owner, page, result.PageDebug, result)
	pageEntry.TokenType = model.TokenTypePage
	if pageEntry.Token == "" {
		pageEntry.Token = page.AccessToken
	}
	if err := u.ledgerRepo.Upsert(ctx, pageEntry); err != nil {
		log.WithField("error", err).Error("Error while upserting page ledger entry")
	}
}

func (u *TokenUsecase) ledgerEntryFromDebug(owner *model.User, page *model.Page, debug *model.TokenDebugResult, result *ownerDebugResult) *model.AccessToken {
	entry := &model.AccessToken{
		AppID:  u.config.NumericAppID,
		UserID: owner.ID,
		FbID:   owner.FbID,
		Status: result.Status,
	}
	if page != nil {
		pageID := page.PageID
		entry.PageID = &pageID
	}
	if result.ErrorSource != "" {
		errorSource := result.ErrorSource
		entry.ErrorSource = &errorSource
	}
	if debug == nil {
		invalid := false
		entry.IsTokenValid = &invalid
		return entry
	}
	entry.Token = debug.AccessToken
	entry.MessagingEnabled = debug.HasMessaging
	entry.InstagramEnabled = debug.HasInstagramMessaging
	entry.AdsEnabled = debug.HasAds
	entry.Scopes = strings.Join(debug.Scopes, ",")
	entry.MissingScopes = strings.Join(debug.MissingScopes, ",")
	valid := debug.IsValid
	entry.IsTokenValid = &valid
	entry.ExpiresAt = unixTime(debug.ExpiresAt)
	entry.DataAccessExpiresAt = unixTime(debug.DataAccessExpiresAt)
	if details, err := json.Marshal(debug); err == nil {
		entry.Details = details
	}
	return entry
}

// unixTime converts a platform timestamp; zero means "no expiry reported"
// and is left nil so the ledger applies its long-lived fallback.
func unixTime(ts int64) *time.Time {
	if ts <= 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}

func (u *TokenUsecase) archivePayload(ctx context.Context, tokenType, subjectID string, data *dto.GraphDebugData) {
	if u.archive == nil {
		return
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	if err := u.archive.ArchiveDebugPayload(ctx, tokenType, subjectID, payload); err != nil {
		logger.GetLogger().WithField("error", err).Warn("Error while archiving debug payload")
	}
}
