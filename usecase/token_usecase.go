package usecase

import (
	"context"
	"sort"

	"golang.org/x/sync/singleflight"

	"page-token-service/domain/model"
	"page-token-service/domain/repository"
	"page-token-service/infrastructure/cache"
	"page-token-service/infrastructure/logger"
	"page-token-service/infrastructure/realtime"
)

// TokenEngineConfig carries the app scope and token policy. Passed in
// explicitly at wiring time.
type TokenEngineConfig struct {
	// NumericAppID is the app scope used by page and ledger rows.
	NumericAppID int64
	// AppID and AppEnv scope connected-user rows.
	AppID  string
	AppEnv string
	// RequiredScopes is the scope list a healthy token must carry.
	RequiredScopes []string
}

// Resolution names which path produced a token.
const (
	SourceCache         = "cache"
	SourceRecentSuccess = "recent_success"
	SourceSingleOwner   = "single_owner"
	SourceBestCandidate = "best_candidate"
	SourceIntrospection = "introspection"
	SourceFallback      = "fallback"
	SourceNone          = "none"
)

type ITokenUsecase interface {
	// ResolvePageAccessToken returns a usable page token and the resolution
	// source, or empty when no token exists. It never propagates internal
	// errors.
	ResolvePageAccessToken(ctx context.Context, pageID string, req model.Requirements) (string, string)
	CheckPageOwnership(ctx context.Context, identifier string, activeOnly bool) (*model.OwnershipResult, error)
	ResolveUserAccessTokensForAd(ctx context.Context, adIdentifier, pageID string) ([]model.AdTokenCandidate, error)
	CallGraphAPI(ctx context.Context, params CallParams, op CallFunc) ([]byte, error)
	SendPageMessage(ctx context.Context, pageID, recipientID, message string) ([]byte, error)
	InvalidateToken(ctx context.Context, token, pageID string, errorCode int, reason string) error
}

type TokenUsecase struct {
	pageRepo   repository.IPage
	userRepo   repository.IUser
	ledgerRepo repository.ITokenLedger
	callRepo   repository.IAPICall
	adRepo     repository.IAd
	graph      repository.IGraph
	cache      repository.IResolutionCache
	archive    repository.IDebugArchive
	publishers []repository.ITokenEventPublisher
	hub        *realtime.Hub
	config     TokenEngineConfig

	// group serializes concurrent resolutions of the same page so parallel
	// callers cannot interleave ledger writes.
	group singleflight.Group
}

func NewTokenUsecase(
	pageRepo repository.IPage,
	userRepo repository.IUser,
	ledgerRepo repository.ITokenLedger,
	callRepo repository.IAPICall,
	adRepo repository.IAd,
	graph repository.IGraph,
	resolutionCache repository.IResolutionCache,
	archive repository.IDebugArchive,
	publishers []repository.ITokenEventPublisher,
	hub *realtime.Hub,
	config TokenEngineConfig,
) ITokenUsecase {
	return &TokenUsecase{
		pageRepo:   pageRepo,
		userRepo:   userRepo,
		ledgerRepo: ledgerRepo,
		callRepo:   callRepo,
		adRepo:     adRepo,
		graph:      graph,
		cache:      resolutionCache,
		archive:    archive,
		publishers: publishers,
		hub:        hub,
		config:     config,
	}
}

type resolution struct {
	Token  string
	Source string
}

func (u *TokenUsecase) ResolvePageAccessToken(ctx context.Context, pageID string, req model.Requirements) (string, string) {
	key := cache.ResolutionKey(pageID, req)
	v, _, _ := u.group.Do(key, func() (interface{}, error) {
		return u.resolve(ctx, pageID, req), nil
	})
	res := v.(resolution)
	return res.Token, res.Source
}

// resolve is the orchestrator: ledger -> ownership -> recent success ->
// best ledger candidate or single-owner fast path -> debug all owners ->
// most recent on-file token.
func (u *TokenUsecase) resolve(ctx context.Context, pageID string, req model.Requirements) resolution {
	log := logger.GetLogger().WithField("pageId", pageID)

	if u.cache != nil {
		if token, err := u.cache.GetResolvedToken(ctx, cache.ResolutionKey(pageID, req)); err == nil && token != "" {
			return resolution{Token: token, Source: SourceCache}
		}
	}

	entries, err := u.ledgerRepo.FindValidPageTokens(ctx, u.config.NumericAppID, pageID)
	if err != nil {
		log.WithField("error", err).Error("Error while reading token ledger")
		return u.fallback(ctx, pageID)
	}

	ownership, err := u.CheckPageOwnership(ctx, pageID, true)
	if err != nil {
		log.WithField("error", err).Error("Error while resolving page ownership")
		return u.fallback(ctx, pageID)
	}

	recent, err := u.callRepo.LatestSuccess(ctx, pageID, req)
	if err != nil {
		log.WithField("error", err).Error("Error while reading recent call outcomes")
		return u.fallback(ctx, pageID)
	}
	if recent != nil && recent.Token != "" {
		u.cacheResolution(ctx, pageID, req, recent.Token)
		return resolution{Token: recent.Token, Source: SourceRecentSuccess}
	}

	if ownership.ManagedByMultipleUsers {
		if best := selectBestLedgerEntry(entries, req); best != nil {
			u.cacheResolution(ctx, pageID, req, best.Token)
			return resolution{Token: best.Token, Source: SourceBestCandidate}
		}
	} else if len(ownership.Pages) > 0 && ownership.Pages[0].AccessToken != "" {
		// Single owner: the stored page token is trusted without
		// introspection, whether or not a ledger row exists yet.
		u.cacheResolution(ctx, pageID, req, ownership.Pages[0].AccessToken)
		return resolution{Token: ownership.Pages[0].AccessToken, Source: SourceSingleOwner}
	}

	// Multiple owners with no trusted ledger state (or a single owner with
	// nothing on file): introspect every owner pair once.
	results := u.debugAllOwners(ctx, ownership)
	if best := selectBestDebugResult(results, req); best != nil {
		u.cacheResolution(ctx, pageID, req, best.PageDebug.AccessToken)
		return resolution{Token: best.PageDebug.AccessToken, Source: SourceIntrospection}
	}

	return u.fallback(ctx, pageID)
}

// fallback returns the most recent on-file token regardless of validity.
func (u *TokenUsecase) fallback(ctx context.Context, pageID string) resolution {
	token, err := u.pageRepo.MostRecentToken(ctx, u.config.NumericAppID, pageID)
	if err != nil {
		logger.GetLogger().
			WithField("pageId", pageID).
			WithField("error", err).
			Error("Error while fetching fallback token")
		return resolution{Source: SourceNone}
	}
	if token == "" {
		return resolution{Source: SourceNone}
	}
	return resolution{Token: token, Source: SourceFallback}
}

func (u *TokenUsecase) cacheResolution(ctx context.Context, pageID string, req model.Requirements, token string) {
	if u.cache == nil || token == "" {
		return
	}
	if err := u.cache.SetResolvedToken(ctx, cache.ResolutionKey(pageID, req), token); err != nil {
		logger.GetLogger().WithField("error", err).Warn("Error while caching resolved token")
	}
}

// CheckPageOwnership determines which connected users manage the page (by
// page id or IG account id) and whether more than one does.
func (u *TokenUsecase) CheckPageOwnership(ctx context.Context, identifier string, activeOnly bool) (*model.OwnershipResult, error) {
	pages, err := u.pageRepo.FindByIdentifier(ctx, u.config.NumericAppID, identifier, activeOnly)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var fbIDs []string
	for _, page := range pages {
		if !seen[page.OwnerFbID] {
			seen[page.OwnerFbID] = true
			fbIDs = append(fbIDs, page.OwnerFbID)
		}
	}

	users, err := u.userRepo.FindByFbIDs(ctx, u.config.AppID, u.config.AppEnv, fbIDs)
	if err != nil {
		return nil, err
	}
	usersByFbID := map[string]*model.User{}
	for _, user := range users {
		usersByFbID[user.FbID] = user
	}

	result := &model.OwnershipResult{}
	for _, page := range pages {
		owner, ok := usersByFbID[page.OwnerFbID]
		if !ok {
			continue
		}
		result.Pages = append(result.Pages, page)
		result.Owners = append(result.Owners, owner)
	}
	result.ManagedByMultipleUsers = len(result.Pages) > 1
	return result, nil
}

// selectBestLedgerEntry filters ledger candidates by the requirement flags
// and picks the highest capability score. Ties break toward the lowest owner
// user id. Falls back to the first candidate when the filter empties.
func selectBestLedgerEntry(entries []*model.AccessToken, req model.Requirements) *model.AccessToken {
	if len(entries) == 0 {
		return nil
	}
	sorted := make([]*model.AccessToken, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].UserID < sorted[j].UserID })

	var candidates []*model.AccessToken
	for _, entry := range sorted {
		if req.SatisfiedBy(entry) {
			candidates = append(candidates, entry)
		}
	}
	if len(candidates) == 0 {
		return sorted[0]
	}
	best := candidates[0]
	for _, entry := range candidates[1:] {
		if entry.Score() > best.Score() {
			best = entry
		}
	}
	return best
}

// selectBestDebugResult applies the same filter/score/tie-break logic to
// fresh introspection results.
func selectBestDebugResult(results []*ownerDebugResult, req model.Requirements) *ownerDebugResult {
	var valid []*ownerDebugResult
	for _, r := range results {
		if r.PageDebug != nil && r.PageDebug.IsValid && r.PageDebug.AccessToken != "" {
			valid = append(valid, r)
		}
	}
	if len(valid) == 0 {
		return nil
	}
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].UserDBID < valid[j].UserDBID })

	var candidates []*ownerDebugResult
	for _, r := range valid {
		if satisfiesDebug(r.PageDebug, req) {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return valid[0]
	}
	best := candidates[0]
	for _, r := range candidates[1:] {
		if debugScore(r.PageDebug) > debugScore(best.PageDebug) {
			best = r
		}
	}
	return best
}

func satisfiesDebug(d *model.TokenDebugResult, req model.Requirements) bool {
	if req.NeedsMessaging && !d.HasMessaging {
		return false
	}
	if req.NeedsInstagramMessaging && !d.HasInstagramMessaging {
		return false
	}
	if req.NeedsAds && !d.HasAds {
		return false
	}
	return true
}

func debugScore(d *model.TokenDebugResult) int {
	score := 0
	if d.HasMessaging {
		score++
	}
	if d.HasInstagramMessaging {
		score++
	}
	if d.HasAds {
		score++
	}
	return score
}

// ResolveUserAccessTokensForAd maps managing users to token candidates for
// ad operations. Valid ad-capable owners first; when none qualify the raw
// mapping is returned so callers can still attempt the call.
func (u *TokenUsecase) ResolveUserAccessTokensForAd(ctx context.Context, adIdentifier, pageID string) ([]model.AdTokenCandidate, error) {
	if pageID == "" && adIdentifier != "" {
		ad, err := u.adRepo.FindByIDOrTraceID(ctx, adIdentifier)
		if err != nil {
			return nil, err
		}
		if ad != nil && ad.PageID != nil {
			pageID = *ad.PageID
		}
	}
	if pageID == "" {
		return nil, nil
	}

	ownership, err := u.CheckPageOwnership(ctx, pageID, true)
	if err != nil {
		return nil, err
	}

	var all, qualified []model.AdTokenCandidate
	for i, owner := range ownership.Owners {
		candidate := model.AdTokenCandidate{
			UserAccessToken: owner.AccessToken,
			UserDBID:        owner.ID,
			PageAccessToken: ownership.Pages[i].AccessToken,
		}
		all = append(all, candidate)
		if owner.HasAds && owner.IsTokenValid != nil && *owner.IsTokenValid {
			qualified = append(qualified, candidate)
		}
	}
	if len(qualified) > 0 {
		return qualified, nil
	}
	return all, nil
}
