package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"page-token-service/domain/dto"
	"page-token-service/domain/model"
	"page-token-service/domain/repository"
	"page-token-service/infrastructure/clients/graph"
)

// Mock implementations

type MockPageRepository struct {
	mock.Mock
}

func (m *MockPageRepository) FindByIdentifier(ctx context.Context, appID int64, identifier string, activeOnly bool) ([]*model.Page, error) {
	args := m.Called(ctx, appID, identifier, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Page), args.Error(1)
}

func (m *MockPageRepository) MostRecentToken(ctx context.Context, appID int64, pageID string) (string, error) {
	args := m.Called(ctx, appID, pageID)
	return args.String(0), args.Error(1)
}

func (m *MockPageRepository) UpdateAccessToken(ctx context.Context, pageDBID int64, token string) error {
	args := m.Called(ctx, pageDBID, token)
	return args.Error(0)
}

func (m *MockPageRepository) SetTokenValidityByToken(ctx context.Context, token string, valid bool) (int64, error) {
	args := m.Called(ctx, token, valid)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPageRepository) SetTokenValidity(ctx context.Context, pageDBID int64, valid bool) error {
	args := m.Called(ctx, pageDBID, valid)
	return args.Error(0)
}

func (m *MockPageRepository) Upsert(ctx context.Context, page *model.Page) error {
	args := m.Called(ctx, page)
	return args.Error(0)
}

func (m *MockPageRepository) ActivateBestConfig(ctx context.Context, appID int64, pageID string) error {
	args := m.Called(ctx, appID, pageID)
	return args.Error(0)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByFbIDs(ctx context.Context, appID string, appEnv string, fbIDs []string) ([]*model.User, error) {
	args := m.Called(ctx, appID, appEnv, fbIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.User), args.Error(1)
}

func (m *MockUserRepository) GetAccessToken(ctx context.Context, userDBID int64) (string, error) {
	args := m.Called(ctx, userDBID)
	return args.String(0), args.Error(1)
}

func (m *MockUserRepository) SetTokenValidityByToken(ctx context.Context, token string, valid bool) (int64, error) {
	args := m.Called(ctx, token, valid)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepository) Upsert(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

type MockTokenLedgerRepository struct {
	mock.Mock
}

func (m *MockTokenLedgerRepository) Upsert(ctx context.Context, entry *model.AccessToken) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockTokenLedgerRepository) FindValidPageTokens(ctx context.Context, appID int64, pageID string) ([]*model.AccessToken, error) {
	args := m.Called(ctx, appID, pageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.AccessToken), args.Error(1)
}

func (m *MockTokenLedgerRepository) SetValidityByToken(ctx context.Context, token string, valid bool) error {
	args := m.Called(ctx, token, valid)
	return args.Error(0)
}

type MockAPICallRepository struct {
	mock.Mock
}

func (m *MockAPICallRepository) Insert(ctx context.Context, result *model.APICallResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *MockAPICallRepository) LatestSuccess(ctx context.Context, pageID string, req model.Requirements) (*model.APICallResult, error) {
	args := m.Called(ctx, pageID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.APICallResult), args.Error(1)
}

type MockAdRepository struct {
	mock.Mock
}

func (m *MockAdRepository) FindByIDOrTraceID(ctx context.Context, identifier string) (*model.Ad, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Ad), args.Error(1)
}

type MockGraphClient struct {
	mock.Mock
}

func (m *MockGraphClient) DebugToken(ctx context.Context, inputToken string) (*dto.GraphDebugData, error) {
	args := m.Called(ctx, inputToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.GraphDebugData), args.Error(1)
}

func (m *MockGraphClient) FindPageToken(ctx context.Context, userFbID, userToken, pageID string) (string, error) {
	args := m.Called(ctx, userFbID, userToken, pageID)
	return args.String(0), args.Error(1)
}

func (m *MockGraphClient) Me(ctx context.Context, token string) (*dto.GraphProfile, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.GraphProfile), args.Error(1)
}

func (m *MockGraphClient) ListAccounts(ctx context.Context, userFbID, userToken string) ([]dto.GraphAccount, error) {
	args := m.Called(ctx, userFbID, userToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dto.GraphAccount), args.Error(1)
}

func (m *MockGraphClient) PublishPageMessage(ctx context.Context, pageID, pageToken, recipientID, message string) ([]byte, error) {
	args := m.Called(ctx, pageID, pageToken, recipientID, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// capturingPublisher records every event published through it.
type capturingPublisher struct {
	events []repository.TokenEvent
}

func (p *capturingPublisher) PublishTokenEvent(_ context.Context, event repository.TokenEvent) error {
	p.events = append(p.events, event)
	return nil
}

type engineMocks struct {
	pageRepo   *MockPageRepository
	userRepo   *MockUserRepository
	ledgerRepo *MockTokenLedgerRepository
	callRepo   *MockAPICallRepository
	adRepo     *MockAdRepository
	graph      *MockGraphClient
	publisher  *capturingPublisher
}

func newEngine() (ITokenUsecase, *engineMocks) {
	m := &engineMocks{
		pageRepo:   &MockPageRepository{},
		userRepo:   &MockUserRepository{},
		ledgerRepo: &MockTokenLedgerRepository{},
		callRepo:   &MockAPICallRepository{},
		adRepo:     &MockAdRepository{},
		graph:      &MockGraphClient{},
		publisher:  &capturingPublisher{},
	}
	engine := NewTokenUsecase(
		m.pageRepo, m.userRepo, m.ledgerRepo, m.callRepo, m.adRepo, m.graph,
		nil, nil,
		[]repository.ITokenEventPublisher{m.publisher},
		nil,
		TokenEngineConfig{
			NumericAppID:   777,
			AppID:          "app-1",
			AppEnv:         "test",
			RequiredScopes: []string{"pages_messaging", "instagram_manage_messages", "ads_management"},
		},
	)
	return engine, m
}

func boolPtr(b bool) *bool    { return &b }
func strPtr(s string) *string { return &s }

func singleOwnerPage(token string) *model.Page {
	return &model.Page{ID: 10, AppID: 777, OwnerFbID: "fb-1", PageID: "p1", AccessToken: token, Active: true}
}

func singleOwnerUser() *model.User {
	return &model.User{ID: 1, FbID: "fb-1", AppID: "app-1", AppEnv: "test", AccessToken: "user-tok", IsTokenValid: boolPtr(true)}
}

func TestResolvePageAccessToken_RecentSuccessShortCircuits(t *testing.T) {
	engine, m := newEngine()
	req := model.Requirements{NeedsMessaging: true}

	m.ledgerRepo.On("FindValidPageTokens", mock.Anything, int64(777), "p1").Return([]*model.AccessToken{}, nil)
	m.pageRepo.On("FindByIdentifier", mock.Anything, int64(777), "p1", true).Return([]*model.Page{singleOwnerPage("stored-tok")}, nil)
	m.userRepo.On("FindByFbIDs", mock.Anything, "app-1", "test", []string{"fb-1"}).Return([]*model.User{singleOwnerUser()}, nil)
	m.callRepo.On("LatestSuccess", mock.Anything, "p1", req).Return(&model.APICallResult{Token: "tok123", Success: true}, nil)

	token, source := engine.ResolvePageAccessToken(context.Background(), "p1", req)

	assert.Equal(t, "tok123", token)
	assert.Equal(t, SourceRecentSuccess, source)
	m.graph.AssertNotCalled(t, "DebugToken", mock.Anything, mock.Anything)
	m.pageRepo.AssertNotCalled(t, "MostRecentToken", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolvePageAccessToken_SingleOwnerSkipsIntrospection(t *testing.T) {
	engine, m := newEngine()
	req := model.Requirements{NeedsMessaging: true}

	entries := []*model.AccessToken{{UserID: 1, Token: "tok123", MessagingEnabled: true, IsTokenValid: boolPtr(true)}}
	m.ledgerRepo.On("FindValidPageTokens", mock.Anything, int64(777), "p1").Return(entries, nil)
	m.pageRepo.On("FindByIdentifier", mock.Anything, int64(777), "p1", true).Return([]*model.Page{singleOwnerPage("tok123")}, nil)
	m.userRepo.On("FindByFbIDs", mock.Anything, "app-1", "test", []string{"fb-1"}).Return([]*model.User{singleOwnerUser()}, nil)
	m.callRepo.On("LatestSuccess", mock.Anything, "p1", req).Return(nil, nil)

	token, source := engine.ResolvePageAccessToken(context.Background(), "p1", req)

	assert.Equal(t, "tok123", token)
	assert.Equal(t, SourceSingleOwner, source)
	m.graph.AssertNotCalled(t, "DebugToken", mock.Anything, mock.Anything)
	m.graph.AssertNotCalled(t, "FindPageToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResolvePageAccessToken_SingleOwnerNoLedgerRowsUsesStoredToken(t *testing.T) {
	engine, m := newEngine()
	req := model.Requirements{}

	m.ledgerRepo.On("FindValidPageTokens", mock.Anything, int64(777), "p1").Return(nil, nil)
	m.pageRepo.On("FindByIdentifier", mock.Anything, int64(777), "p1", true).Return([]*model.Page{singleOwnerPage("tok123")}, nil)
	m.userRepo.On("FindByFbIDs", mock.Anything, "app-1", "test", []string{"fb-1"}).Return([]*model.User{singleOwnerUser()}, nil)
	m.callRepo.On("LatestSuccess", mock.Anything, "p1", req).Return(nil, nil)

	token, source := engine.ResolvePageAccessToken(context.Background(), "p1", req)

	assert.Equal(t, "tok123", token)
	assert.Equal(t, SourceSingleOwner, source)
	m.graph.AssertNotCalled(t, "DebugToken", mock.Anything, mock.Anything)
	m.graph.AssertNotCalled(t, "FindPageToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.pageRepo.AssertNotCalled(t, "MostRecentToken", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolvePageAccessToken_MultiOwnerPicksCapableCandidate(t *testing.T) {
	engine, m := newEngine()
	req := model.Requirements{NeedsMessaging: true}

	entries := []*model.AccessToken{
		{UserID: 1, Token: "tokA", MessagingEnabled: false, AdsEnabled: true, IsTokenValid: boolPtr(true)},
		{UserID: 2, Token: "tokB", MessagingEnabled: true, IsTokenValid: boolPtr(true)},
	}
	pages := []*model.Page{
		{ID: 10, AppID: 777, OwnerFbID: "fb-1", PageID: "p1", AccessToken: "tokA", Active: true},
		{ID: 11, AppID: 777, OwnerFbID: "fb-2", PageID: "p1", AccessToken: "tokB", Active: true},
	}
	owners := []*model.User{
		{ID: 1, FbID: "fb-1", AccessToken: "user-tok-1"},
		{ID: 2, FbID: "fb-2", AccessToken: "user-tok-2"},
	}
	m.ledgerRepo.On("FindValidPageTokens", mock.Anything, int64(777), "p1").Return(entries, nil)
	m.pageRepo.On("FindByIdentifier", mock.Anything, int64(777), "p1", true).Return(pages, nil)
	m.userRepo.On("FindByFbIDs", mock.Anything, "app-1", "test", []string{"fb-1", "fb-2"}).Return(owners, nil)
	m.callRepo.On("LatestSuccess", mock.Anything, "p1", req).Return(nil, nil)

	token, source := engine.ResolvePageAccessToken(context.Background(), "p1", req)

	assert.Equal(t, "tokB", token)
	assert.Equal(t, SourceBestCandidate, source)
}

func TestSelectBestLedgerEntry(t *testing.T) {
	t.Run("ties break toward the lowest owner user id", func(t *testing.T) {
		entries := []*model.AccessToken{
			{UserID: 2, Token: "tokB", MessagingEnabled: true},
			{UserID: 1, Token: "tokA", MessagingEnabled: true},
		}
		best := selectBestLedgerEntry(entries, model.Requirements{NeedsMessaging: true})
		require.NotNil(t, best)
		assert.Equal(t, int64(1), best.UserID)
		assert.Equal(t, "tokA", best.Token)
	})

	t.Run("higher capability score wins", func(t *testing.T) {
		entries := []*model.AccessToken{
			{UserID: 1, Token: "tokA", MessagingEnabled: true},
			{UserID: 2, Token: "tokB", MessagingEnabled: true, InstagramEnabled: true, AdsEnabled: true},
		}
		best := selectBestLedgerEntry(entries, model.Requirements{NeedsMessaging: true})
		require.NotNil(t, best)
		assert.Equal(t, "tokB", best.Token)
	})

	t.Run("empty filter falls back to the lowest-id candidate", func(t *testing.T) {
		entries := []*model.AccessToken{
			{UserID: 3, Token: "tokC"},
			{UserID: 2, Token: "tokB"},
		}
		best := selectBestLedgerEntry(entries, model.Requirements{NeedsAds: true})
		require.NotNil(t, best)
		assert.Equal(t, "tokB", best.Token)
	})

	t.Run("nil on no entries", func(t *testing.T) {
		assert.Nil(t, selectBestLedgerEntry(nil, model.Requirements{}))
	})
}

func TestResolvePageAccessToken_IntrospectionRefreshesPageToken(t *testing.T) {
	engine, m := newEngine()
	req := model.Requirements{NeedsMessaging: true}

	pages := []*model.Page{
		{ID: 10, AppID: 777, OwnerFbID: "fb-1", PageID: "p1", AccessToken: "tokOld", Active: true},
		{ID: 11, AppID: 777, OwnerFbID: "fb-2", PageID: "p1", AccessToken: "tokB", Active: true},
	}
	owners := []*model.User{
		{ID: 1, FbID: "fb-1", AccessToken: "user-tok-1"},
		{ID: 2, FbID: "fb-2", AccessToken: "user-tok-2"},
	}

	m.ledgerRepo.On("FindValidPageTokens", mock.Anything, int64(777), "p1").Return(nil, nil)
	m.pageRepo.On("FindByIdentifier", mock.Anything, int64(777), "p1", true).Return(pages, nil)
	m.userRepo.On("FindByFbIDs", mock.Anything, "app-1", "test", []string{"fb-1", "fb-2"}).Return(owners, nil)
	m.callRepo.On("LatestSuccess", mock.Anything, "p1", req).Return(nil, nil)

	messaging := &dto.GraphDebugData{
		IsValid: true,
		Scopes:  []string{"pages_messaging", "instagram_manage_messages", "ads_management"},
		GranularScopes: []dto.GranularScope{
			{Scope: "pages_messaging"},
			{Scope: "ads_management"},
		},
	}
	adsOnly := &dto.GraphDebugData{
		IsValid:        true,
		Scopes:         []string{"ads_management"},
		GranularScopes: []dto.GranularScope{{Scope: "ads_management"}},
	}
	m.graph.On("DebugToken", mock.Anything, "user-tok-1").Return(messaging, nil)
	m.graph.On("DebugToken", mock.Anything, "user-tok-2").Return(messaging, nil)
	// The first owner's page token is stale and gets the one-shot refresh.
	m.graph.On("DebugToken", mock.Anything, "tokOld").Return(&dto.GraphDebugData{IsValid: false}, nil)
	m.graph.On("FindPageToken", mock.Anything, "fb-1", "user-tok-1", "p1").Return("tokNew", nil)
	m.graph.On("DebugToken", mock.Anything, "tokNew").Return(messaging, nil)
	// The second owner's page token is valid but cannot message.
	m.graph.On("DebugToken", mock.Anything, "tokB").Return(adsOnly, nil)

	m.pageRepo.On("UpdateAccessToken", mock.Anything, int64(10), "tokNew").Return(nil)
	m.ledgerRepo.On("Upsert", mock.Anything, mock.Anything).Return(nil)

	token, source := engine.ResolvePageAccessToken(context.Background(), "p1", req)

	assert.Equal(t, "tokNew", token)
	assert.Equal(t, SourceIntrospection, source)
	m.pageRepo.AssertCalled(t, "UpdateAccessToken", mock.Anything, int64(10), "tokNew")

	require.Len(t, m.publisher.events, 1)
	assert.Equal(t, "token_refreshed", m.publisher.events[0].Type)
	assert.Equal(t, "p1", m.publisher.events[0].PageID)

	// A user and a page ledger row per owner pair.
	m.ledgerRepo.AssertNumberOfCalls(t, "Upsert", 4)
}

func TestResolvePageAccessToken_FallsBackToMostRecentToken(t *testing.T) {
	engine, m := newEngine()
	req := model.Requirements{}

	m.ledgerRepo.On("FindValidPageTokens", mock.Anything, int64(777), "p1").Return(nil, nil)
	m.pageRepo.On("FindByIdentifier", mock.Anything, int64(777), "p1", true).Return(nil, nil)
	m.userRepo.On("FindByFbIDs", mock.Anything, "app-1", "test", mock.Anything).Return(nil, nil)
	m.callRepo.On("LatestSuccess", mock.Anything, "p1", req).Return(nil, nil)
	m.pageRepo.On("MostRecentToken", mock.Anything, int64(777), "p1").Return("tokLast", nil)

	token, source := engine.ResolvePageAccessToken(context.Background(), "p1", req)

	assert.Equal(t, "tokLast", token)
	assert.Equal(t, SourceFallback, source)
}

func TestResolvePageAccessToken_NothingOnFile(t *testing.T) {
	engine, m := newEngine()
	req := model.Requirements{}

	m.ledgerRepo.On("FindValidPageTokens", mock.Anything, int64(777), "missing").Return(nil, nil)
	m.pageRepo.On("FindByIdentifier", mock.Anything, int64(777), "missing", true).Return(nil, nil)
	m.userRepo.On("FindByFbIDs", mock.Anything, "app-1", "test", mock.Anything).Return(nil, nil)
	m.callRepo.On("LatestSuccess", mock.Anything, "missing", req).Return(nil, nil)
	m.pageRepo.On("MostRecentToken", mock.Anything, int64(777), "missing").Return("", nil)

	token, source := engine.ResolvePageAccessToken(context.Background(), "missing", req)

	assert.Empty(t, token)
	assert.Equal(t, SourceNone, source)
}

func TestCheckPageOwnership_MatchesOwnersToPages(t *testing.T) {
	engine, m := newEngine()

	pages := []*model.Page{
		{ID: 10, OwnerFbID: "fb-1", PageID: "p1"},
		{ID: 11, OwnerFbID: "fb-2", PageID: "p1"},
		{ID: 12, OwnerFbID: "fb-orphan", PageID: "p1"},
	}
	owners := []*model.User{
		{ID: 1, FbID: "fb-1"},
		{ID: 2, FbID: "fb-2"},
	}
	m.pageRepo.On("FindByIdentifier", mock.Anything, int64(777), "p1", true).Return(pages, nil)
	m.userRepo.On("FindByFbIDs", mock.Anything, "app-1", "test", []string{"fb-1", "fb-2", "fb-orphan"}).Return(owners, nil)

	ownership, err := engine.CheckPageOwnership(context.Background(), "p1", true)

	require.NoError(t, err)
	assert.True(t, ownership.ManagedByMultipleUsers)
	// The orphan row has no connected user and is dropped.
	require.Len(t, ownership.Pages, 2)
	require.Len(t, ownership.Owners, 2)
	assert.Equal(t, ownership.Pages[0].OwnerFbID, ownership.Owners[0].FbID)
	assert.Equal(t, ownership.Pages[1].OwnerFbID, ownership.Owners[1].FbID)
}

func TestCallGraphAPI_InvalidTokenCodePropagatesInvalidation(t *testing.T) {
	engine, m := newEngine()

	apiErr := graph.FromBody(&dto.GraphErrorBody{Message: "Error validating access token", Code: 190}, 401, "")
	m.callRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	m.pageRepo.On("SetTokenValidityByToken", mock.Anything, "tokBad", false).Return(int64(1), nil)
	m.ledgerRepo.On("SetValidityByToken", mock.Anything, "tokBad", false).Return(nil)

	params := CallParams{PageID: "p1", Token: "tokBad", TokenType: model.TokenTypePage, ReqURL: "/p1/feed"}
	_, err := engine.CallGraphAPI(context.Background(), params, func(ctx context.Context) ([]byte, error) {
		return nil, apiErr
	})

	var got *graph.APIError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, graph.KindAuth, got.Kind)
	assert.True(t, got.IsTokenInvalid())

	m.pageRepo.AssertCalled(t, "SetTokenValidityByToken", mock.Anything, "tokBad", false)
	m.ledgerRepo.AssertCalled(t, "SetValidityByToken", mock.Anything, "tokBad", false)
	m.userRepo.AssertNotCalled(t, "SetTokenValidityByToken", mock.Anything, mock.Anything, mock.Anything)

	require.Len(t, m.publisher.events, 1)
	assert.Equal(t, "token_invalidated", m.publisher.events[0].Type)
	assert.Equal(t, model.TokenTypePage, m.publisher.events[0].TokenType)
	assert.Equal(t, 190, m.publisher.events[0].ErrorCode)
}

func TestCallGraphAPI_NonTokenErrorDoesNotInvalidate(t *testing.T) {
	engine, m := newEngine()

	apiErr := graph.FromBody(&dto.GraphErrorBody{Message: "Unknown error", Code: 1}, 500, "")
	m.callRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)

	params := CallParams{PageID: "p1", Token: "tokFine", TokenType: model.TokenTypePage}
	_, err := engine.CallGraphAPI(context.Background(), params, func(ctx context.Context) ([]byte, error) {
		return nil, apiErr
	})

	require.Error(t, err)
	m.pageRepo.AssertNotCalled(t, "SetTokenValidityByToken", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, m.publisher.events)
}

func TestCallGraphAPI_SuccessLogsOutcome(t *testing.T) {
	engine, m := newEngine()

	var logged *model.APICallResult
	m.callRepo.On("Insert", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		logged = args.Get(1).(*model.APICallResult)
	}).Return(nil)

	params := CallParams{PageID: "p1", Token: "tok123", TokenType: model.TokenTypePage, ReqURL: "/p1/messages"}
	body, err := engine.CallGraphAPI(context.Background(), params, func(ctx context.Context) ([]byte, error) {
		return []byte(`{"message_id":"m1"}`), nil
	})

	require.NoError(t, err)
	assert.JSONEq(t, `{"message_id":"m1"}`, string(body))
	require.NotNil(t, logged)
	assert.True(t, logged.Success)
	assert.Equal(t, "ok", logged.Status)
	assert.Equal(t, "tok123", logged.Token)
	require.NotNil(t, logged.PageID)
	assert.Equal(t, "p1", *logged.PageID)
}

func TestInvalidateToken_FallsThroughToUserRows(t *testing.T) {
	engine, m := newEngine()

	m.pageRepo.On("SetTokenValidityByToken", mock.Anything, "user-tok", false).Return(int64(0), nil)
	m.userRepo.On("SetTokenValidityByToken", mock.Anything, "user-tok", false).Return(int64(1), nil)
	m.ledgerRepo.On("SetValidityByToken", mock.Anything, "user-tok", false).Return(nil)

	err := engine.InvalidateToken(context.Background(), "user-tok", "p1", 190, "expired")

	require.NoError(t, err)
	m.userRepo.AssertCalled(t, "SetTokenValidityByToken", mock.Anything, "user-tok", false)
	require.Len(t, m.publisher.events, 1)
	assert.Equal(t, model.TokenTypeUser, m.publisher.events[0].TokenType)
}

func TestSendPageMessage_NoUsableToken(t *testing.T) {
	engine, m := newEngine()
	req := model.Requirements{NeedsMessaging: true, Action: "send_message"}

	m.ledgerRepo.On("FindValidPageTokens", mock.Anything, int64(777), "p1").Return(nil, nil)
	m.pageRepo.On("FindByIdentifier", mock.Anything, int64(777), "p1", true).Return(nil, nil)
	m.userRepo.On("FindByFbIDs", mock.Anything, "app-1", "test", mock.Anything).Return(nil, nil)
	m.callRepo.On("LatestSuccess", mock.Anything, "p1", req).Return(nil, nil)
	m.pageRepo.On("MostRecentToken", mock.Anything, int64(777), "p1").Return("", nil)

	_, err := engine.SendPageMessage(context.Background(), "p1", "rcpt-1", "hello")

	assert.ErrorIs(t, err, ErrNoUsableToken)
	m.graph.AssertNotCalled(t, "PublishPageMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendPageMessage_SendsWithResolvedToken(t *testing.T) {
	engine, m := newEngine()
	req := model.Requirements{NeedsMessaging: true, Action: "send_message"}

	entries := []*model.AccessToken{{UserID: 1, Token: "tok123", MessagingEnabled: true, IsTokenValid: boolPtr(true)}}
	m.ledgerRepo.On("FindValidPageTokens", mock.Anything, int64(777), "p1").Return(entries, nil)
	m.pageRepo.On("FindByIdentifier", mock.Anything, int64(777), "p1", true).Return([]*model.Page{singleOwnerPage("tok123")}, nil)
	m.userRepo.On("FindByFbIDs", mock.Anything, "app-1", "test", []string{"fb-1"}).Return([]*model.User{singleOwnerUser()}, nil)
	m.callRepo.On("LatestSuccess", mock.Anything, "p1", req).Return(nil, nil)
	m.callRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	m.graph.On("PublishPageMessage", mock.Anything, "p1", "tok123", "rcpt-1", "hello").
		Return([]byte(`{"message_id":"m1"}`), nil)

	body, err := engine.SendPageMessage(context.Background(), "p1", "rcpt-1", "hello")

	require.NoError(t, err)
	assert.JSONEq(t, `{"message_id":"m1"}`, string(body))
}

func TestResolveUserAccessTokensForAd(t *testing.T) {
	t.Run("qualified ad-capable owners first", func(t *testing.T) {
		engine, m := newEngine()

		m.adRepo.On("FindByIDOrTraceID", mock.Anything, "tr-1").
			Return(&model.Ad{ID: 5, FbAdID: "ad-1", PageID: strPtr("p1")}, nil)
		pages := []*model.Page{
			{ID: 10, OwnerFbID: "fb-1", PageID: "p1", AccessToken: "pageTokA"},
			{ID: 11, OwnerFbID: "fb-2", PageID: "p1", AccessToken: "pageTokB"},
		}
		owners := []*model.User{
			{ID: 1, FbID: "fb-1", AccessToken: "userTokA", HasAds: true, IsTokenValid: boolPtr(true)},
			{ID: 2, FbID: "fb-2", AccessToken: "userTokB", HasAds: false, IsTokenValid: boolPtr(true)},
		}
		m.pageRepo.On("FindByIdentifier", mock.Anything, int64(777), "p1", true).Return(pages, nil)
		m.userRepo.On("FindByFbIDs", mock.Anything, "app-1", "test", []string{"fb-1", "fb-2"}).Return(owners, nil)

		candidates, err := engine.ResolveUserAccessTokensForAd(context.Background(), "tr-1", "")

		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, "userTokA", candidates[0].UserAccessToken)
		assert.Equal(t, int64(1), candidates[0].UserDBID)
		assert.Equal(t, "pageTokA", candidates[0].PageAccessToken)
	})

	t.Run("all owners when none qualify", func(t *testing.T) {
		engine, m := newEngine()

		pages := []*model.Page{{ID: 10, OwnerFbID: "fb-1", PageID: "p1", AccessToken: "pageTokA"}}
		owners := []*model.User{{ID: 1, FbID: "fb-1", AccessToken: "userTokA", HasAds: false}}
		m.pageRepo.On("FindByIdentifier", mock.Anything, int64(777), "p1", true).Return(pages, nil)
		m.userRepo.On("FindByFbIDs", mock.Anything, "app-1", "test", []string{"fb-1"}).Return(owners, nil)

		candidates, err := engine.ResolveUserAccessTokensForAd(context.Background(), "", "p1")

		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, "userTokA", candidates[0].UserAccessToken)
	})

	t.Run("nothing without a page", func(t *testing.T) {
		engine, m := newEngine()
		m.adRepo.On("FindByIDOrTraceID", mock.Anything, "tr-unknown").Return(nil, nil)

		candidates, err := engine.ResolveUserAccessTokensForAd(context.Background(), "tr-unknown", "")

		require.NoError(t, err)
		assert.Nil(t, candidates)
	})
}
