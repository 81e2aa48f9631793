package usecase

import (
	"context"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"

	"page-token-service/domain/model"
	"page-token-service/domain/repository"
	"page-token-service/infrastructure/configuration"
	"page-token-service/infrastructure/logger"
)

type IAccountUsecase interface {
	// AuthURL builds the consent URL for the connect flow.
	AuthURL(state string) string
	// HandleCallback exchanges the code, stores the connected user, and
	// syncs the pages they manage.
	HandleCallback(ctx context.Context, code string) (*model.User, []*model.Page, error)
}

type AccountUsecase struct {
	oauthConfig *oauth2.Config
	graph       repository.IGraph
	userRepo    repository.IUser
	pageRepo    repository.IPage
	config      TokenEngineConfig
}

func NewAccountUsecase(
	oauthCfg *configuration.MetaOAuthConfig,
	graphClient repository.IGraph,
	userRepo repository.IUser,
	pageRepo repository.IPage,
	config TokenEngineConfig,
) IAccountUsecase {
	return &AccountUsecase{
		oauthConfig: &oauth2.Config{
			ClientID:     oauthCfg.ClientID,
			ClientSecret: oauthCfg.ClientSecret,
			RedirectURL:  oauthCfg.RedirectURL,
			Scopes:       oauthCfg.Scopes,
			Endpoint:     facebook.Endpoint,
		},
		graph:    graphClient,
		userRepo: userRepo,
		pageRepo: pageRepo,
		config:   config,
	}
}

func (u *AccountUsecase) AuthURL(state string) string {
	return u.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (u *AccountUsecase) HandleCallback(ctx context.Context, code string) (*model.User, []*model.Page, error) {
	token, err := u.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, nil, err
	}

	profile, err := u.graph.Me(ctx, token.AccessToken)
	if err != nil {
		return nil, nil, err
	}

	valid := true
	user := &model.User{
		FbID:         profile.ID,
		AppID:        u.config.AppID,
		AppEnv:       u.config.AppEnv,
		AccessToken:  token.AccessToken,
		IsTokenValid: &valid,
	}
	if profile.Email != "" {
		email := profile.Email
		user.Email = &email
	}
	if err := u.userRepo.Upsert(ctx, user); err != nil {
		return nil, nil, err
	}

	accounts, err := u.graph.ListAccounts(ctx, profile.ID, token.AccessToken)
	if err != nil {
		return nil, nil, err
	}

	var pages []*model.Page
	for _, account := range accounts {
		page := &model.Page{
			AppID:        u.config.NumericAppID,
			OwnerFbID:    user.FbID,
			PageID:       account.ID,
			Name:         account.Name,
			AccessToken:  account.AccessToken,
			Active:       true,
			IsTokenValid: &valid,
		}
		if err := u.pageRepo.Upsert(ctx, page); err != nil {
			logger.GetLogger().
				WithField("pageId", account.ID).
				WithField("error", err).
				Error("Error while upserting connected page")
			continue
		}
		pages = append(pages, page)
	}

	// Fire and forget: newest config per page wins, duplicates deactivate.
	go u.activateBestConfigs(pages)

	return user, pages, nil
}

func (u *AccountUsecase) activateBestConfigs(pages []*model.Page) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, page := range pages {
		if err := u.pageRepo.ActivateBestConfig(ctx, u.config.NumericAppID, page.PageID); err != nil {
			logger.GetLogger().
				WithField("pageId", page.PageID).
				WithField("error", err).
				Error("Error while activating best page config")
		}
	}
}
