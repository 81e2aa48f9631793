package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"page-token-service/domain/repository"
	"page-token-service/infrastructure/cache"
	"page-token-service/infrastructure/clients/graph"
	"page-token-service/infrastructure/configuration"
	"page-token-service/infrastructure/logger"
	"page-token-service/infrastructure/persistence"
	"page-token-service/infrastructure/pubsub"
	"page-token-service/infrastructure/realtime"
	"page-token-service/infrastructure/servicebus"
	httpHandler "page-token-service/interfaces/http"
	"page-token-service/server"
	"page-token-service/usecase"

	"golang.org/x/sync/errgroup"
)

var httpServer *http.Server

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
	}
}

func main() {
	defer recoverPanic()
	ctx := context.Background()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	g, ctx := errgroup.WithContext(ctx)

	// Load env from files (non-destructive; OS env still has precedence)
	configuration.LoadEnvFromFile("config.env", ".env")

	app := configuration.C.App

	db, vendor, err := InitiateDatabase()
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Database initialization failed")
		os.Exit(1)
	}
	logger.GetLogger().
		WithField("vendor", vendor).
		WithField("ping", db.Ping()).
		Info("Database connected.")

	if vendor == "mssql" {
		if err := persistence.EnsureTokenSchemaMSSQL(db); err != nil {
			logger.GetLogger().WithField("error", err).Error("failed ensuring token schema (mssql)")
		}
	} else {
		if err := persistence.EnsureTokenSchema(db); err != nil {
			logger.GetLogger().WithField("error", err).Error("failed ensuring token schema")
		}
	}

	mongoDb, err := persistence.NewMongoDB()
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("MongoDB not available - continuing without debug archiving")
		mongoDb = nil
	} else {
		logger.GetLogger().Info("MongoDB connected successfully")
	}

	pubSubClient, err := pubsub.NewPubSub(ctx, configuration.C.Pubsub.ProjectID)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Pub/Sub not available - continuing without Pub/Sub events")
		pubSubClient = nil
	}

	azServiceBusClient, err := servicebus.NewServiceBus(ctx, configuration.C.ServiceBus.Namespace)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Azure Service Bus not available - continuing without Service Bus events")
		azServiceBusClient = nil
	}

	redisClient := cache.NewRedisClient()
	if redisClient == nil {
		logger.GetLogger().Info("Redis not configured; resolution cache disabled")
	} else {
		logger.GetLogger().Info("Redis client initialized successfully.")
	}

	// Repository wiring per SQL vendor.
	var (
		pageRepository   repository.IPage
		userRepository   repository.IUser
		ledgerRepository repository.ITokenLedger
		callRepository   repository.IAPICall
		adRepository     repository.IAd
	)
	if vendor == "mssql" {
		pageRepository = persistence.NewPageRepositoryMSSQL(db)
		userRepository = persistence.NewUserRepositoryMSSQL(db)
		ledgerRepository = persistence.NewTokenLedgerRepositoryMSSQL(db)
		callRepository = persistence.NewAPICallRepositoryMSSQL(db)
		adRepository = persistence.NewAdRepositoryMSSQL(db)
	} else {
		pageRepository = persistence.NewPageRepository(db)
		userRepository = persistence.NewUserRepository(db)
		ledgerRepository = persistence.NewTokenLedgerRepository(db)
		callRepository = persistence.NewAPICallRepository(db)
		adRepository = persistence.NewAdRepository(db)
	}

	graphClient := graph.NewClient(graph.Config{
		AppID:             configuration.C.Meta.AppID,
		AppSecret:         configuration.C.Meta.AppSecret,
		GraphVersion:      configuration.C.Meta.GraphVersion,
		AccountsPageLimit: configuration.C.Meta.AccountsPageLimit,
	})

	var publishers []repository.ITokenEventPublisher
	if pubSubClient != nil {
		publishers = append(publishers, pubsub.NewTokenEventPublisher(pubSubClient, configuration.C.Pubsub.Topic))
	}
	if azServiceBusClient != nil {
		publishers = append(publishers, servicebus.NewTokenEventPublisher(azServiceBusClient, configuration.C.ServiceBus.Queue))
	}

	resolutionCache := cache.NewResolutionCache(redisClient)
	debugArchive := persistence.NewDebugArchiveRepository(mongoDb)
	tokenHub := realtime.NewTokenHub()

	engineConfig := usecase.TokenEngineConfig{
		NumericAppID:   parseNumericAppID(configuration.C.Meta.AppID),
		AppID:          configuration.C.Meta.AppID,
		AppEnv:         appEnv(),
		RequiredScopes: splitScopes(configuration.C.Meta.RequiredScopes),
	}

	tokenUsecase := usecase.NewTokenUsecase(
		pageRepository,
		userRepository,
		ledgerRepository,
		callRepository,
		adRepository,
		graphClient,
		resolutionCache,
		debugArchive,
		publishers,
		tokenHub,
		engineConfig,
	)
	tokenHandler := httpHandler.NewTokenHandler(tokenUsecase)

	var accountHandler httpHandler.IAccountHandler
	oauthConfig, err := configuration.GetMetaOAuthConfig()
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Facebook OAuth not configured - account connect flow disabled")
	} else {
		accountUsecase := usecase.NewAccountUsecase(oauthConfig, graphClient, userRepository, pageRepository, engineConfig)
		accountHandler = httpHandler.NewAccountHandler(accountUsecase, app.SecretKey, configuration.C.Meta.AppSecret)
	}

	healthHandler := httpHandler.NewHealthHandler()

	router := server.InitiateRouter(tokenHandler, accountHandler, healthHandler, tokenHub, app.SecretKey)

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt)
	defer func() {
		signal.Stop(signalChan)
		cancel()
	}()

	port := app.Port
	logger.GetLogger().WithFields(map[string]interface{}{"port": port, "tls": app.TLSEnabled}).Info("Starting application")
	g.Go(func() error {
		httpServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}
		if app.TLSEnabled {
			cert := app.TLSCertFile
			key := app.TLSKeyFile
			if cert == "" || key == "" {
				logger.GetLogger().Error("TLS enabled but cert or key path empty; falling back to HTTP")
				if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			} else {
				logger.GetLogger().WithFields(map[string]interface{}{"cert": cert, "key": key}).Info("Serving HTTPS")
				if err := httpServer.ListenAndServeTLS(cert, key); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			}
		} else {
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		}
		return nil
	})

	select {
	case <-interrupt:
		logger.GetLogger().Info("Application shutdown requested")
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.GetLogger().WithField("error", err).Error("Server returned an error")
		os.Exit(2)
	}
}

// InitiateDatabase opens the SQL store selected by Database.Vendor and
// returns the handle plus the effective vendor name.
func InitiateDatabase() (*sql.DB, string, error) {
	vendor := configuration.C.Database.Vendor
	if vendor == "mssql" {
		db, err := persistence.NewMSSQLDB()
		if err != nil {
			logger.GetLogger().WithField("error", err).Error("Cannot connect to MSSQL")
			return nil, vendor, err
		}
		return db, vendor, nil
	}

	db, err := persistence.NewPostgreSQLDB()
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Cannot connect to PostgreSQL")
		return nil, "psql", err
	}
	return db, "psql", nil
}

func parseNumericAppID(appID string) int64 {
	id, err := strconv.ParseInt(appID, 10, 64)
	if err != nil {
		logger.GetLogger().WithField("appId", appID).Warn("META_APP_ID is not numeric; page scoping will use 0")
		return 0
	}
	return id
}

func appEnv() string {
	if v := os.Getenv("APP_ENV"); v != "" {
		return v
	}
	if v := os.Getenv("ENV"); v != "" {
		return v
	}
	return "development"
}

func splitScopes(scopes string) []string {
	parts := strings.Split(scopes, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
