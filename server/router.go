package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"page-token-service/infrastructure/realtime"
	httpHandler "page-token-service/interfaces/http"
	"page-token-service/interfaces/middleware"
)

func InitiateRouter(
	tokenHandler httpHandler.ITokenHandler,
	accountHandler httpHandler.IAccountHandler,
	healthHandler httpHandler.IHealthHandler,
	tokenHub *realtime.Hub,
	secretKey string,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:4200", "http://localhost:4201", "https://localhost:4200", "https://localhost:4201"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := router.Group("api")
	api.Use(middleware.Auth(secretKey))

	router.GET("/healthz", healthHandler.Healthz)

	// Account connect flow
	if accountHandler != nil {
		router.GET("/auth/facebook", accountHandler.GetAuthURL)
		router.GET("/auth/facebook/callback", accountHandler.Callback)
		router.POST("/auth/service-token", accountHandler.IssueServiceToken)
	}

	if tokenHandler != nil {
		pages := api.Group("/pages")
		{
			pages.GET("/:pageId/token", tokenHandler.ResolvePageToken)
			pages.GET("/:pageId/owners", tokenHandler.GetPageOwnership)
			pages.POST("/:pageId/messages", tokenHandler.SendPageMessage)
		}
		api.GET("/ads/:adId/tokens", tokenHandler.ResolveAdTokens)
	}

	// Token validity events (SSE)
	if tokenHub != nil {
		api.GET("/token-events", tokenHub.Serve)
	}

	return router
}
