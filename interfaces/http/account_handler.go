package http

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"page-token-service/domain/dto"
	"page-token-service/infrastructure/utils"
	"page-token-service/usecase"
)

type IAccountHandler interface {
	GetAuthURL(c *gin.Context)
	Callback(c *gin.Context)
	IssueServiceToken(c *gin.Context)
}

type AccountHandler struct {
	AccountUsecase usecase.IAccountUsecase
	SecretKey      string
	AppSecret      string

	mu     sync.Mutex
	states map[string]time.Time
}

func NewAccountHandler(accountUsecase usecase.IAccountUsecase, secretKey, appSecret string) IAccountHandler {
	return &AccountHandler{
		AccountUsecase: accountUsecase,
		SecretKey:      secretKey,
		AppSecret:      appSecret,
		states:         make(map[string]time.Time),
	}
}

// GetAuthURL handles GET /auth/facebook and redirects to the consent page.
func (h *AccountHandler) GetAuthURL(c *gin.Context) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		c.JSON(http.StatusInternalServerError, dto.Res{ResponseCode: "500", ResponseMessage: "could not generate state"})
		return
	}
	state := hex.EncodeToString(buf)

	h.mu.Lock()
	// Expire stale states while we're here.
	for s, created := range h.states {
		if time.Since(created) > 10*time.Minute {
			delete(h.states, s)
		}
	}
	h.states[state] = time.Now()
	h.mu.Unlock()

	c.Redirect(http.StatusTemporaryRedirect, h.AccountUsecase.AuthURL(state))
}

// Callback handles GET /auth/facebook/callback: verifies state, exchanges
// the code, and syncs the connected account and its pages.
func (h *AccountHandler) Callback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, dto.Res{ResponseCode: "400", ResponseMessage: "missing code"})
		return
	}

	h.mu.Lock()
	_, known := h.states[state]
	delete(h.states, state)
	h.mu.Unlock()
	if !known {
		c.JSON(http.StatusBadRequest, dto.Res{ResponseCode: "400", ResponseMessage: "unknown oauth state"})
		return
	}

	user, pages, err := h.AccountUsecase.HandleCallback(c.Request.Context(), code)
	if err != nil {
		c.JSON(http.StatusBadGateway, dto.Res{ResponseCode: "502", ResponseMessage: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.Res{
		ResponseCode:    "200",
		ResponseMessage: "Account connected",
		Data: gin.H{
			"fb_id":      user.FbID,
			"page_count": len(pages),
		},
	})
}

// IssueServiceToken handles POST /auth/service-token. Internal callers trade
// the app secret for the bearer JWT the api group requires.
func (h *AccountHandler) IssueServiceToken(c *gin.Context) {
	var body dto.ServiceTokenRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, dto.Res{ResponseCode: "400", ResponseMessage: err.Error()})
		return
	}
	if h.AppSecret == "" || body.AppSecret != h.AppSecret {
		c.JSON(http.StatusUnauthorized, dto.Res{ResponseCode: "401", ResponseMessage: "Unauthorized"})
		return
	}

	serviceName := body.ServiceName
	if serviceName == "" {
		serviceName = "service"
	}
	expiresAt := time.Now().Add(72 * time.Hour)
	token, err := utils.GenerateToken(map[string]interface{}{
		"user_name": serviceName,
		"app_id":    body.AppID,
		"exp":       expiresAt.Unix(),
	}, h.SecretKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.Res{ResponseCode: "500", ResponseMessage: "could not sign token"})
		return
	}
	c.JSON(http.StatusOK, dto.Res{
		ResponseCode:    "200",
		ResponseMessage: "Success",
		Data:            gin.H{"access_token": token, "expires_at": expiresAt.Unix()},
	})
}
