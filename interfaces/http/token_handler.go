package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"page-token-service/domain/dto"
	"page-token-service/domain/model"
	"page-token-service/infrastructure/clients/graph"
	"page-token-service/usecase"
)

type ITokenHandler interface {
	ResolvePageToken(c *gin.Context)
	GetPageOwnership(c *gin.Context)
	SendPageMessage(c *gin.Context)
	ResolveAdTokens(c *gin.Context)
}

type TokenHandler struct {
	TokenUsecase usecase.ITokenUsecase
}

func NewTokenHandler(tokenUsecase usecase.ITokenUsecase) ITokenHandler {
	return &TokenHandler{TokenUsecase: tokenUsecase}
}

// ResolvePageToken handles GET /api/pages/:pageId/token.
// Requirement flags come as query params: needsMessaging, needsInstagram,
// needsAds.
func (h *TokenHandler) ResolvePageToken(c *gin.Context) {
	pageID := c.Param("pageId")
	req := model.Requirements{
		NeedsMessaging:          c.Query("needsMessaging") == "true",
		NeedsInstagramMessaging: c.Query("needsInstagram") == "true",
		NeedsAds:                c.Query("needsAds") == "true",
		Action:                  c.Query("action"),
	}

	token, source := h.TokenUsecase.ResolvePageAccessToken(c.Request.Context(), pageID, req)
	response := dto.ResolveTokenResponse{
		PageID:      pageID,
		AccessToken: token,
		Source:      source,
		Found:       token != "",
	}
	if token == "" {
		c.JSON(http.StatusNotFound, dto.Res{
			ResponseCode:    "404",
			ResponseMessage: "No usable access token for page",
			Data:            response,
		})
		return
	}
	c.JSON(http.StatusOK, dto.Res{
		ResponseCode:    "200",
		ResponseMessage: "Success",
		Data:            response,
	})
}

// GetPageOwnership handles GET /api/pages/:pageId/owners.
func (h *TokenHandler) GetPageOwnership(c *gin.Context) {
	pageID := c.Param("pageId")
	activeOnly := c.DefaultQuery("activeOnly", "true") == "true"

	ownership, err := h.TokenUsecase.CheckPageOwnership(c.Request.Context(), pageID, activeOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.Res{ResponseCode: "500", ResponseMessage: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.Res{ResponseCode: "200", ResponseMessage: "Success", Data: ownership})
}

// SendPageMessage handles POST /api/pages/:pageId/messages.
func (h *TokenHandler) SendPageMessage(c *gin.Context) {
	pageID := c.Param("pageId")
	var body dto.SendPageMessageRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, dto.Res{ResponseCode: "400", ResponseMessage: err.Error()})
		return
	}

	res, err := h.TokenUsecase.SendPageMessage(c.Request.Context(), pageID, body.RecipientID, body.Message)
	if err != nil {
		if errors.Is(err, usecase.ErrNoUsableToken) {
			c.JSON(http.StatusNotFound, dto.Res{ResponseCode: "404", ResponseMessage: err.Error()})
			return
		}
		var apiErr *graph.APIError
		if errors.As(err, &apiErr) {
			status := http.StatusBadGateway
			if apiErr.Kind == graph.KindAuth {
				status = http.StatusUnauthorized
			}
			c.JSON(status, dto.Res{ResponseCode: "502", ResponseMessage: apiErr.Message, Data: apiErr})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.Res{ResponseCode: "500", ResponseMessage: err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", res)
}

// ResolveAdTokens handles GET /api/ads/:adId/tokens?pageId=.
func (h *TokenHandler) ResolveAdTokens(c *gin.Context) {
	adID := c.Param("adId")
	pageID := c.Query("pageId")

	candidates, err := h.TokenUsecase.ResolveUserAccessTokensForAd(c.Request.Context(), adID, pageID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.Res{ResponseCode: "500", ResponseMessage: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.Res{
		ResponseCode:    "200",
		ResponseMessage: "Success",
		Data: dto.AdTokensResponse{
			AdID:       adID,
			PageID:     pageID,
			Candidates: candidates,
		},
	})
}
