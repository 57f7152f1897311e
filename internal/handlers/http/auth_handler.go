package http

import (
	"net/http"
	"strings"
	"time"

	"drawza/internal/core/domain"
	"drawza/internal/core/services"
	"drawza/pkg/errors"
	"drawza/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AuthHandler struct {
	authService services.AuthService
	tokenTTL    time.Duration
}

func NewAuthHandler(authService services.AuthService, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		tokenTTL:    tokenTTL,
	}
}

func (h *AuthHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/auth")
	{
		api.POST("/session", h.CreateSession)
	}
}

type SessionRequest struct {
	UserName string `json:"userName" binding:"required,max=50"`
}

// CreateSession issues an access token for a display name. Rooms are open
// to anyone who knows their id, so there is no credential check here; the
// token pins a stable user identity to the connection.
func (h *AuthHandler) CreateSession(c *gin.Context) {
	var req SessionRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	req.UserName = strings.TrimSpace(req.UserName)
	if err := validation.ValidateDisplayName(req.UserName); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	userID := domain.UserID(uuid.New().String())

	accessToken, err := h.authService.GenerateToken(userID, req.UserName)
	if err != nil {
		c.Error(errors.NewInternalError("failed to generate token"))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user_id":      userID,
		"user_name":    req.UserName,
		"access_token": accessToken,
		"expires_in":   int(h.tokenTTL / time.Second),
	})
}
