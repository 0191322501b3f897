package http

import (
	"net/http"

	"peercall/internal/core/domain"
	"peercall/internal/core/services"
	apperrors "peercall/pkg/errors"
	"peercall/pkg/validation"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService services.AuthService
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) SetupRoutes(router *gin.Engine) {
	router.POST("/api/v1/auth/token", h.IssueToken)
}

// IssueToken mints a room access token. In a full deployment this would sit
// behind the product's own user auth; here it only validates the shape of the
// request.
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req struct {
		UserID      string `json:"user_id" binding:"required"`
		DisplayName string `json:"display_name" binding:"required"`
		RoomID      string `json:"room_id" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		respondError(c, apperrors.NewInvalidInputError(err.Error()))
		return
	}

	if err := validation.ValidateConnectionID(req.UserID); err != nil {
		respondError(c, apperrors.NewInvalidInputError(err.Error()))
		return
	}
	if err := validation.ValidateDisplayName(req.DisplayName); err != nil {
		respondError(c, apperrors.NewInvalidInputError(err.Error()))
		return
	}
	if err := validation.ValidateRoomID(req.RoomID); err != nil {
		respondError(c, apperrors.NewInvalidInputError(err.Error()))
		return
	}

	token, err := h.authService.GenerateToken(
		domain.ConnectionID(req.UserID),
		req.DisplayName,
		domain.RoomID(req.RoomID),
	)
	if err != nil {
		respondError(c, apperrors.WrapError(err, apperrors.ErrCodeInternal, "failed to sign token", http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}
