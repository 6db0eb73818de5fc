package handler

import (
	"errors"
	"net/http"

	"parkease/internal/domain"
	"parkease/internal/service"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(as *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: as}
}

// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var dto domain.LoginUserDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	authResponse, err := h.authService.Login(c.Request.Context(), dto)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, authResponse)
}

// GET /api/v1/profile
func (h *AuthHandler) Profile(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	user, err := h.authService.Profile(c.Request.Context(), id.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": user})
}

// PUT /api/v1/profile/username
func (h *AuthHandler) UpdateUsername(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var dto domain.UpdateUsernameDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.authService.UpdateUsername(c.Request.Context(), id.UserID, dto.NewUsername)
	if err != nil {
		// Name taken: 409.
		if errors.Is(err, service.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "username updated", "profile": user})
}
