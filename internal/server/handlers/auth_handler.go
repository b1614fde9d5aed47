package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-app/internal/models"
	"chat-app/internal/server/middleware"
	"chat-app/internal/service"
	"chat-app/internal/ws"
)

type AuthHandler struct {
	auth *service.AuthService
	hub  *ws.Hub
}

func NewAuthHandler(auth *service.AuthService, hub *ws.Hub) *AuthHandler {
	return &AuthHandler{auth: auth, hub: hub}
}

// Signup godoc
// @Summary Create an account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.SignupRequest true "signup payload"
// @Success 201 {object} models.LoginResponse
// @Router /auth/signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.auth.Signup(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "could not create account"})
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Login godoc
// @Summary Authenticate and receive a JWT
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "login payload"
// @Success 200 {object} models.LoginResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Logout exists for client symmetry; tokens are stateless so there is
// nothing to revoke server-side.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Check returns the authenticated account.
func (h *AuthHandler) Check(c *gin.Context) {
	user, err := h.auth.Check(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, user.ToResponse())
}

// UpdateProfile uploads a new avatar, persists it, and then notifies every
// other connected client so rosters update without a refetch.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	file, err := c.FormFile("profilePic")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "profilePic file is required"})
		return
	}

	userID := middleware.GetUserID(c)
	user, err := h.auth.UpdateProfilePic(c.Request.Context(), userID, file)
	if err != nil {
		if errors.Is(err, service.ErrUploadsDisabled) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "uploads are not configured"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update profile"})
		return
	}

	h.hub.BroadcastProfilePic(user.ID, user.ProfilePic)
	c.JSON(http.StatusOK, user.ToResponse())
}

// ForgotPassword issues a reset token. The response is identical whether or
// not the address exists.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req models.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.auth.ForgotPassword(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, service.ErrResetDisabled) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "password reset is not configured"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not process request"})
		return
	}
	if token != "" {
		// TODO: hand the token to the mailer once one is wired up.
		slog.Info("password reset token issued", "email", req.Email)
	}
	c.JSON(http.StatusOK, gin.H{"message": "if the address exists, a reset link has been sent"})
}

// ResetPassword consumes a reset token and sets the new password.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req models.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.auth.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired reset token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}
