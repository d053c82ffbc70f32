// server/internal/api/handlers/user_handler.go
package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"container-inspection-api-server/internal/api/middleware"
	"container-inspection-api-server/internal/auth"
	"container-inspection-api-server/internal/models"
	"container-inspection-api-server/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type UserHandler struct {
	Users repository.UserRepository
	Log   zerolog.Logger
}

type CreateUserRequest struct {
	Username    string   `json:"username" binding:"required"`
	Password    string   `json:"password" binding:"required,min=8,max=72"`
	Name        string   `json:"name" binding:"required"`
	Email       string   `json:"email"`
	Role        string   `json:"role" binding:"required"` // "admin", "inspector" or "viewer"
	Permissions []string `json:"permissions"`
}

// CreateUser is admin only. The new account must set up a PIN on first login.
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !models.ValidRole(req.Role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role " + req.Role})
		return
	}

	perms := req.Permissions
	if perms == nil {
		perms = models.DefaultPermissions(req.Role)
	}
	known := make(map[string]bool, len(models.AllPermissions))
	for _, p := range models.AllPermissions {
		known[p] = true
	}
	for _, p := range perms {
		if !known[p] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown permission " + p})
			return
		}
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		// max=72 counts characters; multi-byte ones can still overflow bcrypt.
		if errors.Is(err, auth.ErrPasswordTooLong) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be at most 72 bytes"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	now := time.Now().UTC()
	user := &models.User{
		Username:         req.Username,
		Name:             strings.TrimSpace(req.Name),
		Email:            strings.TrimSpace(req.Email),
		Password:         hashedPassword,
		Role:             req.Role,
		Permissions:      perms,
		Status:           models.UserStatusActive,
		PinSetupRequired: true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := h.Users.Create(c.Request.Context(), user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "Username already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user", "details": err.Error()})
		return
	}

	h.Log.Info().Str("username", user.Username).Str("role", user.Role).Str("by", c.GetString(middleware.KeyUsername)).Msg("user created")
	c.JSON(http.StatusCreated, user)
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.Users.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list users", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, users)
}
