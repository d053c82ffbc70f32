// server/internal/api/handlers/auth_handler.go
package handlers

import (
	"errors"
	"net/http"
	"time"

	"container-inspection-api-server/internal/api/middleware"
	"container-inspection-api-server/internal/auth"
	"container-inspection-api-server/internal/models"
	"container-inspection-api-server/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
)

type AuthHandler struct {
	Users  repository.UserRepository
	Tokens *auth.TokenIssuer
	Log    zerolog.Logger
	// PinLimiter caps PIN sign-in attempts per device. Nil disables it.
	PinLimiter *httprate.RateLimiter
}

// NewPinLimiter allows attempts PIN sign-ins per device within window and
// answers 429 beyond that.
func NewPinLimiter(attempts int, window time.Duration) *httprate.RateLimiter {
	return httprate.NewRateLimiter(attempts, window,
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"Too many PIN attempts, try again later"}`))
		}),
	)
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	DeviceID string `json:"deviceId"`
}

type LoginPINRequest struct {
	DeviceID string `json:"deviceId" binding:"required"`
	Pin      string `json:"pin" binding:"required"`
}

type SetupPINRequest struct {
	Pin      string `json:"pin" binding:"required"`
	DeviceID string `json:"deviceId" binding:"required"`
}

// Login checks username and password. pinSetupRequired is also true when the
// user logs in from a device other than the one their PIN is bound to.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.Users.GetByUsername(c.Request.Context(), req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up user", "details": err.Error()})
		return
	}
	if !auth.CheckPasswordHash(req.Password, user.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	h.issue(c, user, req.DeviceID, gin.H{
		"pinSetupRequired": user.PinSetupRequired || (req.DeviceID != "" && user.PinDeviceID != req.DeviceID),
	})
}

// LoginPIN signs in with the PIN bound to deviceId.
func (h *AuthHandler) LoginPIN(c *gin.Context) {
	var req LoginPINRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// Every attempt counts, so a locked device cannot probe with correct guesses.
	if h.PinLimiter != nil && h.PinLimiter.OnLimit(c.Writer, c.Request, "pin:"+req.DeviceID) {
		h.Log.Warn().Str("device", req.DeviceID).Str("ip", c.ClientIP()).Msg("pin login throttled")
		c.Abort()
		return
	}

	user, err := h.Users.GetByPinDevice(c.Request.Context(), req.DeviceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "No PIN is set up on this device"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up user", "details": err.Error()})
		return
	}
	if !auth.CheckPin(req.Pin, user.Pin) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid PIN"})
		return
	}

	h.issue(c, user, req.DeviceID, gin.H{})
}

func (h *AuthHandler) issue(c *gin.Context, user *models.User, deviceID string, body gin.H) {
	if user.Status == models.UserStatusDisabled {
		c.JSON(http.StatusForbidden, gin.H{"error": "Account is disabled"})
		return
	}

	userID := user.ID.Hex()
	token, err := h.Tokens.Generate(userID, user.Username, user.Role, user.Permissions, deviceID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}
	if err := h.Users.TouchLogin(c.Request.Context(), userID, time.Now().UTC()); err != nil {
		h.Log.Warn().Err(err).Str("user", userID).Msg("failed to record last login")
	}

	body["token"] = token
	body["user"] = user
	c.JSON(http.StatusOK, body)
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.Users.GetByID(c.Request.Context(), c.GetString(middleware.KeyUserID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up user", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, user)
}

// SetupPIN binds a PIN to the caller on one device. A device can carry the
// PIN of only one user.
func (h *AuthHandler) SetupPIN(c *gin.Context) {
	var req SetupPINRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := auth.HashPin(req.Pin)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString(middleware.KeyUserID)
	if err := h.Users.SetPin(c.Request.Context(), userID, hash, req.DeviceID); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			c.JSON(http.StatusConflict, gin.H{"error": "This device already has a PIN for another user"})
		case errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save PIN", "details": err.Error()})
		}
		return
	}

	h.Log.Info().Str("user", userID).Str("device", req.DeviceID).Msg("pin set up")
	c.JSON(http.StatusOK, gin.H{"message": "PIN set up successfully", "pinSetupRequired": false})
}
