package handler

import (
	"net/http"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/apperr"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/middleware"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/service"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	sessions     *service.SessionService
	limiter      *middleware.RateLimiter
	secureCookie bool
}

// NewAuthHandler builds the auth endpoints. limiter may be nil.
func NewAuthHandler(sessions *service.SessionService, limiter *middleware.RateLimiter, isProduction bool) *AuthHandler {
	return &AuthHandler{
		sessions:     sessions,
		limiter:      limiter,
		secureCookie: isProduction,
	}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Log.Warn("Login request parsing failed",
			zap.String("ip", c.ClientIP()),
			zap.Error(err),
		)
		respondError(c, bindError(err))
		return
	}

	user, token, err := h.sessions.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		logger.Log.Warn("Login failed",
			zap.String("email", req.Email),
			zap.String("ip", c.ClientIP()),
			zap.Error(err),
		)
		respondError(c, err)
		return
	}

	h.setSessionCookie(c, token, int(h.sessions.TTL().Seconds()))

	if h.limiter != nil {
		if err := h.limiter.Reset(c.Request.Context(), c.ClientIP()); err != nil {
			logger.Log.Warn("Failed to reset login rate limit", zap.Error(err))
		}
	}

	logger.Log.Info("User logged in",
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(user.Role)),
		zap.String("ip", c.ClientIP()),
	)

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Logout POST /auth/logout. Clearing an absent cookie is fine.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{})
}

// Me GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		respondError(c, apperr.Unauthorized("no valid session"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		middleware.SessionCookie,
		value,
		maxAge,
		"/",
		"",             // domain (empty = current domain)
		h.secureCookie, // HTTPS-only in production
		true,           // httpOnly
	)
}
