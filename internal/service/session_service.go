package service

import (
	"context"
	"strings"
	"time"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/apperr"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/models"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/repository"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/utils"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/pkg/logger"
	"go.uber.org/zap"
)

// SessionService issues and resolves signed session tokens.
type SessionService struct {
	userRepo *repository.UserRepository
	audit    *AuditService
	secret   string
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionService(userRepo *repository.UserRepository, audit *AuditService, secret string, ttl time.Duration) *SessionService {
	return &SessionService{
		userRepo: userRepo,
		audit:    audit,
		secret:   secret,
		ttl:      ttl,
		now:      time.Now,
	}
}

// WithClock replaces the wall clock; used by tests.
func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	s.now = now
	return s
}

// TTL is the lifetime of issued sessions.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

func (s *SessionService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	start := time.Now()

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, "", apperr.ValidationFields("email and password are required", map[string]string{
			"email":    "required",
			"password": "required",
		})
	}

	user, err := s.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		logger.Log.Error("Failed to get user by email",
			zap.String("email", email),
			zap.Error(err),
		)
		return nil, "", apperr.Internal("lookup user", err)
	}
	if user == nil {
		logger.Log.Warn("Login failed: user not found", zap.String("email", email))
		return nil, "", apperr.Unauthorized("invalid email or password")
	}

	valid, err := utils.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		logger.Log.Error("Failed to verify password",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
		return nil, "", apperr.Unauthorized("invalid email or password")
	}
	if !valid {
		logger.Log.Warn("Login failed: invalid password",
			zap.String("user_id", user.ID.String()),
		)
		return nil, "", apperr.Unauthorized("invalid email or password")
	}

	token, err := s.CreateSession(user)
	if err != nil {
		return nil, "", err
	}

	s.audit.Record(ctx, ActionLogin, &user.ID, nil)

	logger.Log.Info("User logged in successfully",
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(user.Role)),
		zap.Duration("total_duration", time.Since(start)),
	)
	return user, token, nil
}

// CreateSession signs a token for user valid for the service TTL.
func (s *SessionService) CreateSession(user *models.User) (string, error) {
	token, err := utils.GenerateTokenAt(user, s.secret, s.ttl, s.now())
	if err != nil {
		logger.Log.Error("Failed to generate session token",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
		return "", apperr.Internal("sign session", err)
	}
	return token, nil
}

// ResolveSession returns the user behind token, or nil when the token is
// missing, malformed, forged, expired or names an unknown user.
func (s *SessionService) ResolveSession(ctx context.Context, token string) *models.User {
	if token == "" {
		return nil
	}

	now := s.now()
	claims, err := utils.ValidateTokenAt(token, s.secret, now)
	if err != nil {
		logger.Log.Debug("Session rejected", zap.Error(err))
		return nil
	}
	if claims.ExpiresAt == nil || !now.Before(claims.ExpiresAt.Time) {
		return nil
	}

	user, err := s.userRepo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		logger.Log.Error("Failed to load session user",
			zap.String("user_id", claims.UserID.String()),
			zap.Error(err),
		)
		return nil
	}
	return user
}
