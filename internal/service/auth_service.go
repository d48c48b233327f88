package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/profile-service/internal/auth"
	"github.com/spec-kit/profile-service/internal/config"
	"github.com/spec-kit/profile-service/internal/domain"
	"github.com/spec-kit/profile-service/internal/events"
	"github.com/spec-kit/profile-service/internal/ratelimit"
	"github.com/spec-kit/profile-service/internal/repository"
	apperrors "github.com/spec-kit/profile-service/pkg/util"
)

// LoginThrottle tracks failed logins per key.
type LoginThrottle interface {
	Check(ctx context.Context, key string) error
	Fail(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
	Cooldown() time.Duration
}

// RegisterInput carries registration fields.
type RegisterInput struct {
	Email    string
	Name     string
	Password string
}

// AuthService coordinates registration, login and token refresh flows.
type AuthService struct {
	users      repository.UserRepository
	hasher     auth.PasswordHasher
	tokenMgr   *auth.TokenManager
	throttle   LoginThrottle
	ipThrottle LoginThrottle
	dispatcher events.Dispatcher
	logger     *zap.Logger
	minPwLen   int
	dummyHash  string
	now        func() time.Time
}

// AuthDependencies encapsulates collaborators for the auth service.
// Hasher and Tokens are built from configuration when nil; the throttles and Dispatcher are optional.
// Throttle is keyed by email and client IP together; IPThrottle by client IP alone.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Hasher     auth.PasswordHasher
	Tokens     *auth.TokenManager
	Throttle   LoginThrottle
	IPThrottle LoginThrottle
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) (*AuthService, error) {
	if deps.UserRepo == nil {
		return nil, errors.New("user repository is required")
	}
	hasher := deps.Hasher
	if hasher == nil {
		h, err := auth.NewPasswordHasher(cfg.Auth)
		if err != nil {
			return nil, err
		}
		hasher = h
	}
	tokens := deps.Tokens
	if tokens == nil {
		tokens = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL(),
			auth.WithIssuer(cfg.Auth.JWTIssuer),
			auth.WithRefreshTTL(cfg.Auth.RefreshTokenTTL()))
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	minPwLen := cfg.Auth.MinPasswordLength
	if minPwLen <= 0 {
		minPwLen = 8
	}

	// Unknown emails are verified against this digest so both login failure paths cost the same.
	dummyHash, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, err
	}

	return &AuthService{
		users:      deps.UserRepo,
		hasher:     hasher,
		tokenMgr:   tokens,
		throttle:   deps.Throttle,
		ipThrottle: deps.IPThrottle,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		minPwLen:   minPwLen,
		dummyHash:  dummyHash,
		now:        time.Now,
	}, nil
}

// Register creates a new user account and returns the stored record.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	email := domain.NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if email == "" || name == "" {
		return nil, apperrors.NewInputError("email and name are required", nil)
	}
	if !validEmail(email) {
		return nil, apperrors.NewInputError("invalid email address", map[string]any{"field": "email"})
	}
	if err := checkPasswordSize(in.Password); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewDuplicateEmail()
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewInternalError(err)
	}

	if err := checkPassword(in.Password, s.minPwLen); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrEmptyPassword) {
			return nil, apperrors.NewInputError(err.Error(), nil)
		}
		return nil, apperrors.NewInternalError(err)
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperrors.NewDuplicateEmail()
		}
		return nil, apperrors.NewInternalError(err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID))
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventUserRegistered,
		UserID:    user.ID,
		Timestamp: now,
		Payload:   events.UserRegisteredPayload{Email: user.Email, Name: user.Name},
	})
	return user, nil
}

// Login authenticates by email and password and issues a token pair.
// Unknown emails and wrong passwords produce the same error. clientIP may be
// empty, in which case failures are counted per email only.
func (s *AuthService) Login(ctx context.Context, email, password, clientIP string) (*domain.User, domain.TokenPair, error) {
	email = domain.NormalizeEmail(email)
	keys := newThrottleKeys(email, clientIP)

	if err := s.checkThrottle(ctx, keys); err != nil {
		return nil, domain.TokenPair{}, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, domain.TokenPair{}, apperrors.NewInternalError(err)
		}
		s.hasher.Verify(password, s.dummyHash)
		s.recordFailure(ctx, keys)
		return nil, domain.TokenPair{}, apperrors.NewInvalidCredentials()
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.recordFailure(ctx, keys)
		return nil, domain.TokenPair{}, apperrors.NewInvalidCredentials()
	}

	if s.throttle != nil {
		if err := s.throttle.Reset(ctx, keys.account); err != nil {
			s.logger.Warn("login throttle reset failed", zap.Error(err))
		}
	}

	pair, err := s.issuePair(user.ID)
	if err != nil {
		return nil, domain.TokenPair{}, err
	}
	s.logger.Info("user logged in", zap.String("user_id", user.ID))
	return user, pair, nil
}

// Refresh exchanges a refresh token for a new token pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.User, domain.TokenPair, error) {
	claims, err := s.tokenMgr.Parse(refreshToken)
	if err != nil || !claims.HasScope(domain.ScopeRefresh) {
		return nil, domain.TokenPair{}, apperrors.NewUnauthenticated("invalid or expired refresh token")
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.TokenPair{}, apperrors.NewUnauthenticated("invalid or expired refresh token")
		}
		return nil, domain.TokenPair{}, apperrors.NewInternalError(err)
	}

	pair, err := s.issuePair(user.ID)
	if err != nil {
		return nil, domain.TokenPair{}, err
	}
	return user, pair, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// Hasher exposes the password hasher shared with the profile service.
func (s *AuthService) Hasher() auth.PasswordHasher {
	return s.hasher
}

func (s *AuthService) issuePair(subject string) (domain.TokenPair, error) {
	access, accessExp, err := s.tokenMgr.IssueAccess(subject)
	if err != nil {
		return domain.TokenPair{}, apperrors.NewInternalError(err)
	}
	refresh, refreshExp, err := s.tokenMgr.IssueRefresh(subject)
	if err != nil {
		return domain.TokenPair{}, apperrors.NewInternalError(err)
	}
	return domain.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// throttleKeys names the counters touched by one login attempt.
type throttleKeys struct {
	account string
	ip      string
}

func newThrottleKeys(email, clientIP string) throttleKeys {
	clientIP = strings.TrimSpace(clientIP)
	if clientIP == "" {
		return throttleKeys{account: email}
	}
	return throttleKeys{account: email + "|" + clientIP, ip: "ip:" + clientIP}
}

// checkThrottle fails open when the throttle backend is unavailable.
func (s *AuthService) checkThrottle(ctx context.Context, keys throttleKeys) error {
	if err := s.checkOne(ctx, s.throttle, keys.account); err != nil {
		return err
	}
	if keys.ip == "" {
		return nil
	}
	return s.checkOne(ctx, s.ipThrottle, keys.ip)
}

func (s *AuthService) checkOne(ctx context.Context, throttle LoginThrottle, key string) error {
	if throttle == nil {
		return nil
	}
	err := throttle.Check(ctx, key)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ratelimit.ErrRateLimited):
		return apperrors.NewTooManyAttempts(int(throttle.Cooldown().Seconds()))
	default:
		s.logger.Warn("login throttle check failed", zap.Error(err))
		return nil
	}
}

// recordFailure counts a failed attempt. The per-IP counter is never reset by a success,
// so an attacker cannot clear it by logging into an account of their own.
func (s *AuthService) recordFailure(ctx context.Context, keys throttleKeys) {
	if s.throttle != nil {
		if err := s.throttle.Fail(ctx, keys.account); err != nil {
			s.logger.Warn("login throttle update failed", zap.Error(err))
		}
	}
	if s.ipThrottle != nil && keys.ip != "" {
		if err := s.ipThrottle.Fail(ctx, keys.ip); err != nil {
			s.logger.Warn("login throttle update failed", zap.Error(err))
		}
	}
}

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("user_id", event.UserID),
			zap.Error(err))
	}
}
