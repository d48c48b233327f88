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
	"github.com/spec-kit/profile-service/internal/repository"
	apperrors "github.com/spec-kit/profile-service/pkg/util"
)

// UserService implements profile reads and owner-only updates.
type UserService struct {
	users      repository.UserRepository
	hasher     auth.PasswordHasher
	dispatcher events.Dispatcher
	logger     *zap.Logger
	minPwLen   int
	now        func() time.Time
}

// UserDependencies encapsulates collaborators for the user service.
type UserDependencies struct {
	UserRepo   repository.UserRepository
	Hasher     auth.PasswordHasher
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewUserService builds the service.
func NewUserService(cfg config.AuthConfig, deps UserDependencies) *UserService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	minPwLen := cfg.MinPasswordLength
	if minPwLen <= 0 {
		minPwLen = 8
	}
	return &UserService{
		users:      deps.UserRepo,
		hasher:     deps.Hasher,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		minPwLen:   minPwLen,
		now:        time.Now,
	}
}

// GetProfile returns the user with the given id.
func (s *UserService) GetProfile(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUserNotFound(id)
		}
		return nil, apperrors.NewInternalError(err)
	}
	return user, nil
}

// UpdateProfile applies a partial update to targetID on behalf of actorID.
// Only the owner may update a profile. Fields left nil in update are not written,
// so concurrent updates of different fields both survive.
func (s *UserService) UpdateProfile(ctx context.Context, actorID, targetID string, update domain.ProfileUpdate) (*domain.User, error) {
	user, err := s.GetProfile(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if actorID == "" || actorID != user.ID {
		return nil, apperrors.NewForbidden("not allowed to modify this profile")
	}

	changes := domain.UserChanges{UpdatedAt: s.now().UTC()}
	var changed []string

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, apperrors.NewInputError("name must not be blank", nil)
		}
		changes.Name = &name
		changed = append(changed, "name")
	}

	if update.Password != nil {
		if err := checkPassword(*update.Password, s.minPwLen); err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash(*update.Password)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		changes.PasswordHash = &hash
		changed = append(changed, "password")
	}

	if changes.Empty() {
		return user, nil
	}

	user, err = s.users.UpdateProfile(ctx, targetID, changes)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUserNotFound(targetID)
		}
		return nil, apperrors.NewInternalError(err)
	}

	s.logger.Info("profile updated", zap.String("user_id", user.ID), zap.Strings("fields", changed))
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventUserProfileUpdated,
		UserID:    user.ID,
		Timestamp: changes.UpdatedAt,
		Payload:   events.UserProfileUpdatedPayload{Fields: changed},
	})
	if update.Password != nil {
		publishEvent(ctx, s.dispatcher, s.logger, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventUserPasswordChanged,
			UserID:    user.ID,
			Timestamp: changes.UpdatedAt,
			Payload:   events.UserPasswordChangedPayload{Email: user.Email},
		})
	}
	return user, nil
}
