package repository_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/profile-service/internal/config"
	"github.com/spec-kit/profile-service/internal/domain"
	"github.com/spec-kit/profile-service/internal/persistence"
	"github.com/spec-kit/profile-service/internal/repository"
)

type repoFactory func(t *testing.T) repository.UserRepository

func backends() map[string]repoFactory {
	return map[string]repoFactory{
		"memory": func(t *testing.T) repository.UserRepository {
			return repository.NewMemoryUserRepository()
		},
		"sqlite": newSQLiteRepo,
	}
}

func newSQLiteRepo(t *testing.T) repository.UserRepository {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	db, err := persistence.NewSQLite(ctx, config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "users.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, persistence.RunMigrations(ctx, db.DB, goose.DialectSQLite3, logger))
	return repository.NewSQLiteUserRepository(db.DB)
}

func newUser(email string) *domain.User {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         "Test User",
		PasswordHash: "$2a$04$hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestUserRepositoryCreateAndLookup(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := factory(t)
			user := newUser("a@x.com")

			require.NoError(t, repo.Create(ctx, user))

			byID, err := repo.GetByID(ctx, user.ID)
			require.NoError(t, err)
			require.Equal(t, user.Email, byID.Email)
			require.Equal(t, user.Name, byID.Name)
			require.Equal(t, user.PasswordHash, byID.PasswordHash)
			require.True(t, user.CreatedAt.Equal(byID.CreatedAt))

			byEmail, err := repo.GetByEmail(ctx, "a@x.com")
			require.NoError(t, err)
			require.Equal(t, user.ID, byEmail.ID)
		})
	}
}

func TestUserRepositoryNotFound(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := factory(t)

			_, err := repo.GetByID(ctx, "missing")
			require.ErrorIs(t, err, repository.ErrNotFound)

			_, err = repo.GetByEmail(ctx, "nobody@x.com")
			require.ErrorIs(t, err, repository.ErrNotFound)

			name := "Ghost"
			_, err = repo.UpdateProfile(ctx, "missing", domain.UserChanges{Name: &name, UpdatedAt: time.Now()})
			require.ErrorIs(t, err, repository.ErrNotFound)
		})
	}
}

func TestUserRepositoryDuplicateEmail(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := factory(t)

			first := newUser("dup@x.com")
			require.NoError(t, repo.Create(ctx, first))

			err := repo.Create(ctx, newUser("dup@x.com"))
			require.ErrorIs(t, err, repository.ErrDuplicateEmail)

			stored, err := repo.GetByEmail(ctx, "dup@x.com")
			require.NoError(t, err)
			require.Equal(t, first.ID, stored.ID)
		})
	}
}

func TestUserRepositoryConcurrentDuplicateCreate(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := factory(t)

			const workers = 16
			var (
				wg         sync.WaitGroup
				created    atomic.Int32
				duplicate  atomic.Int32
				start      = make(chan struct{})
				unexpected = make(chan error, workers)
			)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					err := repo.Create(ctx, newUser("race@x.com"))
					switch {
					case err == nil:
						created.Add(1)
					case errors.Is(err, repository.ErrDuplicateEmail):
						duplicate.Add(1)
					default:
						unexpected <- err
					}
				}()
			}
			close(start)
			wg.Wait()
			close(unexpected)

			for err := range unexpected {
				require.NoError(t, err)
			}
			require.EqualValues(t, 1, created.Load())
			require.EqualValues(t, workers-1, duplicate.Load())
		})
	}
}

func TestUserRepositoryUpdateProfileWritesOnlySuppliedFields(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := factory(t)
			user := newUser("upd@x.com")
			require.NoError(t, repo.Create(ctx, user))

			renamed := "Renamed"
			firstAt := user.UpdatedAt.Add(time.Minute)
			updated, err := repo.UpdateProfile(ctx, user.ID, domain.UserChanges{Name: &renamed, UpdatedAt: firstAt})
			require.NoError(t, err)
			require.Equal(t, "Renamed", updated.Name)
			require.Equal(t, user.PasswordHash, updated.PasswordHash)
			require.True(t, firstAt.Equal(updated.UpdatedAt))

			hash := "$2a$04$other"
			secondAt := firstAt.Add(time.Minute)
			updated, err = repo.UpdateProfile(ctx, user.ID, domain.UserChanges{PasswordHash: &hash, UpdatedAt: secondAt})
			require.NoError(t, err)
			require.Equal(t, "Renamed", updated.Name)

			stored, err := repo.GetByID(ctx, user.ID)
			require.NoError(t, err)
			require.Equal(t, "Renamed", stored.Name)
			require.Equal(t, hash, stored.PasswordHash)
			require.Equal(t, "upd@x.com", stored.Email)
			require.True(t, user.CreatedAt.Equal(stored.CreatedAt))
			require.True(t, secondAt.Equal(stored.UpdatedAt))
		})
	}
}

func TestUserRepositoryConcurrentFieldUpdatesBothSurvive(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := factory(t)
			user := newUser("both@x.com")
			require.NoError(t, repo.Create(ctx, user))

			renamed := "Renamed"
			hash := "$2a$04$rotated"
			var wg sync.WaitGroup
			errs := make([]error, 2)
			for i, changes := range []domain.UserChanges{
				{Name: &renamed, UpdatedAt: time.Now()},
				{PasswordHash: &hash, UpdatedAt: time.Now()},
			} {
				wg.Add(1)
				go func(i int, changes domain.UserChanges) {
					defer wg.Done()
					_, errs[i] = repo.UpdateProfile(ctx, user.ID, changes)
				}(i, changes)
			}
			wg.Wait()
			require.NoError(t, errs[0])
			require.NoError(t, errs[1])

			stored, err := repo.GetByID(ctx, user.ID)
			require.NoError(t, err)
			require.Equal(t, "Renamed", stored.Name)
			require.Equal(t, hash, stored.PasswordHash)
		})
	}
}

func TestUserRepositoryDuplicateID(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := factory(t)

			first := newUser("first@x.com")
			require.NoError(t, repo.Create(ctx, first))

			clash := newUser("second@x.com")
			clash.ID = first.ID
			err := repo.Create(ctx, clash)
			require.ErrorIs(t, err, repository.ErrDuplicateID)
			require.NotErrorIs(t, err, repository.ErrDuplicateEmail)

			_, err = repo.GetByEmail(ctx, "second@x.com")
			require.ErrorIs(t, err, repository.ErrNotFound)
		})
	}
}

func TestMemoryRepositoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryUserRepository()
	user := newUser("copy@x.com")
	require.NoError(t, repo.Create(ctx, user))

	user.Name = "mutated after insert"
	fetched, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "Test User", fetched.Name)

	fetched.Name = "mutated after read"
	again, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "Test User", again.Name)
}

func TestMemoryRepositoryManyUsers(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryUserRepository()
	for i := 0; i < 25; i++ {
		require.NoError(t, repo.Create(ctx, newUser(fmt.Sprintf("user%d@x.com", i))))
	}
	require.Equal(t, 25, repo.Count())
}
