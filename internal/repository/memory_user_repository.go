package repository

import (
	"context"
	"sync"

	"github.com/spec-kit/profile-service/internal/domain"
)

var _ UserRepository = (*MemoryUserRepository)(nil)

// MemoryUserRepository keeps users in process memory. Used for development and tests.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*domain.User
	byEmail map[string]string
}

// NewMemoryUserRepository returns an empty in-memory store.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]string),
	}
}

// Create inserts user if neither its id nor its email is taken. Check and insert share one lock.
func (r *MemoryUserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[user.Email]; exists {
		return ErrDuplicateEmail
	}
	if _, exists := r.byID[user.ID]; exists {
		return ErrDuplicateID
	}

	stored := *user
	r.byID[user.ID] = &stored
	r.byEmail[user.Email] = user.ID
	return nil
}

// UpdateProfile applies the non-nil fields of changes under the write lock.
func (r *MemoryUserRepository) UpdateProfile(_ context.Context, id string, changes domain.UserChanges) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if changes.Name != nil {
		current.Name = *changes.Name
	}
	if changes.PasswordHash != nil {
		current.PasswordHash = *changes.PasswordHash
	}
	current.UpdatedAt = changes.UpdatedAt

	copied := *current
	return &copied, nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *r.byID[id]
	return &copied, nil
}

// Count returns the number of stored users.
func (r *MemoryUserRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
