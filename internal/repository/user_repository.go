package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/profile-service/internal/domain"
)

var (
	// ErrNotFound is returned when no user matches the lookup key.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned by Create when the email is already taken.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrDuplicateID is returned by Create when the generated id collides with a stored one.
	ErrDuplicateID = errors.New("user id already exists")
)

const (
	pgUniqueViolation   = "23505"
	pgEmailConstraint   = "users_email_key"
	pgPrimaryConstraint = "users_pkey"
)

// UserRepository defines persistence access for user records.
//
// Create must be atomic with respect to email: concurrent creates for the same
// email yield exactly one stored record and ErrDuplicateEmail for the rest.
// UpdateProfile writes only the non-nil fields of changes in a single statement,
// so concurrent partial updates never overwrite each other's fields.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	UpdateProfile(ctx context.Context, id string, changes domain.UserChanges) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

var _ UserRepository = (*userRepository)(nil)

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (id, email, name, password_hash, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		switch uniqueViolation(err) {
		case pgEmailConstraint:
			return ErrDuplicateEmail
		case pgPrimaryConstraint:
			return ErrDuplicateID
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, id string, changes domain.UserChanges) (*domain.User, error) {
	const query = `
        UPDATE users
        SET name = COALESCE($1, name),
            password_hash = COALESCE($2, password_hash),
            updated_at = $3
        WHERE id = $4
        RETURNING id, email, name, password_hash, created_at, updated_at`

	user, err := r.scanOne(r.pool.QueryRow(ctx, query,
		changes.Name,
		changes.PasswordHash,
		changes.UpdatedAt,
		id,
	))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, err
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `
        SELECT id, email, name, password_hash, created_at, updated_at
        FROM users WHERE id=$1`

	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `
        SELECT id, email, name, password_hash, created_at, updated_at
        FROM users WHERE email=$1`

	return r.scanOne(r.pool.QueryRow(ctx, query, email))
}

func (r *userRepository) scanOne(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}

// uniqueViolation returns the violated constraint name, or "" for any other error.
func uniqueViolation(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return pgErr.ConstraintName
	}
	return ""
}
