package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/spec-kit/profile-service/internal/domain"
)

var _ UserRepository = (*sqliteUserRepository)(nil)

type sqliteUserRepository struct {
	db *sql.DB
}

// NewSQLiteUserRepository returns a SQLite-backed implementation.
func NewSQLiteUserRepository(db *sql.DB) UserRepository {
	return &sqliteUserRepository{db: db}
}

func (r *sqliteUserRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (id, email, name, password_hash, created_at, updated_at)
        VALUES (?1, ?2, ?3, ?4, ?5, ?6)`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.PasswordHash,
		toMillis(user.CreatedAt),
		toMillis(user.UpdatedAt),
	)
	if err != nil {
		switch sqliteUniqueColumn(err) {
		case "users.email":
			return ErrDuplicateEmail
		case "users.id":
			return ErrDuplicateID
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *sqliteUserRepository) UpdateProfile(ctx context.Context, id string, changes domain.UserChanges) (*domain.User, error) {
	const query = `
        UPDATE users
        SET name = COALESCE(?1, name),
            password_hash = COALESCE(?2, password_hash),
            updated_at = ?3
        WHERE id = ?4
        RETURNING id, email, name, password_hash, created_at, updated_at`

	user, err := r.scanOne(r.db.QueryRowContext(ctx, query,
		changes.Name,
		changes.PasswordHash,
		toMillis(changes.UpdatedAt),
		id,
	))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, err
}

func (r *sqliteUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `
        SELECT id, email, name, password_hash, created_at, updated_at
        FROM users WHERE id=?1`

	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *sqliteUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `
        SELECT id, email, name, password_hash, created_at, updated_at
        FROM users WHERE email=?1`

	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

func (r *sqliteUserRepository) scanOne(row *sql.Row) (*domain.User, error) {
	var (
		user               domain.User
		createdAt, updated int64
	)
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &createdAt, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.CreatedAt = fromMillis(createdAt)
	user.UpdatedAt = fromMillis(updated)
	return &user, nil
}

// sqliteUniqueColumn returns the "table.column" named by a unique or primary key
// violation, or "" for any other error.
func sqliteUniqueColumn(err error) string {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return ""
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT:
	default:
		return ""
	}
	msg := sqliteErr.Error()
	const marker = "UNIQUE constraint failed: "
	idx := strings.Index(msg, marker)
	if idx < 0 {
		return ""
	}
	column := msg[idx+len(marker):]
	if end := strings.IndexAny(column, " ,)"); end >= 0 {
		column = column[:end]
	}
	return column
}

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}
