package domain

import (
	"strings"
	"time"
)

// User is the stored account record. PasswordHash never leaves the service layer.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the externally visible projection of a User.
type PublicUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Public strips credential material from the record.
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Email: u.Email, Name: u.Name}
}

// NormalizeEmail applies the case-insensitive email policy.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ProfileUpdate carries a partial profile change; nil fields are left untouched.
type ProfileUpdate struct {
	Name     *string
	Password *string
}

// UserChanges is a validated partial write for the store. Only non-nil fields are written.
type UserChanges struct {
	Name         *string
	PasswordHash *string
	UpdatedAt    time.Time
}

// Empty reports whether no field would be written.
func (c UserChanges) Empty() bool {
	return c.Name == nil && c.PasswordHash == nil
}
