package domain

import "time"

// Token scopes.
const (
	ScopeBasic   = "basic"
	ScopeRefresh = "refresh"
)

// TokenType is the scheme reported to clients.
const TokenType = "bearer"

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
