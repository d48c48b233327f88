package events

import (
	"time"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered      EventType = "user_registered"
	EventUserProfileUpdated  EventType = "user_profile_updated"
	EventUserPasswordChanged EventType = "user_password_changed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// UserRegisteredPayload payload.
type UserRegisteredPayload struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// UserProfileUpdatedPayload lists which fields changed; values are never included.
type UserProfileUpdatedPayload struct {
	Fields []string `json:"fields"`
}

// UserPasswordChangedPayload payload.
type UserPasswordChangedPayload struct {
	Email string `json:"email"`
}
