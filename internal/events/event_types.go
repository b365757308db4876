package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAccountRegistered EventType = "account_registered"
	EventAccountCreated    EventType = "account_created"
	EventAccountApproved   EventType = "account_approved"
	EventAccountRevoked    EventType = "account_revoked"
	EventAccountRestored   EventType = "account_restored"
	EventAccountDeleted    EventType = "account_deleted"
)

// Event represents a lifecycle change emitted by the account service.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// NewEvent stamps an event with a fresh id and the given time.
func NewEvent(eventType EventType, username string, at time.Time, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Username:  username,
		Timestamp: at,
		Payload:   payload,
	}
}

// AccountCreatedPayload accompanies registration and admin creation.
type AccountCreatedPayload struct {
	Status  string `json:"status"`
	IsAdmin bool   `json:"is_admin"`
}

// AccountRevokedPayload accompanies revocation.
type AccountRevokedPayload struct {
	Reason string `json:"reason"`
}

// AccountDeletedPayload accompanies deletion.
type AccountDeletedPayload struct {
	Removed int `json:"removed"`
}
