package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSessionLogin   EventType = "session.login"
	EventSessionLogout  EventType = "session.logout"
	EventSessionSignout EventType = "session.signout"
	EventSessionReissue EventType = "session.reissue"
)

// Event represents a session lifecycle change. Payloads never carry token
// values or passwords.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Subject   string    `json:"subject"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, subject string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Subject:   subject,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// LoginPayload payload.
type LoginPayload struct {
	Role             string    `json:"role"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// LogoutPayload payload.
type LogoutPayload struct {
	HadSession bool `json:"had_session"`
}

// SignoutPayload payload.
type SignoutPayload struct {
	AccountRemoved bool `json:"account_removed"`
}

// ReissuePayload payload. Source is "gate" for silent reissue or "refresh"
// for the explicit endpoint.
type ReissuePayload struct {
	Source  string `json:"source"`
	Rotated bool   `json:"rotated"`
}
