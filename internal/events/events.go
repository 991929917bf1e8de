// Package events publishes auth lifecycle events for downstream consumers
// (recommendations, notification fan-out). Publishing is fire-and-forget
// from the request's point of view: a broker failure is logged, never
// surfaced to the client.
package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	TopicUsers    = "videotube.users"
	TopicSessions = "videotube.sessions"

	TypeUserRegistered = "user.registered"
	TypeSessionStarted = "session.started"
	TypeSessionRevoked = "session.revoked"
)

type Envelope struct {
	EventID      string    `json:"event_id"`
	EventType    string    `json:"event_type"`
	EventVersion int       `json:"event_version"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewEnvelope(eventType string) Envelope {
	return Envelope{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		EventVersion: 1,
		Timestamp:    time.Now().UTC(),
	}
}

type UserRegistered struct {
	Envelope
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type SessionEvent struct {
	Envelope
	UserID string `json:"user_id"`
}
