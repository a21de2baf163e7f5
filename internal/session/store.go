// Package session owns the lifecycle of hosted quiz/poll sessions: creating
// and driving them as a host, joining them as a participant, and projecting
// their state into a live per-participant view.
package session

import (
	"context"

	"quiz-session-service/internal/domain"
)

// Store abstracts the session datastore (in-memory, Postgres). Rows are
// shared mutable state; callers treat everything they read as a cache that
// can be stale until the next read or notification.
type Store interface {
	// GetSession returns the session row or domain.ErrSessionNotFound.
	GetSession(ctx context.Context, id string) (domain.Session, error)
	// GetSessionByPIN locates a session by its shareable PIN.
	GetSessionByPIN(ctx context.Context, pin string) (domain.Session, error)
	// PutSession inserts a new session row.
	PutSession(ctx context.Context, s domain.Session) error
	// UpdateSession overwrites the session row. Implementations publish a
	// change notification after a successful write.
	UpdateSession(ctx context.Context, s domain.Session) error

	// InsertParticipant adds a joined participant.
	InsertParticipant(ctx context.Context, p domain.Participant) error
	// FindParticipantByDedupKey returns a previously joined participant with
	// the same dedup key, or domain.ErrParticipantNotFound.
	FindParticipantByDedupKey(ctx context.Context, sessionID, key string) (domain.Participant, error)

	// FindAnswer returns the answer for (session, participant, question index)
	// or domain.ErrAnswerNotFound.
	FindAnswer(ctx context.Context, sessionID, participantID string, questionIndex int) (domain.Answer, error)
	// InsertAnswer records a new answer row. The store does not enforce
	// uniqueness; the gate's check-then-insert is the only guard.
	InsertAnswer(ctx context.Context, a domain.Answer) error
}

// Notifier delivers session-row updates for a subscribed session id. The
// returned cancel function tears the subscription down deterministically;
// after cancel returns, the channel is closed and no further updates arrive.
type Notifier interface {
	Watch(ctx context.Context, sessionID string) (<-chan domain.Session, func(), error)
}

// Publisher is the write side of a Notifier. Stores call it after each
// session update.
type Publisher interface {
	Publish(ctx context.Context, s domain.Session)
}
