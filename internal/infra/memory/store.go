package memory

import (
	"context"
	"fmt"
	"sync"

	"quiz-session-service/internal/domain"
)

// Store is an in-memory implementation of session.Store with an embedded
// change feed. It backs tests and single-node runs; Postgres plus the Redis
// notifier replace it in production.
type Store struct {
	mu           sync.RWMutex
	sessions     map[string]domain.Session
	byPIN        map[string]string
	participants map[string][]domain.Participant
	answers      map[string][]domain.Answer
	watchers     map[string]map[chan domain.Session]struct{}
}

func NewStore() *Store {
	return &Store{
		sessions:     make(map[string]domain.Session),
		byPIN:        make(map[string]string),
		participants: make(map[string][]domain.Participant),
		answers:      make(map[string][]domain.Answer),
		watchers:     make(map[string]map[chan domain.Session]struct{}),
	}
}

func (s *Store) GetSession(_ context.Context, id string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return sess, nil
}

func (s *Store) GetSessionByPIN(_ context.Context, pin string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPIN[pin]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return s.sessions[id], nil
}

func (s *Store) PutSession(_ context.Context, sess domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Same behavior as the unique index on sessions.pin in Postgres.
	if otherID, ok := s.byPIN[sess.PIN]; ok && otherID != sess.ID {
		return fmt.Errorf("%w: %s", domain.ErrPINTaken, sess.PIN)
	}
	s.sessions[sess.ID] = sess
	s.byPIN[sess.PIN] = sess.ID
	return nil
}

func (s *Store) UpdateSession(_ context.Context, sess domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; !ok {
		return domain.ErrSessionNotFound
	}
	s.sessions[sess.ID] = sess
	for ch := range s.watchers[sess.ID] {
		select {
		case ch <- sess:
		default:
			// drop the stale buffered update so the freshest row gets through
			select {
			case <-ch:
			default:
			}
			ch <- sess
		}
	}
	return nil
}

func (s *Store) InsertParticipant(_ context.Context, p domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants[p.SessionID] = append(s.participants[p.SessionID], p)
	return nil
}

func (s *Store) FindParticipantByDedupKey(_ context.Context, sessionID, key string) (domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.participants[sessionID] {
		if p.DedupKey == key {
			return p, nil
		}
	}
	return domain.Participant{}, domain.ErrParticipantNotFound
}

func (s *Store) FindAnswer(_ context.Context, sessionID, participantID string, questionIndex int) (domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.answers[sessionID] {
		if a.ParticipantID == participantID && a.QuestionIndex == questionIndex {
			return a, nil
		}
	}
	return domain.Answer{}, domain.ErrAnswerNotFound
}

func (s *Store) InsertAnswer(_ context.Context, a domain.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[a.SessionID] = append(s.answers[a.SessionID], a)
	return nil
}

// Watch subscribes to updates of one session row. The cancel function is
// idempotent; after it returns the channel is closed and nothing else is
// delivered.
func (s *Store) Watch(_ context.Context, sessionID string) (<-chan domain.Session, func(), error) {
	ch := make(chan domain.Session, 8)

	s.mu.Lock()
	if s.watchers[sessionID] == nil {
		s.watchers[sessionID] = make(map[chan domain.Session]struct{})
	}
	s.watchers[sessionID][ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.watchers[sessionID][ch]; ok {
			delete(s.watchers[sessionID], ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel, nil
}
