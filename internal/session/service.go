package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/quiz"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Service owns host-side session operations and participant joins. View
// controllers only observe the transitions made here.
type Service struct {
	store    Store
	quizzes  quiz.Repository
	resolver *quiz.Resolver
	now      func() time.Time
}

func NewService(store Store, quizzes quiz.Repository) *Service {
	return &Service{
		store:    store,
		quizzes:  quizzes,
		resolver: quiz.NewResolver(quizzes),
		now:      time.Now,
	}
}

// Resolver exposes the question resolver backed by the same quiz cache.
func (s *Service) Resolver() *quiz.Resolver {
	return s.resolver
}

// Create opens a new session for a quiz and returns it with a fresh 6-digit
// PIN. Live and poll sessions start waiting; anytime sessions are playable
// the moment they exist, with the first question already live.
func (s *Service) Create(ctx context.Context, quizID, hostID string, mode domain.Mode) (domain.Session, error) {
	if !mode.Valid() {
		return domain.Session{}, fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidInput, mode)
	}
	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		return domain.Session{}, err
	}

	now := s.now()
	sess := domain.Session{
		ID:                   uuid.NewString(),
		QuizID:               quizID,
		HostID:               hostID,
		Mode:                 mode,
		Status:               domain.StatusWaiting,
		CurrentQuestionIndex: domain.NoQuestion,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if mode == domain.ModeAnytime {
		sess.Status = domain.StatusActive
		sess.CurrentQuestionIndex = 0
	}

	// Two concurrent creates can draw the same PIN and both pass the
	// availability check; the store's uniqueness turns the loser into a
	// redraw instead of a failure.
	for attempt := 0; ; attempt++ {
		pin, err := s.newPIN(ctx)
		if err != nil {
			return domain.Session{}, err
		}
		sess.PIN = pin
		err = s.store.PutSession(ctx, sess)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, domain.ErrPINTaken) || attempt >= 4 {
			return domain.Session{}, fmt.Errorf("create session: %w", err)
		}
	}
}

// FindByPIN locates a joinable session.
func (s *Service) FindByPIN(ctx context.Context, pin string) (domain.Session, error) {
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return domain.Session{}, fmt.Errorf("%w: pin required", domain.ErrInvalidInput)
	}
	return s.store.GetSessionByPIN(ctx, pin)
}

// JoinRequest carries a participant's join form. DedupKey is typically the
// caller's network address; when set, a prior join with the same key is
// rejected. The check races a concurrent insert and that is accepted.
type JoinRequest struct {
	SessionID   string
	DisplayName string
	Email       string
	Phone       string
	DedupKey    string
}

// Join validates the form and registers the participant. Anytime sessions
// require a contact email; the other modes only need a name.
func (s *Service) Join(ctx context.Context, req JoinRequest) (domain.Participant, error) {
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	req.Email = strings.TrimSpace(req.Email)
	if req.DisplayName == "" {
		return domain.Participant{}, fmt.Errorf("%w: display name required", domain.ErrInvalidInput)
	}

	sess, err := s.store.GetSession(ctx, req.SessionID)
	if err != nil {
		return domain.Participant{}, err
	}
	if sess.Status == domain.StatusCompleted {
		return domain.Participant{}, domain.ErrSessionClosed
	}
	if sess.Mode == domain.ModeAnytime {
		if req.Email == "" {
			return domain.Participant{}, fmt.Errorf("%w: email required", domain.ErrInvalidInput)
		}
		if !emailPattern.MatchString(req.Email) {
			return domain.Participant{}, fmt.Errorf("%w: malformed email", domain.ErrInvalidInput)
		}
	}

	if req.DedupKey != "" {
		_, err := s.store.FindParticipantByDedupKey(ctx, sess.ID, req.DedupKey)
		switch {
		case err == nil:
			return domain.Participant{}, domain.ErrAlreadyJoined
		case !errors.Is(err, domain.ErrParticipantNotFound):
			return domain.Participant{}, fmt.Errorf("dedup check: %w", err)
		}
	}

	p := domain.Participant{
		ID:          uuid.NewString(),
		SessionID:   sess.ID,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Phone:       strings.TrimSpace(req.Phone),
		DedupKey:    req.DedupKey,
		JoinedAt:    s.now(),
	}
	if err := s.store.InsertParticipant(ctx, p); err != nil {
		return domain.Participant{}, fmt.Errorf("insert participant: %w", err)
	}
	return p, nil
}

// Start moves a waiting session to active with the first question live.
func (s *Service) Start(ctx context.Context, sessionID string) (domain.Session, error) {
	return s.transition(ctx, sessionID, func(sess *domain.Session) error {
		switch sess.Status {
		case domain.StatusWaiting:
			sess.Status = domain.StatusActive
			sess.CurrentQuestionIndex = 0
			return nil
		case domain.StatusActive:
			return nil // idempotent restart
		default:
			return domain.ErrStatusRegression
		}
	})
}

// Advance moves the question pointer forward by one. Past the last question
// the session completes, matching how hosts drive a game to its end.
func (s *Service) Advance(ctx context.Context, sessionID string) (domain.Session, error) {
	return s.transition(ctx, sessionID, func(sess *domain.Session) error {
		if sess.Status != domain.StatusActive {
			return fmt.Errorf("%w: session is %s", domain.ErrStatusRegression, sess.Status)
		}
		count, err := s.resolver.QuestionCount(ctx, sess.QuizID)
		if err != nil {
			return err
		}
		next := sess.CurrentQuestionIndex + 1
		if next >= count {
			sess.Status = domain.StatusCompleted
			return nil
		}
		sess.CurrentQuestionIndex = next
		return nil
	})
}

// End completes the session. Completing twice is a no-op.
func (s *Service) End(ctx context.Context, sessionID string) (domain.Session, error) {
	return s.transition(ctx, sessionID, func(sess *domain.Session) error {
		sess.Status = domain.StatusCompleted
		return nil
	})
}

func (s *Service) transition(ctx context.Context, sessionID string, mutate func(*domain.Session) error) (domain.Session, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	prev := sess
	if err := mutate(&sess); err != nil {
		return domain.Session{}, err
	}
	if sess == prev {
		return sess, nil
	}
	if sess.Status.Before(prev.Status) || (sess.Status == prev.Status && sess.CurrentQuestionIndex < prev.CurrentQuestionIndex) {
		return domain.Session{}, domain.ErrStatusRegression
	}
	sess.UpdatedAt = s.now()
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return domain.Session{}, fmt.Errorf("update session: %w", err)
	}
	return sess, nil
}

// newPIN draws 6-digit candidates until one no session is using. The store
// check makes a collision a retry instead of a silently shadowed PIN; the
// top-level rand functions are safe for concurrent creates.
func (s *Service) newPIN(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		pin := fmt.Sprintf("%06d", 100000+rand.Intn(900000))
		_, err := s.store.GetSessionByPIN(ctx, pin)
		switch {
		case errors.Is(err, domain.ErrSessionNotFound):
			return pin, nil
		case err == nil:
			continue
		default:
			return "", fmt.Errorf("check pin: %w", err)
		}
	}
	return "", errors.New("could not allocate an unused pin")
}
