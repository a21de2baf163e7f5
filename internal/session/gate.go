package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"quiz-session-service/internal/domain"
)

// Gate enforces at-most-one-answer-per-participant-per-question with a
// check-then-insert sequence. Two rapid submissions can both pass the check
// before either insert lands; the store carries no unique constraint, so this
// stays a best-effort guard rather than a transactional guarantee.
type Gate struct {
	store Store
	now   func() time.Time
}

func NewGate(store Store) *Gate {
	return &Gate{store: store, now: time.Now}
}

// Submission carries everything needed to record one answer.
type Submission struct {
	SessionID     string
	ParticipantID string
	QuestionID    string
	QuestionIndex int
	OptionID      string
}

// Submit records the answer unless one already exists. On a duplicate it
// returns the existing row together with domain.ErrDuplicateAnswer so the
// caller can reflect the recorded selection without writing again.
func (g *Gate) Submit(ctx context.Context, sub Submission) (domain.Answer, error) {
	if sub.OptionID == "" {
		return domain.Answer{}, fmt.Errorf("%w: option id required", domain.ErrInvalidInput)
	}
	if sub.QuestionIndex < 0 {
		return domain.Answer{}, fmt.Errorf("%w: no question is live", domain.ErrInvalidInput)
	}

	existing, err := g.store.FindAnswer(ctx, sub.SessionID, sub.ParticipantID, sub.QuestionIndex)
	switch {
	case err == nil:
		return existing, domain.ErrDuplicateAnswer
	case !errors.Is(err, domain.ErrAnswerNotFound):
		return domain.Answer{}, fmt.Errorf("check existing answer: %w", err)
	}

	answer := domain.Answer{
		ID:            uuid.NewString(),
		SessionID:     sub.SessionID,
		ParticipantID: sub.ParticipantID,
		QuestionID:    sub.QuestionID,
		QuestionIndex: sub.QuestionIndex,
		OptionID:      sub.OptionID,
		CreatedAt:     g.now(),
	}
	if err := g.store.InsertAnswer(ctx, answer); err != nil {
		return domain.Answer{}, fmt.Errorf("insert answer: %w", err)
	}
	return answer, nil
}

// Recorded returns the participant's answer for the question index, or
// domain.ErrAnswerNotFound. Controllers use it when re-deriving view state.
func (g *Gate) Recorded(ctx context.Context, sessionID, participantID string, questionIndex int) (domain.Answer, error) {
	return g.store.FindAnswer(ctx, sessionID, participantID, questionIndex)
}
