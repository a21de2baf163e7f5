// Package quiz resolves question content for live sessions. Content is owned
// by the quiz authoring side; everything here is a read.
package quiz

import (
	"context"
	"fmt"

	"quiz-session-service/internal/domain"
)

// Loader fetches quiz content from a backing store (Postgres, static map).
type Loader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// Repository loads quiz content through a cache layer.
type Repository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// Resolver looks up a question by quiz id and zero-based index. It performs
// no writes, so controllers may re-invoke it freely on duplicate
// notifications.
type Resolver struct {
	quizzes Repository
}

func NewResolver(quizzes Repository) *Resolver {
	return &Resolver{quizzes: quizzes}
}

// Resolve returns the question at index within the quiz, or
// domain.ErrQuestionNotFound when the index is out of range.
func (r *Resolver) Resolve(ctx context.Context, quizID string, index int) (domain.Question, error) {
	quiz, err := r.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Question{}, err
	}
	if index < 0 || index >= len(quiz.Questions) {
		return domain.Question{}, fmt.Errorf("quiz %s index %d: %w", quizID, index, domain.ErrQuestionNotFound)
	}
	return quiz.Questions[index], nil
}

// QuestionCount reports how many questions the quiz has. Hosts use it to stop
// advancing past the last question.
func (r *Resolver) QuestionCount(ctx context.Context, quizID string) (int, error) {
	quiz, err := r.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return 0, err
	}
	return len(quiz.Questions), nil
}
