package redis

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"quiz-session-service/internal/domain"
)

type countingLoader struct {
	calls int64
	quiz  domain.Quiz
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	atomic.AddInt64(&l.calls, 1)
	if quizID != l.quiz.ID {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return l.quiz, nil
}

func TestQuizRepositoryCachesDocument(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{quiz: domain.Quiz{
		ID:    "quiz-1",
		Title: "Capitals",
		Questions: []domain.Question{
			{ID: "q1", Text: "Capital of France?", Options: []domain.Option{
				{ID: "o1", Text: "Paris"},
				{ID: "o2", Text: "Lyon"},
			}},
		},
	}}
	repo := NewQuizRepository(newClient(mr), loader, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		q, err := repo.GetQuiz(ctx, "quiz-1")
		if err != nil {
			t.Fatalf("get quiz: %v", err)
		}
		if q.ID != "quiz-1" || len(q.Questions) != 1 || len(q.Questions[0].Options) != 2 {
			t.Fatalf("quiz came back mangled: %+v", q)
		}
	}
	if got := atomic.LoadInt64(&loader.calls); got != 1 {
		t.Fatalf("loader called %d times, want 1", got)
	}
}

func TestQuizRepositoryExpiryRefetches(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{quiz: domain.Quiz{ID: "quiz-1", Title: "Capitals"}}
	repo := NewQuizRepository(newClient(mr), loader, time.Minute)
	ctx := context.Background()

	if _, err := repo.GetQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := repo.GetQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("get quiz after expiry: %v", err)
	}
	if got := atomic.LoadInt64(&loader.calls); got != 2 {
		t.Fatalf("loader called %d times, want 2", got)
	}
}

func TestQuizRepositoryUnknownQuiz(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{quiz: domain.Quiz{ID: "quiz-1"}}
	repo := NewQuizRepository(newClient(mr), loader, time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "missing"); err != domain.ErrQuizNotFound {
		t.Fatalf("err = %v, want ErrQuizNotFound", err)
	}
}
