package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-session-service/internal/domain"
)

func TestStoreSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	sess := domain.Session{ID: "s1", PIN: "123456", QuizID: "quiz-1", Status: domain.StatusWaiting, CurrentQuestionIndex: domain.NoQuestion}
	if err := store.PutSession(ctx, sess); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PIN != "123456" {
		t.Fatalf("expected pin 123456, got %s", got.PIN)
	}

	byPIN, err := store.GetSessionByPIN(ctx, "123456")
	if err != nil {
		t.Fatalf("get by pin: %v", err)
	}
	if byPIN.ID != "s1" {
		t.Fatalf("expected s1, got %s", byPIN.ID)
	}

	if _, err := store.GetSession(ctx, "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestStorePutSessionRejectsTakenPIN(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	first := domain.Session{ID: "s1", PIN: "123456", Status: domain.StatusWaiting, CurrentQuestionIndex: domain.NoQuestion}
	if err := store.PutSession(ctx, first); err != nil {
		t.Fatalf("put: %v", err)
	}

	// A second session with the same PIN must not shadow the first.
	clash := domain.Session{ID: "s2", PIN: "123456", Status: domain.StatusWaiting, CurrentQuestionIndex: domain.NoQuestion}
	if err := store.PutSession(ctx, clash); err == nil {
		t.Fatalf("expected an error for a taken pin")
	}

	got, err := store.GetSessionByPIN(ctx, "123456")
	if err != nil {
		t.Fatalf("get by pin: %v", err)
	}
	if got.ID != "s1" {
		t.Fatalf("pin remapped to %s, want s1", got.ID)
	}
}

func TestStoreWatchDeliversUpdates(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	sess := domain.Session{ID: "s1", PIN: "111111", Status: domain.StatusWaiting, CurrentQuestionIndex: domain.NoQuestion}
	if err := store.PutSession(ctx, sess); err != nil {
		t.Fatalf("put: %v", err)
	}

	ch, cancel, err := store.Watch(ctx, "s1")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer cancel()

	sess.Status = domain.StatusActive
	sess.CurrentQuestionIndex = 0
	if err := store.UpdateSession(ctx, sess); err != nil {
		t.Fatalf("update: %v", err)
	}

	select {
	case got := <-ch:
		if got.Status != domain.StatusActive || got.CurrentQuestionIndex != 0 {
			t.Fatalf("unexpected update: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for update")
	}
}

func TestStoreWatchCancelCloses(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	if err := store.PutSession(ctx, domain.Session{ID: "s1", PIN: "222222"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	ch, cancel, err := store.Watch(ctx, "s1")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	cancel()
	cancel() // idempotent

	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel after cancel")
	}

	// Updates after cancel must not panic or deliver.
	if err := store.UpdateSession(ctx, domain.Session{ID: "s1", PIN: "222222", Status: domain.StatusActive}); err != nil {
		t.Fatalf("update after cancel: %v", err)
	}
}

func TestStoreAnswerLookup(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	if _, err := store.FindAnswer(ctx, "s1", "p1", 0); !errors.Is(err, domain.ErrAnswerNotFound) {
		t.Fatalf("expected ErrAnswerNotFound, got %v", err)
	}

	a := domain.Answer{ID: "a1", SessionID: "s1", ParticipantID: "p1", QuestionID: "q1", QuestionIndex: 0, OptionID: "o2"}
	if err := store.InsertAnswer(ctx, a); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := store.FindAnswer(ctx, "s1", "p1", 0)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.OptionID != "o2" {
		t.Fatalf("expected o2, got %s", got.OptionID)
	}
}

func TestStoreParticipantDedup(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	p := domain.Participant{ID: "p1", SessionID: "s1", DisplayName: "Alice", DedupKey: "10.0.0.1"}
	if err := store.InsertParticipant(ctx, p); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := store.FindParticipantByDedupKey(ctx, "s1", "10.0.0.1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID != "p1" {
		t.Fatalf("expected p1, got %s", got.ID)
	}

	if _, err := store.FindParticipantByDedupKey(ctx, "s1", "10.0.0.2"); !errors.Is(err, domain.ErrParticipantNotFound) {
		t.Fatalf("expected ErrParticipantNotFound, got %v", err)
	}
}
