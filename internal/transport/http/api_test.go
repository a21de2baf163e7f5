package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/infra/memory"
	"quiz-session-service/internal/session"
)

func newTestServer(t *testing.T) (*httptest.Server, *session.Service) {
	t.Helper()
	store := memory.NewStore()
	quizzes := memory.NewQuizRepository(memory.NewStaticQuizLoader(sampleQuizzes()), time.Minute)
	service := session.NewService(store, quizzes)

	mux := http.NewServeMux()
	NewAPIHandler(service).Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, service
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	server, _ := newTestServer(t)

	sess := postJSON[domain.Session](t, server, "/api/sessions", `{"quizId":"quiz-1","hostId":"host-1","mode":"live"}`, http.StatusCreated)
	if sess.Status != domain.StatusWaiting || len(sess.PIN) != 6 {
		t.Fatalf("unexpected session: %+v", sess)
	}

	found := getJSON[domain.Session](t, server, "/api/sessions/pin/"+sess.PIN, http.StatusOK)
	if found.ID != sess.ID {
		t.Fatalf("pin lookup returned %s, want %s", found.ID, sess.ID)
	}

	p := postJSON[domain.Participant](t, server, "/api/sessions/"+sess.ID+"/join", `{"name":"Alice"}`, http.StatusCreated)
	if p.DisplayName != "Alice" || p.SessionID != sess.ID {
		t.Fatalf("unexpected participant: %+v", p)
	}

	started := postJSON[domain.Session](t, server, "/api/sessions/"+sess.ID+"/start", "", http.StatusOK)
	if started.Status != domain.StatusActive || started.CurrentQuestionIndex != 0 {
		t.Fatalf("unexpected started session: %+v", started)
	}

	advanced := postJSON[domain.Session](t, server, "/api/sessions/"+sess.ID+"/advance", "", http.StatusOK)
	if advanced.CurrentQuestionIndex != 1 {
		t.Fatalf("advance landed on index %d, want 1", advanced.CurrentQuestionIndex)
	}

	ended := postJSON[domain.Session](t, server, "/api/sessions/"+sess.ID+"/end", "", http.StatusOK)
	if ended.Status != domain.StatusCompleted {
		t.Fatalf("unexpected ended session: %+v", ended)
	}

	// Completed sessions reject late joiners.
	doRequest(t, server, http.MethodPost, "/api/sessions/"+sess.ID+"/join", `{"name":"Bob"}`, http.StatusGone)
}

func TestAPIErrorMapping(t *testing.T) {
	server, svc := newTestServer(t)

	doRequest(t, server, http.MethodPost, "/api/sessions", `{"quizId":"missing","hostId":"h","mode":"live"}`, http.StatusNotFound)
	doRequest(t, server, http.MethodPost, "/api/sessions", `{"quizId":"quiz-1","hostId":"h","mode":"bogus"}`, http.StatusBadRequest)
	doRequest(t, server, http.MethodGet, "/api/sessions/pin/000000", "", http.StatusNotFound)
	doRequest(t, server, http.MethodPost, "/api/sessions/nope/start", "", http.StatusNotFound)

	sess := postJSON[domain.Session](t, server, "/api/sessions", `{"quizId":"quiz-1","hostId":"h","mode":"anytime"}`, http.StatusCreated)
	// Anytime sessions require a contact email on join.
	doRequest(t, server, http.MethodPost, "/api/sessions/"+sess.ID+"/join", `{"name":"Alice"}`, http.StatusBadRequest)
	doRequest(t, server, http.MethodPost, "/api/sessions/"+sess.ID+"/join", `{"name":"Alice","email":"alice@example.com"}`, http.StatusCreated)
	// Same caller address joining twice conflicts.
	doRequest(t, server, http.MethodPost, "/api/sessions/"+sess.ID+"/join", `{"name":"Alice2","email":"alice2@example.com"}`, http.StatusConflict)

	// Advancing a completed session is a status regression.
	if _, err := svc.End(context.Background(), sess.ID); err != nil {
		t.Fatalf("end: %v", err)
	}
	doRequest(t, server, http.MethodPost, "/api/sessions/"+sess.ID+"/advance", "", http.StatusConflict)
}

func TestJoinByPIN(t *testing.T) {
	server, _ := newTestServer(t)

	sess := postJSON[domain.Session](t, server, "/api/sessions", `{"quizId":"quiz-1","hostId":"h","mode":"poll"}`, http.StatusCreated)
	p := postJSON[domain.Participant](t, server, "/api/join", `{"pin":"`+sess.PIN+`","name":"Bob"}`, http.StatusCreated)
	if p.SessionID != sess.ID || p.DisplayName != "Bob" {
		t.Fatalf("unexpected participant: %+v", p)
	}
	doRequest(t, server, http.MethodPost, "/api/join", `{"pin":"000000","name":"Bob"}`, http.StatusNotFound)
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t)
	doRequest(t, server, http.MethodGet, "/healthz", "", http.StatusOK)
}

func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "Capitals",
			Questions: []domain.Question{
				{ID: "q1", Text: "Capital of France?", Options: []domain.Option{
					{ID: "o1", Text: "Lyon"},
					{ID: "o2", Text: "Paris"},
				}},
				{ID: "q2", Text: "Capital of Japan?", Options: []domain.Option{
					{ID: "o3", Text: "Tokyo"},
					{ID: "o4", Text: "Osaka"},
				}},
			},
		},
	}
}

func doRequest(t *testing.T, server *httptest.Server, method, path, body string, wantStatus int) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, server.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: status %d, want %d", method, path, resp.StatusCode, wantStatus)
	}
	return resp
}

func postJSON[T any](t *testing.T, server *httptest.Server, path, body string, wantStatus int) T {
	t.Helper()
	return decodeBody[T](t, doRequest(t, server, http.MethodPost, path, body, wantStatus))
}

func getJSON[T any](t *testing.T, server *httptest.Server, path string, wantStatus int) T {
	t.Helper()
	return decodeBody[T](t, doRequest(t, server, http.MethodGet, path, "", wantStatus))
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}
