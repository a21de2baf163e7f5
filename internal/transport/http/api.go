package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"

	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/session"
)

// APIHandler exposes the host and join operations over plain HTTP. Live
// participant traffic goes over the websocket; these endpoints only mutate
// session rows and register participants.
type APIHandler struct {
	service *session.Service
}

func NewAPIHandler(service *session.Service) *APIHandler {
	return &APIHandler{service: service}
}

// Register mounts all routes on the mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", h.createSession)
	mux.HandleFunc("GET /api/sessions/pin/{pin}", h.findByPIN)
	mux.HandleFunc("POST /api/sessions/{id}/start", h.startSession)
	mux.HandleFunc("POST /api/sessions/{id}/advance", h.advanceSession)
	mux.HandleFunc("POST /api/sessions/{id}/end", h.endSession)
	mux.HandleFunc("POST /api/sessions/{id}/join", h.join)
	mux.HandleFunc("POST /api/join", h.joinByPIN)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

type createSessionRequest struct {
	QuizID string `json:"quizId"`
	HostID string `json:"hostId"`
	Mode   string `json:"mode"`
}

func (h *APIHandler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	sess, err := h.service.Create(r.Context(), req.QuizID, req.HostID, domain.Mode(req.Mode))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *APIHandler) findByPIN(w http.ResponseWriter, r *http.Request) {
	sess, err := h.service.FindByPIN(r.Context(), r.PathValue("pin"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *APIHandler) startSession(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Start)
}

func (h *APIHandler) advanceSession(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Advance)
}

func (h *APIHandler) endSession(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.End)
}

func (h *APIHandler) mutate(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, sessionID string) (domain.Session, error)) {
	sess, err := op(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type joinRequest struct {
	PIN         string `json:"pin"`
	DisplayName string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
}

func (h *APIHandler) join(w http.ResponseWriter, r *http.Request) {
	h.handleJoin(w, r, r.PathValue("id"))
}

// joinByPIN is the participant-facing entry point: the PIN from the host's
// screen plus a profile.
func (h *APIHandler) joinByPIN(w http.ResponseWriter, r *http.Request) {
	h.handleJoin(w, r, "")
}

func (h *APIHandler) handleJoin(w http.ResponseWriter, r *http.Request, sessionID string) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if sessionID == "" {
		sess, err := h.service.FindByPIN(r.Context(), req.PIN)
		if err != nil {
			writeError(w, err)
			return
		}
		sessionID = sess.ID
	}
	p, err := h.service.Join(r.Context(), session.JoinRequest{
		SessionID:   sessionID,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Phone:       req.Phone,
		DedupKey:    clientAddr(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// clientAddr keys participant dedup on the caller's address, host part only
// so the ephemeral port does not defeat the check.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrQuizNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrAlreadyJoined), errors.Is(err, domain.ErrStatusRegression):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrSessionClosed):
		http.Error(w, err.Error(), http.StatusGone)
	default:
		log.Printf("request failed: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
