package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no session matches the given id or PIN.
	ErrSessionNotFound = errors.New("session not found")
	// ErrParticipantNotFound is returned when a participant id is unknown to the session.
	ErrParticipantNotFound = errors.New("participant not found in session")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates the question index is out of range for the quiz.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrAnswerNotFound is returned by stores when no answer row matches the lookup.
	ErrAnswerNotFound = errors.New("answer not found")
	// ErrDuplicateAnswer means an answer already exists for this participant and
	// question. Callers treat it as a benign no-op, not a user-facing failure.
	ErrDuplicateAnswer = errors.New("answer already submitted")
	// ErrPINTaken means another session already holds the PIN. Session
	// creation redraws and retries on it.
	ErrPINTaken = errors.New("pin already in use")
	// ErrAlreadyJoined means the dedup key has already joined this session.
	ErrAlreadyJoined = errors.New("already joined from this network")
	// ErrInvalidInput is returned for locally detected bad input before any
	// store call is made.
	ErrInvalidInput = errors.New("invalid input")
	// ErrSessionClosed is returned when an operation targets a completed
	// session or a controller that has been shut down.
	ErrSessionClosed = errors.New("session closed")
	// ErrStatusRegression is returned when a write would move a session
	// backwards in its lifecycle or rewind the question pointer.
	ErrStatusRegression = errors.New("session state cannot move backwards")
)
