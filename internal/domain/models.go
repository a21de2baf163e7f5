package domain

import "time"

// Mode selects the game-mode variant of a session. All modes share the same
// state machine; the mode only controls join requirements and lifecycle
// defaults (anytime sessions are active from creation).
type Mode string

const (
	ModeLive    Mode = "live"
	ModePoll    Mode = "poll"
	ModeAnytime Mode = "anytime"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	return m == ModeLive || m == ModePoll || m == ModeAnytime
}

// Status is the lifecycle phase of a session. It only moves forward:
// waiting -> active -> completed.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

func (s Status) rank() int {
	switch s {
	case StatusWaiting:
		return 0
	case StatusActive:
		return 1
	case StatusCompleted:
		return 2
	}
	return -1
}

// Before reports whether s precedes other in the lifecycle.
func (s Status) Before(other Status) bool {
	return s.rank() < other.rank()
}

// NoQuestion is the CurrentQuestionIndex value for a session that has not
// shown a question yet.
const NoQuestion = -1

// Session is one hosted game instance. The shareable PIN locates it at join
// time; everything else references it by ID.
type Session struct {
	ID                   string    `json:"id"`
	PIN                  string    `json:"pin"`
	QuizID               string    `json:"quizId"`
	HostID               string    `json:"hostId"`
	Mode                 Mode      `json:"mode"`
	Status               Status    `json:"status"`
	CurrentQuestionIndex int       `json:"currentQuestionIndex"` // NoQuestion while nothing is live
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// HasQuestion reports whether the session currently points at a question.
func (s Session) HasQuestion() bool {
	return s.Status == StatusActive && s.CurrentQuestionIndex >= 0
}

// Participant is one joined user within a session. DedupKey carries the
// originating network address for modes that soft-block repeat joins; it is a
// best-effort guard, not a uniqueness guarantee.
type Participant struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	DedupKey    string    `json:"-"`
	Score       int       `json:"score"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// Answer is one recorded choice by a participant for one question. The
// question index is denormalized so the submission gate can look answers up
// without resolving the question first. At most one row exists per
// (session, participant, index) as long as writes go through the gate; the
// store does not enforce it.
type Answer struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"sessionId"`
	ParticipantID string    `json:"participantId"`
	QuestionID    string    `json:"questionId"`
	QuestionIndex int       `json:"questionIndex"`
	OptionID      string    `json:"optionId"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Option is a possible answer for a question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question is read-only content owned by the quiz authoring side.
type Question struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []Option `json:"options"`
}

// Quiz is an ordered collection of questions.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}
