package session

import (
	"context"
	"errors"
	"fmt"

	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/quiz"
)

// ViewState is the participant-facing phase of a session projection.
type ViewState string

const (
	// StateAwaitingStart: session exists but no question is live yet.
	StateAwaitingStart ViewState = "awaiting_start"
	// StateLoading: a question change is being resolved.
	StateLoading ViewState = "loading"
	// StateAwaitingResponse: question loaded, no answer recorded.
	StateAwaitingResponse ViewState = "awaiting_response"
	// StateResponseRecorded: an answer exists for the current question.
	StateResponseRecorded ViewState = "response_recorded"
	// StateEnded: session completed. Terminal.
	StateEnded ViewState = "ended"
)

// View is one snapshot of the projection, ready to render.
type View struct {
	State          ViewState        `json:"state"`
	Mode           domain.Mode      `json:"mode"`
	QuestionIndex  int              `json:"questionIndex"`
	Question       *domain.Question `json:"question,omitempty"`
	SelectedOption string           `json:"selectedOption,omitempty"`
	// Notice carries a dismissible failure message. It appears on exactly one
	// snapshot and is cleared afterwards.
	Notice string `json:"notice,omitempty"`
}

// ControllerConfig wires a controller to its collaborators. ParticipantID is
// passed in explicitly; the controller never reaches for ambient identity.
type ControllerConfig struct {
	Store         Store
	Notifier      Notifier
	Resolver      *quiz.Resolver
	SessionID     string
	ParticipantID string
}

// Controller maintains a live projection of one session for one participant:
// which question is current, whether this participant has answered, and
// whether the session has started or ended. It is driven by change
// notifications and keeps all state on a single event loop, so notification
// handling, fetch completions, and submissions never interleave.
//
// The latest snapshot is delivered on Views; when the consumer lags, stale
// snapshots are dropped in favor of the newest one.
type Controller struct {
	store         Store
	gate          *Gate
	resolver      *quiz.Resolver
	participantID string

	ctx         context.Context
	cancel      context.CancelFunc
	cancelWatch func()

	updates <-chan domain.Session
	fetches chan fetchResult
	writes  chan writeResult
	submits chan submitRequest
	views   chan View

	// loop-owned state
	session     domain.Session
	state       ViewState
	question    *domain.Question
	selected    string
	notice      string
	loadedIndex int
	gen         uint64
}

type fetchResult struct {
	gen      uint64
	question domain.Question
	answer   *domain.Answer
	err      error
}

type writeResult struct {
	gen    uint64
	answer domain.Answer
	err    error
	reply  chan<- error
}

type submitRequest struct {
	optionID string
	reply    chan error
}

// NewController reads the session once to derive the initial state,
// subscribes to its change feed, and starts the event loop. The caller must
// Close the controller when the participant leaves.
func NewController(ctx context.Context, cfg ControllerConfig) (*Controller, error) {
	sess, err := cfg.Store.GetSession(ctx, cfg.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	cctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		store:         cfg.Store,
		gate:          NewGate(cfg.Store),
		resolver:      cfg.Resolver,
		participantID: cfg.ParticipantID,
		ctx:           cctx,
		cancel:        cancel,
		fetches:       make(chan fetchResult, 4),
		writes:        make(chan writeResult, 4),
		submits:       make(chan submitRequest),
		views:         make(chan View, 8),
		session:       sess,
		loadedIndex:   domain.NoQuestion,
	}

	updates, cancelWatch, err := cfg.Notifier.Watch(cctx, cfg.SessionID)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch session: %w", err)
	}
	c.updates = updates
	c.cancelWatch = cancelWatch

	c.deriveInitial()
	go c.run()
	return c, nil
}

// Views streams snapshots, starting with the initial one. The channel closes
// after Close.
func (c *Controller) Views() <-chan View {
	return c.views
}

// Close tears down the subscription and stops the loop. In-flight fetch
// results arriving afterwards are discarded; no snapshot is emitted after
// Close returns and the Views channel has closed.
func (c *Controller) Close() {
	c.cancel()
}

// Submit records the participant's choice for the current question. The view
// flips to response_recorded immediately; if the underlying write fails, the
// view reverts to awaiting_response with a notice and the error is returned
// so the caller can surface it. A duplicate is benign: the recorded state
// stands and Submit returns nil.
func (c *Controller) Submit(ctx context.Context, optionID string) error {
	req := submitRequest{optionID: optionID, reply: make(chan error, 1)}
	select {
	case c.submits <- req:
	case <-c.ctx.Done():
		return domain.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// deriveInitial maps the first read of the session row onto a state, before
// the loop starts. Runs on the constructing goroutine only.
func (c *Controller) deriveInitial() {
	switch {
	case c.session.Status == domain.StatusCompleted:
		c.state = StateEnded
	case c.session.HasQuestion():
		c.state = StateLoading
		c.loadedIndex = c.session.CurrentQuestionIndex
		c.startFetch()
	default:
		// waiting, or active with no question pointer yet
		c.state = StateAwaitingStart
	}
	c.emit()
}

func (c *Controller) run() {
	defer close(c.views)
	defer c.cancelWatch()

	for {
		select {
		case <-c.ctx.Done():
			return
		case next, ok := <-c.updates:
			if !ok {
				c.updates = nil
				continue
			}
			c.applySession(next)
		case res := <-c.fetches:
			c.applyFetch(res)
		case res := <-c.writes:
			c.applyWrite(res)
		case req := <-c.submits:
			c.applySubmit(req)
		}
	}
}

// applySession reconciles a notified session row against the local
// projection. Status and question index are monotonic at the source, so any
// regression is a stale delivery racing a direct read and is dropped;
// re-delivering the current values is a no-op.
func (c *Controller) applySession(next domain.Session) {
	if c.state == StateEnded {
		return
	}
	if next.Status.Before(c.session.Status) {
		return
	}
	if next.Status == c.session.Status && next.CurrentQuestionIndex < c.session.CurrentQuestionIndex {
		return
	}
	c.session = next

	if next.Status == domain.StatusCompleted {
		c.gen++
		c.state = StateEnded
		c.question = nil
		c.emit()
		return
	}

	if !next.HasQuestion() {
		if c.state != StateAwaitingStart {
			c.state = StateAwaitingStart
			c.emit()
		}
		return
	}

	if next.CurrentQuestionIndex == c.loadedIndex {
		return
	}

	c.gen++
	c.loadedIndex = next.CurrentQuestionIndex
	c.state = StateLoading
	c.question = nil
	c.selected = ""
	c.emit()
	c.startFetch()
}

// startFetch resolves the current question and checks for a prior answer off
// the loop. The generation tag lets the loop discard results that a newer
// question change or session end has overtaken.
func (c *Controller) startFetch() {
	sess := c.session
	gen := c.gen
	go func() {
		q, err := c.resolver.Resolve(c.ctx, sess.QuizID, sess.CurrentQuestionIndex)
		var answer *domain.Answer
		if err == nil {
			a, aerr := c.gate.Recorded(c.ctx, sess.ID, c.participantID, sess.CurrentQuestionIndex)
			switch {
			case aerr == nil:
				answer = &a
			case !errors.Is(aerr, domain.ErrAnswerNotFound):
				err = aerr
			}
		}
		select {
		case c.fetches <- fetchResult{gen: gen, question: q, answer: answer, err: err}:
		case <-c.ctx.Done():
		}
	}()
}

func (c *Controller) applyFetch(res fetchResult) {
	if res.gen != c.gen || c.state == StateEnded {
		return
	}
	if res.err != nil {
		if errors.Is(res.err, domain.ErrQuestionNotFound) || errors.Is(res.err, domain.ErrQuizNotFound) {
			// The content is gone for good; treat the session as over.
			c.state = StateEnded
			c.notice = "this quiz is no longer available"
			c.emit()
			return
		}
		c.notice = "could not load the question, waiting for the next update"
		c.emit()
		return
	}

	q := res.question
	c.question = &q
	if res.answer != nil {
		c.state = StateResponseRecorded
		c.selected = res.answer.OptionID
	} else {
		c.state = StateAwaitingResponse
		c.selected = ""
	}
	c.emit()
}

func (c *Controller) applySubmit(req submitRequest) {
	switch c.state {
	case StateEnded:
		req.reply <- domain.ErrSessionClosed
		return
	case StateResponseRecorded:
		// Already answered; short-circuit without touching the store.
		req.reply <- nil
		return
	case StateAwaitingResponse:
	default:
		req.reply <- fmt.Errorf("%w: no question is awaiting a response", domain.ErrInvalidInput)
		return
	}

	sub := Submission{
		SessionID:     c.session.ID,
		ParticipantID: c.participantID,
		QuestionID:    c.question.ID,
		QuestionIndex: c.session.CurrentQuestionIndex,
		OptionID:      req.optionID,
	}

	// Optimistic flip; the write happens underneath.
	c.state = StateResponseRecorded
	c.selected = req.optionID
	c.emit()

	gen := c.gen
	go func() {
		ans, err := c.gate.Submit(c.ctx, sub)
		select {
		case c.writes <- writeResult{gen: gen, answer: ans, err: err, reply: req.reply}:
		case <-c.ctx.Done():
			req.reply <- domain.ErrSessionClosed
		}
	}()
}

// applyWrite settles an optimistic submission. Failure is the only backward
// transition in the machine: the view returns to awaiting_response so the
// participant can try again.
func (c *Controller) applyWrite(res writeResult) {
	if res.err == nil {
		res.reply <- nil
		return
	}
	if errors.Is(res.err, domain.ErrDuplicateAnswer) {
		// Another writer got there first. The row the gate returned is the
		// one that stands; reconcile the optimistic selection to it.
		if res.gen == c.gen && c.state == StateResponseRecorded && c.selected != res.answer.OptionID {
			c.selected = res.answer.OptionID
			c.emit()
		}
		res.reply <- nil
		return
	}

	if res.gen == c.gen && c.state == StateResponseRecorded {
		c.state = StateAwaitingResponse
		c.selected = ""
		c.notice = "could not submit your response, please try again"
		c.emit()
	}
	res.reply <- res.err
}

func (c *Controller) snapshot() View {
	v := View{
		State:          c.state,
		Mode:           c.session.Mode,
		QuestionIndex:  c.session.CurrentQuestionIndex,
		Question:       c.question,
		SelectedOption: c.selected,
		Notice:         c.notice,
	}
	if c.state == StateEnded || c.state == StateAwaitingStart {
		v.Question = nil
		v.QuestionIndex = domain.NoQuestion
	}
	return v
}

// emit pushes the current snapshot, dropping the oldest buffered one when the
// consumer lags so the freshest state always gets through.
func (c *Controller) emit() {
	v := c.snapshot()
	c.notice = ""
	select {
	case c.views <- v:
	default:
		select {
		case <-c.views:
		default:
		}
		c.views <- v
	}
}
