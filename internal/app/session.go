package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MevanWeerasinghe/quiz-app/internal/domain"
)

// SessionState is the phase of one respondent's attempt.
type SessionState int

const (
	StateNotStarted SessionState = iota
	// StateBlocked is terminal: the prior-submission probe found an existing
	// submission, so no answering ever begins.
	StateBlocked
	StateInProgress
	StateSubmitting
	StateCompleted
)

func (s SessionState) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateBlocked:
		return "blocked"
	case StateInProgress:
		return "in-progress"
	case StateSubmitting:
		return "submitting"
	case StateCompleted:
		return "completed"
	}
	return "unknown"
}

// SubmitTrigger names the path that ended an attempt.
type SubmitTrigger string

const (
	TriggerManual     SubmitTrigger = "manual"
	TriggerTimeout    SubmitTrigger = "timeout"
	TriggerDisconnect SubmitTrigger = "disconnect"
)

var (
	// ErrAttemptNotStartable is returned for Start on a session that already
	// left NotStarted.
	ErrAttemptNotStartable = errors.New("attempt already started")
	// ErrAttemptNotActive is returned for answering operations outside
	// InProgress.
	ErrAttemptNotActive = errors.New("attempt is not in progress")
	// ErrOptionOutOfRange rejects a selection beyond the question's options.
	ErrOptionOutOfRange = errors.New("selected option out of range")
)

// Submitter hands a finished answer set to the server-side submission path.
type Submitter interface {
	Submit(ctx context.Context, in SubmitInput) (domain.Submission, error)
}

// SubmissionProber checks whether a (quiz, user) pair already submitted.
type SubmissionProber interface {
	Exists(ctx context.Context, quizID, userID string) (bool, error)
}

// AttemptResult is the terminal outcome shown to the respondent.
type AttemptResult struct {
	Score      int    `json:"score"`
	Total      int    `json:"total"`
	ShowResult bool   `json:"showResult"`
	Message    string `json:"message,omitempty"`
}

// AttemptEventType tags timer-driven notifications emitted by a session.
type AttemptEventType string

const (
	EventTick      AttemptEventType = "tick"
	EventAdvanced  AttemptEventType = "advanced"
	EventCompleted AttemptEventType = "completed"
)

// AttemptEvent notifies the transport of a change the respondent did not
// initiate (countdown ticks, auto-advance, timeout completion).
type AttemptEvent struct {
	Type     AttemptEventType
	Index    int
	TimeLeft int
	Result   *AttemptResult
}

// AttemptSnapshot is the externally visible view of a session.
type AttemptSnapshot struct {
	State    SessionState
	Index    int
	Total    int
	TimeLeft int // seconds until the active deadline; 0 when none is armed
	Selected *int
	Result   *AttemptResult
}

// AttemptSession drives one respondent through one quiz attempt exactly once.
//
// States: NotStarted -> (Blocked | InProgress) -> Submitting -> Completed.
// The submitted flag is the single submission guard: it is set the instant
// any submission path is entered (manual, timer expiry, disconnect) and never
// cleared, so later triggers are no-ops regardless of interleaving.
type AttemptSession struct {
	quiz      domain.Quiz
	userID    string
	userEmail string
	submitter Submitter
	prober    SubmissionProber
	now       func() time.Time

	mu        sync.Mutex
	state     SessionState
	index     int
	answers   []*int
	deadline  time.Time // zero when no countdown is armed
	submitted bool
	result    *AttemptResult

	events chan AttemptEvent
}

// NewAttemptSession builds a session in NotStarted.
func NewAttemptSession(quiz domain.Quiz, userID, userEmail string, submitter Submitter, prober SubmissionProber) *AttemptSession {
	return NewAttemptSessionWithClock(quiz, userID, userEmail, submitter, prober, time.Now)
}

// NewAttemptSessionWithClock allows deterministic timestamps in tests.
func NewAttemptSessionWithClock(quiz domain.Quiz, userID, userEmail string, submitter Submitter, prober SubmissionProber, now func() time.Time) *AttemptSession {
	return &AttemptSession{
		quiz:      quiz,
		userID:    userID,
		userEmail: userEmail,
		submitter: submitter,
		prober:    prober,
		now:       now,
		state:     StateNotStarted,
		answers:   make([]*int, len(quiz.Questions)),
		events:    make(chan AttemptEvent, 16),
	}
}

// Quiz returns the quiz this attempt runs against.
func (s *AttemptSession) Quiz() domain.Quiz { return s.quiz }

// UserID returns the respondent's identity reference.
func (s *AttemptSession) UserID() string { return s.userID }

// Events receives timer-driven notifications. Sends never block: stale events
// are dropped when the receiver lags.
func (s *AttemptSession) Events() <-chan AttemptEvent { return s.events }

// Start probes for a prior submission and transitions to InProgress, or to
// the terminal Blocked state when the respondent already submitted.
func (s *AttemptSession) Start(ctx context.Context) (AttemptSnapshot, error) {
	s.mu.Lock()
	if s.state != StateNotStarted {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, ErrAttemptNotStartable
	}
	s.mu.Unlock()

	exists, err := s.prober.Exists(ctx, s.quiz.ID, s.userID)
	if err != nil {
		return AttemptSnapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateNotStarted {
		return s.snapshotLocked(), ErrAttemptNotStartable
	}
	if exists {
		s.state = StateBlocked
		return s.snapshotLocked(), nil
	}
	s.state = StateInProgress
	s.armDeadlineLocked(s.now())
	return s.snapshotLocked(), nil
}

// Select records the respondent's choice for the current question.
func (s *AttemptSession) Select(optionIndex int) (AttemptSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return s.snapshotLocked(), ErrAttemptNotActive
	}
	q := s.quiz.Questions[s.index]
	if optionIndex < 0 || optionIndex >= len(q.Options) {
		return s.snapshotLocked(), ErrOptionOutOfRange
	}
	sel := optionIndex
	s.answers[s.index] = &sel
	return s.snapshotLocked(), nil
}

// Next moves forward one question. On the last question it is a no-op; the
// respondent ends the attempt with Submit instead.
func (s *AttemptSession) Next() (AttemptSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return s.snapshotLocked(), ErrAttemptNotActive
	}
	if s.index < len(s.quiz.Questions)-1 {
		s.index++
		s.armDeadlineLocked(s.now())
	}
	return s.snapshotLocked(), nil
}

// Prev moves back one question when the quiz allows it; otherwise a no-op.
// Revisiting a question re-arms its full per-question countdown rather than
// resuming the remainder.
func (s *AttemptSession) Prev() (AttemptSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return s.snapshotLocked(), ErrAttemptNotActive
	}
	if s.quiz.AllowBack && s.index > 0 {
		s.index--
		s.armDeadlineLocked(s.now())
	}
	return s.snapshotLocked(), nil
}

// Submit is the manual submission path. It always leaves the session in
// Completed: a server rejection (duplicate race, transport failure) is
// surfaced as the result message instead of a score.
func (s *AttemptSession) Submit(ctx context.Context) (AttemptResult, error) {
	s.mu.Lock()
	if s.result != nil {
		res := *s.result
		s.mu.Unlock()
		return res, nil
	}
	if s.state != StateInProgress || s.submitted {
		s.mu.Unlock()
		return AttemptResult{}, ErrAttemptNotActive
	}
	s.submitted = true
	s.state = StateSubmitting
	in := s.submitInputLocked()
	s.mu.Unlock()

	sub, err := s.submitter.Submit(ctx, in)
	res := AttemptResult{Total: len(s.quiz.Questions), ShowResult: s.quiz.ShowResult}
	if err != nil {
		res.Message = err.Error()
	} else {
		res.Score = sub.Score
	}

	s.mu.Lock()
	s.state = StateCompleted
	s.result = &res
	s.mu.Unlock()
	s.emit(AttemptEvent{Type: EventCompleted, Result: &res})
	return res, nil
}

// Abandon is the navigation-away / connection-loss path: a best-effort,
// fire-and-forget submission of the current buffer. It never blocks the
// caller and no completion screen is produced for it.
func (s *AttemptSession) Abandon() {
	s.finalizeAsync(TriggerDisconnect)
}

// Tick advances the countdown. It reports true once the session is terminal
// so runners know to stop. Expiry on the whole-quiz deadline, or on the final
// question in per-question mode, triggers a timeout submission; expiry on an
// earlier question auto-advances and re-arms the countdown.
func (s *AttemptSession) Tick(now time.Time) bool {
	s.mu.Lock()
	if s.state != StateInProgress {
		done := s.state == StateBlocked || s.state == StateCompleted
		s.mu.Unlock()
		return done
	}
	if s.deadline.IsZero() {
		s.mu.Unlock()
		return false
	}
	if now.Before(s.deadline) {
		ev := AttemptEvent{Type: EventTick, Index: s.index, TimeLeft: s.timeLeftLocked(now)}
		s.mu.Unlock()
		s.emit(ev)
		return false
	}

	if s.quiz.TimingMode == domain.TimingPerQuestion && s.index < len(s.quiz.Questions)-1 {
		s.index++
		s.armDeadlineLocked(now)
		ev := AttemptEvent{Type: EventAdvanced, Index: s.index, TimeLeft: s.timeLeftLocked(now)}
		s.mu.Unlock()
		s.emit(ev)
		return false
	}
	s.mu.Unlock()

	s.finalizeAsync(TriggerTimeout)
	return true
}

// Run drives the countdown with a wall-clock ticker until the session is
// terminal or ctx is canceled.
func (s *AttemptSession) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if s.Tick(now) {
				return
			}
		}
	}
}

// Snapshot returns the current externally visible view.
func (s *AttemptSession) Snapshot() AttemptSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// finalizeAsync enters the submission path for non-manual triggers. The
// network call happens off the caller's goroutine so page/connection teardown
// is never blocked waiting on it.
func (s *AttemptSession) finalizeAsync(trigger SubmitTrigger) {
	s.mu.Lock()
	if s.submitted || s.state == StateBlocked || s.state == StateNotStarted {
		s.mu.Unlock()
		return
	}
	s.submitted = true
	s.state = StateSubmitting
	in := s.submitInputLocked()
	s.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		sub, err := s.submitter.Submit(ctx, in)

		res := AttemptResult{Total: len(s.quiz.Questions), ShowResult: s.quiz.ShowResult}
		if err != nil {
			// Best-effort delivery: the server may have rejected a duplicate
			// or the call may have failed. Either way the session terminates.
			res.Message = err.Error()
		} else {
			res.Score = sub.Score
		}

		s.mu.Lock()
		s.state = StateCompleted
		s.result = &res
		s.mu.Unlock()
		if trigger == TriggerTimeout {
			s.emit(AttemptEvent{Type: EventCompleted, Result: &res})
		}
	}()
}

func (s *AttemptSession) submitInputLocked() SubmitInput {
	answers := make([]domain.Answer, len(s.quiz.Questions))
	for i, q := range s.quiz.Questions {
		answers[i] = domain.Answer{QuestionID: q.ID, SelectedIndex: s.answers[i]}
	}
	return SubmitInput{
		QuizID:    s.quiz.ID,
		UserID:    s.userID,
		UserEmail: s.userEmail,
		Answers:   answers,
	}
}

func (s *AttemptSession) armDeadlineLocked(now time.Time) {
	switch s.quiz.TimingMode {
	case domain.TimingPerQuestion:
		qt := s.quiz.Questions[s.index].QuestionTime
		if qt <= 0 {
			qt = domain.DefaultQuestionTime
		}
		s.deadline = now.Add(time.Duration(qt) * time.Second)
	default:
		// Whole-quiz deadline is armed once at start and left alone on
		// navigation.
		if s.state == StateInProgress && !s.deadline.IsZero() {
			return
		}
		if s.quiz.TimeLimitMinutes > 0 {
			s.deadline = now.Add(time.Duration(s.quiz.TimeLimitMinutes) * time.Minute)
		} else {
			s.deadline = time.Time{}
		}
	}
}

func (s *AttemptSession) timeLeftLocked(now time.Time) int {
	if s.deadline.IsZero() {
		return 0
	}
	left := s.deadline.Sub(now)
	if left <= 0 {
		return 0
	}
	return int((left + time.Second - 1) / time.Second)
}

func (s *AttemptSession) snapshotLocked() AttemptSnapshot {
	var selected *int
	if s.index >= 0 && s.index < len(s.answers) {
		selected = s.answers[s.index]
	}
	return AttemptSnapshot{
		State:    s.state,
		Index:    s.index,
		Total:    len(s.quiz.Questions),
		TimeLeft: s.timeLeftLocked(s.now()),
		Selected: selected,
		Result:   s.result,
	}
}

func (s *AttemptSession) emit(ev AttemptEvent) {
	select {
	case s.events <- ev:
	default:
		// Drop the oldest pending event so a slow receiver never blocks the
		// countdown.
		select {
		case <-s.events:
		default:
		}
		select {
		case s.events <- ev:
		default:
		}
	}
}
