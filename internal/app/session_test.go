package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MevanWeerasinghe/quiz-app/internal/domain"
)

// fakeSubmitter counts Submit calls and records the last input. It doubles as
// the prior-submission probe.
type fakeSubmitter struct {
	mu       sync.Mutex
	calls    int
	last     SubmitInput
	score    int
	err      error
	existing bool
}

func (f *fakeSubmitter) Submit(_ context.Context, in SubmitInput) (domain.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = in
	if f.err != nil {
		return domain.Submission{}, f.err
	}
	return domain.Submission{ID: "sub-1", QuizID: in.QuizID, UserID: in.UserID, Score: f.score}, nil
}

func (f *fakeSubmitter) Exists(context.Context, string, string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing, nil
}

func (f *fakeSubmitter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSubmitter) lastInput() SubmitInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func wholeQuiz(limitMinutes int) domain.Quiz {
	return domain.Quiz{
		ID:               "quiz-1",
		Title:            "capitals",
		Creator:          "creator-1",
		TimingMode:       domain.TimingWholeQuiz,
		TimeLimitMinutes: limitMinutes,
		AllowBack:        true,
		ShowResult:       true,
		Questions: []domain.Question{
			{ID: "q1", Text: "one", Options: []string{"a", "b"}, CorrectIndex: 0},
			{ID: "q2", Text: "two", Options: []string{"a", "b", "c"}, CorrectIndex: 2},
			{ID: "q3", Text: "three", Options: []string{"a", "b"}, CorrectIndex: 1},
		},
	}
}

func perQuestionQuiz(secs int) domain.Quiz {
	q := wholeQuiz(0)
	q.TimingMode = domain.TimingPerQuestion
	q.AllowBack = false
	for i := range q.Questions {
		q.Questions[i].QuestionTime = secs
	}
	return q
}

func waitForState(t *testing.T, s *AttemptSession, want SessionState) AttemptSnapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap := s.Snapshot()
		if snap.State == want {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session never reached %v, stuck at %v", want, s.Snapshot().State)
	return AttemptSnapshot{}
}

func TestSessionManualSubmitHappyPath(t *testing.T) {
	sub := &fakeSubmitter{score: 2}
	clock := time.Now()
	s := NewAttemptSessionWithClock(wholeQuiz(10), "user-1", "user@example.com", sub, sub, func() time.Time { return clock })

	snap, err := s.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if snap.State != StateInProgress {
		t.Fatalf("expected in-progress, got %v", snap.State)
	}
	if snap.TimeLeft != 600 {
		t.Fatalf("expected 600s left, got %d", snap.TimeLeft)
	}

	if _, err := s.Select(0); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := s.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	if _, err := s.Select(2); err != nil {
		t.Fatalf("select: %v", err)
	}

	res, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Score != 2 || res.Total != 3 || !res.ShowResult {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := sub.callCount(); got != 1 {
		t.Fatalf("expected 1 submission, got %d", got)
	}

	in := sub.lastInput()
	if len(in.Answers) != 3 {
		t.Fatalf("expected an answer slot per question, got %d", len(in.Answers))
	}
	if in.Answers[2].SelectedIndex != nil {
		t.Fatalf("expected unanswered question to stay null")
	}
}

func TestSessionSubmitGuardIsIdempotent(t *testing.T) {
	sub := &fakeSubmitter{score: 0}
	s := NewAttemptSession(wholeQuiz(10), "user-1", "u@e.com", sub, sub)
	if _, err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := s.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	// A timer expiry and a disconnect landing after the manual submission
	// must both be swallowed by the guard.
	s.Tick(time.Now().Add(time.Hour))
	s.Abandon()
	if _, err := s.Submit(context.Background()); err != nil {
		t.Fatalf("repeated submit should return the cached result: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if got := sub.callCount(); got != 1 {
		t.Fatalf("expected exactly 1 submission, got %d", got)
	}
}

func TestSessionWholeQuizTimeoutSubmitsUnanswered(t *testing.T) {
	sub := &fakeSubmitter{score: 0}
	start := time.Now()
	s := NewAttemptSessionWithClock(wholeQuiz(1), "user-1", "u@e.com", sub, sub, func() time.Time { return start })
	if _, err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	if done := s.Tick(start.Add(30 * time.Second)); done {
		t.Fatalf("tick before the deadline must not finish the attempt")
	}
	if done := s.Tick(start.Add(61 * time.Second)); !done {
		t.Fatalf("tick past the deadline must finish the attempt")
	}

	snap := waitForState(t, s, StateCompleted)
	if snap.Result == nil || snap.Result.Score != 0 {
		t.Fatalf("expected score 0 result, got %+v", snap.Result)
	}
	if got := sub.callCount(); got != 1 {
		t.Fatalf("expected 1 submission, got %d", got)
	}
	for _, a := range sub.lastInput().Answers {
		if a.SelectedIndex != nil {
			t.Fatalf("expected all answers null on untouched timeout")
		}
	}
}

func TestSessionPerQuestionAutoAdvance(t *testing.T) {
	sub := &fakeSubmitter{}
	start := time.Now()
	s := NewAttemptSessionWithClock(perQuestionQuiz(5), "user-1", "u@e.com", sub, sub, func() time.Time { return start })
	if _, err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	// First expiry advances to question 2, second to question 3, third ends
	// the attempt. One submission total.
	if done := s.Tick(start.Add(6 * time.Second)); done {
		t.Fatalf("expiry on question 1 must advance, not finish")
	}
	if snap := s.Snapshot(); snap.Index != 1 {
		t.Fatalf("expected index 1, got %d", snap.Index)
	}
	if done := s.Tick(start.Add(12 * time.Second)); done {
		t.Fatalf("expiry on question 2 must advance, not finish")
	}
	if snap := s.Snapshot(); snap.Index != 2 {
		t.Fatalf("expected index 2, got %d", snap.Index)
	}
	if done := s.Tick(start.Add(18 * time.Second)); !done {
		t.Fatalf("expiry on the last question must finish the attempt")
	}

	waitForState(t, s, StateCompleted)
	if got := sub.callCount(); got != 1 {
		t.Fatalf("expected 1 submission, got %d", got)
	}
}

func TestSessionPerQuestionRevisitResetsTimer(t *testing.T) {
	sub := &fakeSubmitter{}
	quiz := perQuestionQuiz(30)
	quiz.AllowBack = true
	clock := time.Now()
	now := func() time.Time { return clock }
	s := NewAttemptSessionWithClock(quiz, "user-1", "u@e.com", sub, sub, now)
	if _, err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	clock = clock.Add(20 * time.Second)
	if _, err := s.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	clock = clock.Add(10 * time.Second)
	snap, err := s.Prev()
	if err != nil {
		t.Fatalf("prev: %v", err)
	}
	if snap.Index != 0 {
		t.Fatalf("expected index 0, got %d", snap.Index)
	}
	if snap.TimeLeft != 30 {
		t.Fatalf("revisit must re-arm the full countdown, got %d", snap.TimeLeft)
	}
}

func TestSessionPrevIgnoredWithoutAllowBack(t *testing.T) {
	sub := &fakeSubmitter{}
	s := NewAttemptSession(perQuestionQuiz(30), "user-1", "u@e.com", sub, sub)
	if _, err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := s.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	snap, err := s.Prev()
	if err != nil {
		t.Fatalf("prev: %v", err)
	}
	if snap.Index != 1 {
		t.Fatalf("prev must be a no-op when going back is disabled, got index %d", snap.Index)
	}
}

func TestSessionBlockedOnExistingSubmission(t *testing.T) {
	sub := &fakeSubmitter{existing: true}
	s := NewAttemptSession(wholeQuiz(10), "user-1", "u@e.com", sub, sub)
	snap, err := s.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if snap.State != StateBlocked {
		t.Fatalf("expected blocked, got %v", snap.State)
	}
	if _, err := s.Select(0); err != ErrAttemptNotActive {
		t.Fatalf("expected ErrAttemptNotActive, got %v", err)
	}
	if _, err := s.Submit(context.Background()); err != ErrAttemptNotActive {
		t.Fatalf("expected ErrAttemptNotActive, got %v", err)
	}
	if got := sub.callCount(); got != 0 {
		t.Fatalf("blocked session must never submit, got %d calls", got)
	}
}

func TestSessionAbandonSubmitsOnce(t *testing.T) {
	sub := &fakeSubmitter{}
	s := NewAttemptSession(wholeQuiz(10), "user-1", "u@e.com", sub, sub)
	if _, err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := s.Select(0); err != nil {
		t.Fatalf("select: %v", err)
	}

	s.Abandon()
	s.Abandon()
	waitForState(t, s, StateCompleted)
	if got := sub.callCount(); got != 1 {
		t.Fatalf("expected 1 submission, got %d", got)
	}
	if in := sub.lastInput(); in.Answers[0].SelectedIndex == nil || *in.Answers[0].SelectedIndex != 0 {
		t.Fatalf("abandon must ship the partial answer buffer")
	}
}

func TestSessionServerRejectionCompletesWithMessage(t *testing.T) {
	sub := &fakeSubmitter{err: domain.ErrAlreadySubmitted}
	s := NewAttemptSession(wholeQuiz(10), "user-1", "u@e.com", sub, sub)
	if _, err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	res, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Message == "" {
		t.Fatalf("expected a rejection message in the result")
	}
	if snap := s.Snapshot(); snap.State != StateCompleted {
		t.Fatalf("rejection must still terminate the attempt, got %v", snap.State)
	}
}

func TestSessionSelectValidatesOption(t *testing.T) {
	sub := &fakeSubmitter{}
	s := NewAttemptSession(wholeQuiz(10), "user-1", "u@e.com", sub, sub)
	if _, err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := s.Select(5); err != ErrOptionOutOfRange {
		t.Fatalf("expected ErrOptionOutOfRange, got %v", err)
	}
	if _, err := s.Select(-1); err != ErrOptionOutOfRange {
		t.Fatalf("expected ErrOptionOutOfRange, got %v", err)
	}
}

func TestSessionTimeoutRaceWithManualSubmit(t *testing.T) {
	sub := &fakeSubmitter{}
	s := NewAttemptSession(wholeQuiz(1), "user-1", "u@e.com", sub, sub)
	if _, err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.Tick(time.Now().Add(time.Hour))
	}()
	go func() {
		defer wg.Done()
		s.Submit(context.Background())
	}()
	wg.Wait()

	waitForState(t, s, StateCompleted)
	if got := sub.callCount(); got != 1 {
		t.Fatalf("racing triggers must collapse to 1 submission, got %d", got)
	}
}
