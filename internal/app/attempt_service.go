package app

import "context"

// SessionRepository tracks live attempt sessions keyed by (quiz, user).
type SessionRepository interface {
	// PutIfAbsent stores the session unless one already exists for the pair,
	// in which case the existing one is returned.
	PutIfAbsent(session *AttemptSession) *AttemptSession
	Get(quizID, userID string) (*AttemptSession, bool)
	Delete(quizID, userID string)
}

// AttemptService creates and looks up live attempt sessions. A reconnecting
// respondent gets their existing session back rather than a fresh one, so
// the submission guard survives transport drops.
type AttemptService struct {
	sessions    SessionRepository
	quizzes     QuizRepository
	submissions *SubmissionService
}

func NewAttemptService(sessions SessionRepository, quizzes QuizRepository, submissions *SubmissionService) *AttemptService {
	return &AttemptService{sessions: sessions, quizzes: quizzes, submissions: submissions}
}

// Session returns the live session for a (quiz, user) pair, creating one in
// NotStarted when none exists yet.
func (s *AttemptService) Session(ctx context.Context, quizID, userID, userEmail string) (*AttemptSession, error) {
	if session, ok := s.sessions.Get(quizID, userID); ok {
		return session, nil
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	session := NewAttemptSession(quiz, userID, userEmail, s.submissions, s.submissions)
	return s.sessions.PutIfAbsent(session), nil
}

// Release drops a terminal session from the live set. Sessions that are
// still in progress are kept so a reconnect resumes the same attempt.
func (s *AttemptService) Release(quizID, userID string) {
	session, ok := s.sessions.Get(quizID, userID)
	if !ok {
		return
	}
	switch session.Snapshot().State {
	case StateCompleted, StateBlocked:
		s.sessions.Delete(quizID, userID)
	}
}
