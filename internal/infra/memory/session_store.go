package memory

import (
	"sync"

	"github.com/MevanWeerasinghe/quiz-app/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository,
// keyed by (quiz, user).
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.AttemptSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.AttemptSession),
	}
}

func (s *SessionStore) PutIfAbsent(session *app.AttemptSession) *app.AttemptSession {
	key := pairKey(session.Quiz().ID, session.UserID())
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[key]; ok {
		return existing
	}
	s.sessions[key] = session
	return session
}

func (s *SessionStore) Get(quizID, userID string) (*app.AttemptSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[pairKey(quizID, userID)]
	return session, ok
}

func (s *SessionStore) Delete(quizID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, pairKey(quizID, userID))
}
