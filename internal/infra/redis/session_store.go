package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MevanWeerasinghe/quiz-app/internal/app"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Attempt sessions hold live timers and an answer buffer, so they stay
//     in the local process map; Redis marks attempt liveness per (quiz, user)
//     so operators can see in-flight attempts across instances.
//   - True cross-instance session migration would need the buffer snapshotted
//     to Redis as well; not done here.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.AttemptSession
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.AttemptSession),
	}
}

func (s *SessionStore) PutIfAbsent(session *app.AttemptSession) *app.AttemptSession {
	quizID, userID := session.Quiz().ID, session.UserID()
	key := quizID + "\x00" + userID
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[key]; ok {
		return existing
	}
	s.sessions[key] = session
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(quizID, userID), "1", s.ttl).Err()
	return session
}

func (s *SessionStore) Get(quizID, userID string) (*app.AttemptSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[quizID+"\x00"+userID]
	return session, ok
}

func (s *SessionStore) Delete(quizID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, quizID+"\x00"+userID)
	_ = s.client.Del(context.Background(), s.key(quizID, userID)).Err()
}

func (s *SessionStore) key(quizID, userID string) string {
	return "quiz:attempt:" + quizID + ":" + userID
}
