package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/MevanWeerasinghe/quiz-app/internal/domain"
)

// SubmissionStore is an in-memory implementation of app.SubmissionRepository.
// The one-per-(quiz,user) invariant is enforced by checking and inserting
// under a single lock, so concurrent duplicate creates cannot both succeed.
type SubmissionStore struct {
	mu     sync.RWMutex
	byID   map[string]domain.Submission
	byPair map[string]string // quizID+"\x00"+userID -> submission ID
}

func NewSubmissionStore() *SubmissionStore {
	return &SubmissionStore{
		byID:   make(map[string]domain.Submission),
		byPair: make(map[string]string),
	}
}

func (s *SubmissionStore) Create(_ context.Context, sub domain.Submission) error {
	key := pairKey(sub.QuizID, sub.UserID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byPair[key]; exists {
		return domain.ErrAlreadySubmitted
	}
	s.byPair[key] = sub.ID
	s.byID[sub.ID] = sub
	return nil
}

func (s *SubmissionStore) Exists(_ context.Context, quizID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byPair[pairKey(quizID, userID)]
	return ok, nil
}

func (s *SubmissionStore) ListByQuiz(_ context.Context, quizID string) ([]domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Submission, 0)
	for _, sub := range s.byID {
		if sub.QuizID == quizID {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func (s *SubmissionStore) Get(_ context.Context, submissionID string) (domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.byID[submissionID]
	if !ok {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	return sub, nil
}

func (s *SubmissionStore) Delete(_ context.Context, submissionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.byID[submissionID]
	if !ok {
		return domain.ErrSubmissionNotFound
	}
	delete(s.byID, submissionID)
	delete(s.byPair, pairKey(sub.QuizID, sub.UserID))
	return nil
}

func pairKey(quizID, userID string) string {
	return quizID + "\x00" + userID
}
