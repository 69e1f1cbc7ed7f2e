package memory

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MevanWeerasinghe/quiz-app/internal/domain"
)

// QuizStore is an in-memory implementation of app.QuizRepository. Questions
// keep the order they were created in.
type QuizStore struct {
	mu        sync.RWMutex
	quizzes   map[string]domain.Quiz
	questions map[string]domain.Question // by question ID, for direct edits
}

func NewQuizStore() *QuizStore {
	return &QuizStore{
		quizzes:   make(map[string]domain.Quiz),
		questions: make(map[string]domain.Question),
	}
}

func (s *QuizStore) CreateQuiz(_ context.Context, quiz domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizzes[quiz.ID] = cloneQuiz(quiz)
	for _, q := range quiz.Questions {
		s.questions[q.ID] = q
	}
	return nil
}

func (s *QuizStore) GetQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return cloneQuiz(quiz), nil
}

func (s *QuizStore) ListByCreator(_ context.Context, creator string) ([]domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Quiz, 0)
	for _, quiz := range s.quizzes {
		if quiz.Creator == creator {
			out = append(out, cloneQuiz(quiz))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *QuizStore) UpdateQuiz(_ context.Context, quiz domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.quizzes[quiz.ID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	// Metadata update only; the stored question list wins.
	quiz.Questions = existing.Questions
	s.quizzes[quiz.ID] = quiz
	return nil
}

func (s *QuizStore) GetQuestion(_ context.Context, questionID string) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[questionID]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, nil
}

func (s *QuizStore) UpdateQuestion(_ context.Context, question domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[question.ID]; !ok {
		return domain.ErrQuestionNotFound
	}
	s.questions[question.ID] = question
	quiz, ok := s.quizzes[question.QuizID]
	if ok {
		for i := range quiz.Questions {
			if quiz.Questions[i].ID == question.ID {
				quiz.Questions[i] = question
				break
			}
		}
		s.quizzes[quiz.ID] = quiz
	}
	return nil
}

func (s *QuizStore) DeleteQuiz(_ context.Context, quizID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	for _, q := range quiz.Questions {
		delete(s.questions, q.ID)
	}
	delete(s.quizzes, quizID)
	return nil
}

func cloneQuiz(quiz domain.Quiz) domain.Quiz {
	out := quiz
	out.Questions = make([]domain.Question, len(quiz.Questions))
	copy(out.Questions, quiz.Questions)
	return out
}

// CachedQuizRepository wraps another quiz repository with a TTL read cache,
// using singleflight to stop a cold key from stampeding the backing store.
// Writes pass through and invalidate the cached entry.
type CachedQuizRepository struct {
	backing Backing
	ttl     time.Duration
	clock   func() time.Time
	sf      singleflight.Group
	rnd     *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedQuiz
}

// Backing is the subset of app.QuizRepository the cache delegates to.
type Backing interface {
	CreateQuiz(ctx context.Context, quiz domain.Quiz) error
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	ListByCreator(ctx context.Context, creator string) ([]domain.Quiz, error)
	UpdateQuiz(ctx context.Context, quiz domain.Quiz) error
	GetQuestion(ctx context.Context, questionID string) (domain.Question, error)
	UpdateQuestion(ctx context.Context, question domain.Question) error
	DeleteQuiz(ctx context.Context, quizID string) error
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewCachedQuizRepository(backing Backing, ttl time.Duration) *CachedQuizRepository {
	return &CachedQuizRepository{
		backing: backing,
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:   make(map[string]cachedQuiz),
	}
}

func (r *CachedQuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[quizID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.quiz, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[quizID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.quiz, nil
		}
		r.mu.RUnlock()

		quiz, err := r.backing.GetQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}

		r.mu.Lock()
		r.cache[quizID] = cachedQuiz{
			quiz:      quiz,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (r *CachedQuizRepository) CreateQuiz(ctx context.Context, quiz domain.Quiz) error {
	return r.backing.CreateQuiz(ctx, quiz)
}

func (r *CachedQuizRepository) ListByCreator(ctx context.Context, creator string) ([]domain.Quiz, error) {
	return r.backing.ListByCreator(ctx, creator)
}

func (r *CachedQuizRepository) UpdateQuiz(ctx context.Context, quiz domain.Quiz) error {
	if err := r.backing.UpdateQuiz(ctx, quiz); err != nil {
		return err
	}
	r.invalidate(quiz.ID)
	return nil
}

func (r *CachedQuizRepository) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	return r.backing.GetQuestion(ctx, questionID)
}

func (r *CachedQuizRepository) UpdateQuestion(ctx context.Context, question domain.Question) error {
	if err := r.backing.UpdateQuestion(ctx, question); err != nil {
		return err
	}
	r.invalidate(question.QuizID)
	return nil
}

func (r *CachedQuizRepository) DeleteQuiz(ctx context.Context, quizID string) error {
	if err := r.backing.DeleteQuiz(ctx, quizID); err != nil {
		return err
	}
	r.invalidate(quizID)
	return nil
}

func (r *CachedQuizRepository) invalidate(quizID string) {
	r.mu.Lock()
	delete(r.cache, quizID)
	r.mu.Unlock()
}

func (r *CachedQuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
