package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MevanWeerasinghe/quiz-app/internal/domain"
)

// countingBacking wraps a QuizStore and counts GetQuiz hits on the backing.
type countingBacking struct {
	*QuizStore
	gets int64
}

func (b *countingBacking) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	atomic.AddInt64(&b.gets, 1)
	return b.QuizStore.GetQuiz(ctx, quizID)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:         "quiz-1",
		Title:      "sample",
		Creator:    "creator-1",
		TimingMode: domain.TimingWholeQuiz,
		Questions: []domain.Question{
			{ID: "q1", QuizID: "quiz-1", Text: "pick", Options: []string{"a", "b"}, CorrectIndex: 0},
		},
	}
}

func TestCachedQuizRepositoryServesFromCache(t *testing.T) {
	ctx := context.Background()
	backing := &countingBacking{QuizStore: NewQuizStore()}
	if err := backing.CreateQuiz(ctx, sampleQuiz()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	repo := NewCachedQuizRepository(backing, time.Minute)

	if _, err := repo.GetQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if got := atomic.LoadInt64(&backing.gets); got != 1 {
		t.Fatalf("expected one backing read, got %d", got)
	}

	if _, err := repo.GetQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if got := atomic.LoadInt64(&backing.gets); got != 1 {
		t.Fatalf("expected cache hit, backing reads %d", got)
	}
}

func TestCachedQuizRepositorySingleflightOnColdKey(t *testing.T) {
	ctx := context.Background()
	backing := &countingBacking{QuizStore: NewQuizStore()}
	if err := backing.CreateQuiz(ctx, sampleQuiz()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	repo := NewCachedQuizRepository(backing, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.GetQuiz(ctx, "quiz-1"); err != nil {
				t.Errorf("get quiz: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&backing.gets); got != 1 {
		t.Fatalf("expected a single backing read under contention, got %d", got)
	}
}

func TestCachedQuizRepositoryInvalidatesOnWrite(t *testing.T) {
	ctx := context.Background()
	backing := &countingBacking{QuizStore: NewQuizStore()}
	if err := backing.CreateQuiz(ctx, sampleQuiz()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	repo := NewCachedQuizRepository(backing, time.Minute)

	if _, err := repo.GetQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}

	updated := sampleQuiz()
	updated.Title = "renamed"
	if err := repo.UpdateQuiz(ctx, updated); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.GetQuiz(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("get quiz after update: %v", err)
	}
	if got.Title != "renamed" {
		t.Fatalf("stale cache entry survived the write: %+v", got)
	}
}

func TestCachedQuizRepositoryExpires(t *testing.T) {
	ctx := context.Background()
	backing := &countingBacking{QuizStore: NewQuizStore()}
	if err := backing.CreateQuiz(ctx, sampleQuiz()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	repo := NewCachedQuizRepository(backing, 10*time.Millisecond)

	if _, err := repo.GetQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := repo.GetQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("get quiz after expiry: %v", err)
	}
	if got := atomic.LoadInt64(&backing.gets); got != 2 {
		t.Fatalf("expected reload after TTL, backing reads %d", got)
	}
}
