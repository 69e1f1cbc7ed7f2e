package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/MevanWeerasinghe/quiz-app/internal/domain"
	"github.com/MevanWeerasinghe/quiz-app/internal/infra/memory"
)

// QuizRepository caches full quizzes in Redis as JSON values and falls back
// to the backing repository on a miss. Reads are respondent-hot (every
// attempt start loads the quiz), so they are served from cache with TTL
// jitter; writes pass through and drop the cached value.
//
// Cached as: SET quiz:{quizID} {json} EX ttl
type QuizRepository struct {
	client  *redis.Client
	backing memory.Backing
	ttl     time.Duration
	sf      singleflight.Group
	rnd     *rand.Rand
}

func NewQuizRepository(client *redis.Client, backing memory.Backing, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client:  client,
		backing: backing,
		ttl:     ttl,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	key := r.key(quizID)

	if raw, err := r.client.Get(ctx, key).Bytes(); err == nil {
		var quiz domain.Quiz
		if err := json.Unmarshal(raw, &quiz); err == nil {
			return quiz, nil
		}
		// Unreadable cache entry: drop it and reload below.
		_ = r.client.Del(ctx, key).Err()
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := r.client.Get(ctx, key).Bytes(); err == nil {
			var quiz domain.Quiz
			if err := json.Unmarshal(raw, &quiz); err == nil {
				return quiz, nil
			}
		}

		quiz, err := r.backing.GetQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}

		if raw, err := json.Marshal(quiz); err == nil {
			_ = r.client.Set(ctx, key, raw, r.ttlWithJitter()).Err()
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (r *QuizRepository) CreateQuiz(ctx context.Context, quiz domain.Quiz) error {
	return r.backing.CreateQuiz(ctx, quiz)
}

func (r *QuizRepository) ListByCreator(ctx context.Context, creator string) ([]domain.Quiz, error) {
	return r.backing.ListByCreator(ctx, creator)
}

func (r *QuizRepository) UpdateQuiz(ctx context.Context, quiz domain.Quiz) error {
	if err := r.backing.UpdateQuiz(ctx, quiz); err != nil {
		return err
	}
	return r.client.Del(ctx, r.key(quiz.ID)).Err()
}

func (r *QuizRepository) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	return r.backing.GetQuestion(ctx, questionID)
}

func (r *QuizRepository) UpdateQuestion(ctx context.Context, question domain.Question) error {
	if err := r.backing.UpdateQuestion(ctx, question); err != nil {
		return err
	}
	return r.client.Del(ctx, r.key(question.QuizID)).Err()
}

func (r *QuizRepository) DeleteQuiz(ctx context.Context, quizID string) error {
	if err := r.backing.DeleteQuiz(ctx, quizID); err != nil {
		return err
	}
	return r.client.Del(ctx, r.key(quizID)).Err()
}

func (r *QuizRepository) key(quizID string) string {
	return "quiz:" + quizID
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
