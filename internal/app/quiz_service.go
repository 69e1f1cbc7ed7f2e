package app

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MevanWeerasinghe/quiz-app/internal/domain"
)

// QuizRepository abstracts how quizzes and their questions are stored
// (in-memory, Postgres behind a Redis cache, etc).
type QuizRepository interface {
	CreateQuiz(ctx context.Context, quiz domain.Quiz) error
	// GetQuiz returns the quiz with its questions in presentation order.
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	ListByCreator(ctx context.Context, creator string) ([]domain.Quiz, error)
	// UpdateQuiz persists quiz metadata; questions are untouched.
	UpdateQuiz(ctx context.Context, quiz domain.Quiz) error
	GetQuestion(ctx context.Context, questionID string) (domain.Question, error)
	UpdateQuestion(ctx context.Context, question domain.Question) error
	// DeleteQuiz removes the quiz and cascades to its questions.
	DeleteQuiz(ctx context.Context, quizID string) error
}

// QuestionInput is one question as authored by the creator or an AI draft.
type QuestionInput struct {
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	QuestionTime int      `json:"questionTime"`
}

// CreateQuizInput carries everything needed to persist a quiz.
type CreateQuizInput struct {
	Title            string
	Creator          string
	TimingMode       domain.TimingMode
	TimeLimitMinutes int
	AllowBack        bool
	ShowResult       bool
	CreatedWithAI    bool
	Questions        []QuestionInput
}

// UpdateQuizInput is a partial metadata update; nil fields keep their value.
type UpdateQuizInput struct {
	Title            *string
	TimingMode       *domain.TimingMode
	TimeLimitMinutes *int
	AllowBack        *bool
	ShowResult       *bool
}

// UpdateQuestionInput replaces a question's content after validation.
type UpdateQuestionInput struct {
	Text         string
	Options      []string
	CorrectIndex int
	QuestionTime *int
}

// QuizService contains the quiz and question authoring use cases.
type QuizService struct {
	quizzes QuizRepository
	now     func() time.Time
	newID   func() string
}

func NewQuizService(quizzes QuizRepository) *QuizService {
	return &QuizService{
		quizzes: quizzes,
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
}

// CreateQuiz validates and persists a quiz with its questions.
func (s *QuizService) CreateQuiz(ctx context.Context, in CreateQuizInput) (domain.Quiz, error) {
	quiz, err := s.buildQuiz(in)
	if err != nil {
		return domain.Quiz{}, err
	}
	if err := s.quizzes.CreateQuiz(ctx, quiz); err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}

// SaveDraft persists an AI-reviewed draft as a real quiz. Drafts go through
// the same validation as manual questions; malformed generator output never
// reaches storage.
func (s *QuizService) SaveDraft(ctx context.Context, in CreateQuizInput) (domain.Quiz, error) {
	in.CreatedWithAI = true
	return s.CreateQuiz(ctx, in)
}

// GetQuiz fetches a quiz with its ordered questions.
func (s *QuizService) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return s.quizzes.GetQuiz(ctx, quizID)
}

// ListByCreator returns all quizzes a user authored.
func (s *QuizService) ListByCreator(ctx context.Context, creator string) ([]domain.Quiz, error) {
	return s.quizzes.ListByCreator(ctx, creator)
}

// UpdateQuiz applies a partial metadata update. Switching to per-question
// timing forces AllowBack off, matching the authoring rule that backward
// navigation and per-question countdowns do not mix.
func (s *QuizService) UpdateQuiz(ctx context.Context, quizID string, in UpdateQuizInput) (domain.Quiz, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}

	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return domain.Quiz{}, domain.Validationf("title must not be empty")
		}
		quiz.Title = strings.TrimSpace(*in.Title)
	}
	if in.TimingMode != nil {
		if !in.TimingMode.Valid() {
			return domain.Quiz{}, domain.Validationf("unknown timing mode %q", *in.TimingMode)
		}
		quiz.TimingMode = *in.TimingMode
	}
	if in.TimeLimitMinutes != nil {
		if *in.TimeLimitMinutes < 0 {
			return domain.Quiz{}, domain.Validationf("time limit must be >= 0 minutes")
		}
		quiz.TimeLimitMinutes = *in.TimeLimitMinutes
	}
	if in.AllowBack != nil {
		quiz.AllowBack = *in.AllowBack
	}
	if in.ShowResult != nil {
		quiz.ShowResult = *in.ShowResult
	}
	if quiz.TimingMode == domain.TimingPerQuestion {
		quiz.AllowBack = false
	}

	if err := s.quizzes.UpdateQuiz(ctx, quiz); err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}

// UpdateQuestion validates and replaces a question's content. A rejected
// update leaves the stored question unchanged.
func (s *QuizService) UpdateQuestion(ctx context.Context, questionID string, in UpdateQuestionInput) (domain.Question, error) {
	question, err := s.quizzes.GetQuestion(ctx, questionID)
	if err != nil {
		return domain.Question{}, err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, question.QuizID)
	if err != nil {
		return domain.Question{}, err
	}

	qt := question.QuestionTime
	if in.QuestionTime != nil {
		qt = *in.QuestionTime
	}
	if err := validateQuestion(in.Text, in.Options, in.CorrectIndex, qt, quiz.TimingMode); err != nil {
		return domain.Question{}, err
	}

	question.Text = strings.TrimSpace(in.Text)
	question.Options = in.Options
	question.CorrectIndex = in.CorrectIndex
	question.QuestionTime = qt
	if err := s.quizzes.UpdateQuestion(ctx, question); err != nil {
		return domain.Question{}, err
	}
	return question, nil
}

// DeleteQuiz removes a quiz and all of its questions.
func (s *QuizService) DeleteQuiz(ctx context.Context, quizID string) error {
	return s.quizzes.DeleteQuiz(ctx, quizID)
}

func (s *QuizService) buildQuiz(in CreateQuizInput) (domain.Quiz, error) {
	if strings.TrimSpace(in.Title) == "" {
		return domain.Quiz{}, domain.Validationf("title must not be empty")
	}
	if in.Creator == "" {
		return domain.Quiz{}, domain.Validationf("creator is required")
	}
	mode := in.TimingMode
	if mode == "" {
		mode = domain.TimingWholeQuiz
	}
	if !mode.Valid() {
		return domain.Quiz{}, domain.Validationf("unknown timing mode %q", in.TimingMode)
	}
	if in.TimeLimitMinutes < 0 {
		return domain.Quiz{}, domain.Validationf("time limit must be >= 0 minutes")
	}
	if len(in.Questions) == 0 {
		return domain.Quiz{}, domain.Validationf("a quiz needs at least one question")
	}

	allowBack := in.AllowBack
	if mode == domain.TimingPerQuestion {
		allowBack = false
	}

	quiz := domain.Quiz{
		ID:               s.newID(),
		Title:            strings.TrimSpace(in.Title),
		Creator:          in.Creator,
		TimingMode:       mode,
		TimeLimitMinutes: in.TimeLimitMinutes,
		AllowBack:        allowBack,
		ShowResult:       in.ShowResult,
		CreatedWithAI:    in.CreatedWithAI,
		CreatedAt:        s.now().UTC(),
	}
	for _, q := range in.Questions {
		qt := q.QuestionTime
		if qt == 0 {
			qt = domain.DefaultQuestionTime
		}
		if err := validateQuestion(q.Text, q.Options, q.CorrectIndex, qt, mode); err != nil {
			return domain.Quiz{}, err
		}
		quiz.Questions = append(quiz.Questions, domain.Question{
			ID:           s.newID(),
			QuizID:       quiz.ID,
			Text:         strings.TrimSpace(q.Text),
			Options:      q.Options,
			CorrectIndex: q.CorrectIndex,
			QuestionTime: qt,
		})
	}
	return quiz, nil
}

func validateQuestion(text string, options []string, correctIndex, questionTime int, mode domain.TimingMode) error {
	if strings.TrimSpace(text) == "" {
		return domain.Validationf("question text must not be empty")
	}
	if len(options) < domain.MinOptions || len(options) > domain.MaxOptions {
		return domain.Validationf("a question needs between %d and %d options, got %d", domain.MinOptions, domain.MaxOptions, len(options))
	}
	for i, opt := range options {
		if strings.TrimSpace(opt) == "" {
			return domain.Validationf("option %d must not be empty", i+1)
		}
	}
	if correctIndex < 0 || correctIndex >= len(options) {
		return domain.Validationf("correct index %d out of range for %d options", correctIndex, len(options))
	}
	if mode == domain.TimingPerQuestion && questionTime < domain.MinQuestionTime {
		return domain.Validationf("question time must be at least %d seconds", domain.MinQuestionTime)
	}
	return nil
}
