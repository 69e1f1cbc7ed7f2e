package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/MevanWeerasinghe/quiz-app/internal/domain"
)

// SubmissionRepository stores at most one submission per (quiz, user) pair.
// Create must be atomic with respect to that invariant: under concurrent
// duplicate calls exactly one succeeds, the rest return ErrAlreadySubmitted.
type SubmissionRepository interface {
	Create(ctx context.Context, sub domain.Submission) error
	Exists(ctx context.Context, quizID, userID string) (bool, error)
	ListByQuiz(ctx context.Context, quizID string) ([]domain.Submission, error)
	Get(ctx context.Context, submissionID string) (domain.Submission, error)
	Delete(ctx context.Context, submissionID string) error
}

// SubmitInput is a complete answer set for one attempt.
type SubmitInput struct {
	QuizID    string
	UserID    string
	UserEmail string
	Answers   []domain.Answer
}

// SubmissionService owns the server-side submission lifecycle: scoring,
// uniqueness, dashboards, and creator-initiated deletion.
type SubmissionService struct {
	quizzes     QuizRepository
	submissions SubmissionRepository
	now         func() time.Time
	newID       func() string
}

func NewSubmissionService(quizzes QuizRepository, submissions SubmissionRepository) *SubmissionService {
	return &SubmissionService{
		quizzes:     quizzes,
		submissions: submissions,
		now:         time.Now,
		newID:       func() string { return uuid.NewString() },
	}
}

// Submit scores the answer set server-side and records the submission. The
// repository enforces one-per-(quiz,user); a duplicate surfaces as
// domain.ErrAlreadySubmitted no matter which path triggered the submission.
func (s *SubmissionService) Submit(ctx context.Context, in SubmitInput) (domain.Submission, error) {
	if in.QuizID == "" || in.UserID == "" {
		return domain.Submission{}, domain.Validationf("quizId and userId are required")
	}

	quiz, err := s.quizzes.GetQuiz(ctx, in.QuizID)
	if err != nil {
		return domain.Submission{}, err
	}

	score, err := Score(quiz.Questions, in.Answers)
	if err != nil {
		return domain.Submission{}, err
	}

	sub := domain.Submission{
		ID:          s.newID(),
		QuizID:      in.QuizID,
		UserID:      in.UserID,
		UserEmail:   in.UserEmail,
		Answers:     in.Answers,
		Score:       score,
		SubmittedAt: s.now().UTC(),
	}
	if err := s.submissions.Create(ctx, sub); err != nil {
		return domain.Submission{}, err
	}
	return sub, nil
}

// Exists probes for a prior submission by the given user.
func (s *SubmissionService) Exists(ctx context.Context, quizID, userID string) (bool, error) {
	return s.submissions.Exists(ctx, quizID, userID)
}

// ListByQuiz returns all submissions for a quiz. Creator-only: callerID must
// match the quiz's creator.
func (s *SubmissionService) ListByQuiz(ctx context.Context, quizID, callerID string) ([]domain.Submission, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if quiz.Creator != callerID {
		return nil, domain.ErrNotCreator
	}
	return s.submissions.ListByQuiz(ctx, quizID)
}

// Summary computes per-question correct counts and the most/least correctly
// answered questions across all submissions of a quiz.
func (s *SubmissionService) Summary(ctx context.Context, quizID string) (domain.QuizSummary, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizSummary{}, err
	}
	subs, err := s.submissions.ListByQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizSummary{}, err
	}

	summary := domain.QuizSummary{
		TotalSubmissions: len(subs),
		CorrectCounts:    make([]int, len(quiz.Questions)),
	}
	if len(quiz.Questions) == 0 {
		return summary, nil
	}

	indexByID := make(map[string]int, len(quiz.Questions))
	for i, q := range quiz.Questions {
		indexByID[q.ID] = i
	}
	for _, sub := range subs {
		for _, ans := range sub.Answers {
			idx, ok := indexByID[ans.QuestionID]
			if !ok || ans.SelectedIndex == nil {
				continue
			}
			if *ans.SelectedIndex == quiz.Questions[idx].CorrectIndex {
				summary.CorrectCounts[idx]++
			}
		}
	}

	most, least := 0, 0
	for i := 1; i < len(summary.CorrectCounts); i++ {
		if summary.CorrectCounts[i] > summary.CorrectCounts[most] {
			most = i
		}
		if summary.CorrectCounts[i] < summary.CorrectCounts[least] {
			least = i
		}
	}
	summary.MostCorrect = &domain.QuestionStanding{Index: most, QuestionID: quiz.Questions[most].ID}
	summary.LeastCorrect = &domain.QuestionStanding{Index: least, QuestionID: quiz.Questions[least].ID}
	return summary, nil
}

// Delete removes a submission, freeing that respondent to retake the quiz.
func (s *SubmissionService) Delete(ctx context.Context, submissionID string) error {
	return s.submissions.Delete(ctx, submissionID)
}
