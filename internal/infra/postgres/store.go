package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/MevanWeerasinghe/quiz-app/internal/domain"
)

// Store implements app.QuizRepository and app.SubmissionRepository on top of
// a pgx pool. Question order is a persisted position column; submission
// uniqueness rides on the (quiz_id, user_id) unique constraint so concurrent
// duplicate inserts resolve inside Postgres, not in application code.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateQuiz(ctx context.Context, quiz domain.Quiz) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create quiz: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO quizzes (id, title, creator, timing_mode, time_limit, allow_back, show_result, created_with_ai, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		quiz.ID, quiz.Title, quiz.Creator, string(quiz.TimingMode), quiz.TimeLimitMinutes,
		quiz.AllowBack, quiz.ShowResult, quiz.CreatedWithAI, quiz.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}

	for i, q := range quiz.Questions {
		opts, err := json.Marshal(q.Options)
		if err != nil {
			return fmt.Errorf("marshal options: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO questions (id, quiz_id, position, text, options, correct_index, question_time)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			q.ID, quiz.ID, i, q.Text, opts, q.CorrectIndex, q.QuestionTime)
		if err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var quiz domain.Quiz
	var mode string
	err := s.pool.QueryRow(ctx, `
		SELECT id, title, creator, timing_mode, time_limit, allow_back, show_result, created_with_ai, created_at
		FROM quizzes WHERE id=$1`, quizID).
		Scan(&quiz.ID, &quiz.Title, &quiz.Creator, &mode, &quiz.TimeLimitMinutes,
			&quiz.AllowBack, &quiz.ShowResult, &quiz.CreatedWithAI, &quiz.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	quiz.TimingMode = domain.TimingMode(mode)

	questions, err := s.questionsForQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	quiz.Questions = questions
	return quiz, nil
}

func (s *Store) ListByCreator(ctx context.Context, creator string) ([]domain.Quiz, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, creator, timing_mode, time_limit, allow_back, show_result, created_with_ai, created_at
		FROM quizzes WHERE creator=$1 ORDER BY created_at`, creator)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	quizzes := make([]domain.Quiz, 0)
	for rows.Next() {
		var quiz domain.Quiz
		var mode string
		if err := rows.Scan(&quiz.ID, &quiz.Title, &quiz.Creator, &mode, &quiz.TimeLimitMinutes,
			&quiz.AllowBack, &quiz.ShowResult, &quiz.CreatedWithAI, &quiz.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		quiz.TimingMode = domain.TimingMode(mode)
		quizzes = append(quizzes, quiz)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}

	for i := range quizzes {
		questions, err := s.questionsForQuiz(ctx, quizzes[i].ID)
		if err != nil {
			return nil, err
		}
		quizzes[i].Questions = questions
	}
	return quizzes, nil
}

func (s *Store) UpdateQuiz(ctx context.Context, quiz domain.Quiz) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE quizzes
		SET title=$2, timing_mode=$3, time_limit=$4, allow_back=$5, show_result=$6
		WHERE id=$1`,
		quiz.ID, quiz.Title, string(quiz.TimingMode), quiz.TimeLimitMinutes, quiz.AllowBack, quiz.ShowResult)
	if err != nil {
		return fmt.Errorf("update quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

func (s *Store) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	var q domain.Question
	var opts []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, quiz_id, text, options, correct_index, question_time
		FROM questions WHERE id=$1`, questionID).
		Scan(&q.ID, &q.QuizID, &q.Text, &opts, &q.CorrectIndex, &q.QuestionTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	if err := json.Unmarshal(opts, &q.Options); err != nil {
		return domain.Question{}, fmt.Errorf("unmarshal options: %w", err)
	}
	return q, nil
}

func (s *Store) UpdateQuestion(ctx context.Context, question domain.Question) error {
	opts, err := json.Marshal(question.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE questions SET text=$2, options=$3, correct_index=$4, question_time=$5
		WHERE id=$1`,
		question.ID, question.Text, opts, question.CorrectIndex, question.QuestionTime)
	if err != nil {
		return fmt.Errorf("update question: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

func (s *Store) DeleteQuiz(ctx context.Context, quizID string) error {
	// questions go with the quiz via ON DELETE CASCADE
	tag, err := s.pool.Exec(ctx, `DELETE FROM quizzes WHERE id=$1`, quizID)
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

func (s *Store) questionsForQuiz(ctx context.Context, quizID string) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, quiz_id, text, options, correct_index, question_time
		FROM questions WHERE quiz_id=$1 ORDER BY position`, quizID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	questions := make([]domain.Question, 0)
	for rows.Next() {
		var q domain.Question
		var opts []byte
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Text, &opts, &q.CorrectIndex, &q.QuestionTime); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(opts, &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return questions, nil
}

func (s *Store) Create(ctx context.Context, sub domain.Submission) error {
	answers, err := json.Marshal(sub.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	// Insert-if-absent: the unique constraint resolves the duplicate race
	// atomically, so two concurrent submissions yield one row, one rejection.
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO submissions (id, quiz_id, user_id, user_email, answers, score, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (quiz_id, user_id) DO NOTHING`,
		sub.ID, sub.QuizID, sub.UserID, sub.UserEmail, answers, sub.Score, sub.SubmittedAt)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadySubmitted
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, quizID, userID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM submissions WHERE quiz_id=$1 AND user_id=$2)`,
		quizID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("probe submission: %w", err)
	}
	return exists, nil
}

func (s *Store) ListByQuiz(ctx context.Context, quizID string) ([]domain.Submission, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, quiz_id, user_id, user_email, answers, score, submitted_at
		FROM submissions WHERE quiz_id=$1 ORDER BY submitted_at`, quizID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	subs := make([]domain.Submission, 0)
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return subs, nil
}

func (s *Store) Get(ctx context.Context, submissionID string) (domain.Submission, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, quiz_id, user_id, user_email, answers, score, submitted_at
		FROM submissions WHERE id=$1`, submissionID)
	sub, err := scanSubmission(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	return sub, err
}

func (s *Store) Delete(ctx context.Context, submissionID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM submissions WHERE id=$1`, submissionID)
	if err != nil {
		return fmt.Errorf("delete submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSubmissionNotFound
	}
	return nil
}

func scanSubmission(row pgx.Row) (domain.Submission, error) {
	var sub domain.Submission
	var answers []byte
	err := row.Scan(&sub.ID, &sub.QuizID, &sub.UserID, &sub.UserEmail, &answers, &sub.Score, &sub.SubmittedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Submission{}, pgx.ErrNoRows
		}
		return domain.Submission{}, fmt.Errorf("scan submission: %w", err)
	}
	if err := json.Unmarshal(answers, &sub.Answers); err != nil {
		return domain.Submission{}, fmt.Errorf("unmarshal answers: %w", err)
	}
	return sub, nil
}
