package domain

import "time"

// TimingMode selects how the countdown is applied to an attempt.
type TimingMode string

const (
	// TimingWholeQuiz runs a single countdown over the entire quiz.
	TimingWholeQuiz TimingMode = "whole-quiz"
	// TimingPerQuestion runs a fresh countdown for each question.
	TimingPerQuestion TimingMode = "per-question"
)

// Valid reports whether the timing mode is one of the two known values.
func (m TimingMode) Valid() bool {
	return m == TimingWholeQuiz || m == TimingPerQuestion
}

const (
	// MinOptions and MaxOptions bound the option list of a question.
	MinOptions = 2
	MaxOptions = 5
	// MinQuestionTime is the smallest per-question countdown, in seconds.
	MinQuestionTime = 5
	// DefaultQuestionTime is used when a question carries no explicit time.
	DefaultQuestionTime = 60
)

// Question models an MCQ question with exactly one correct option index.
type Question struct {
	ID           string   `json:"id"`
	QuizID       string   `json:"quizId"`
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	// QuestionTime is the countdown in seconds, only meaningful when the
	// owning quiz uses per-question timing.
	QuestionTime int `json:"questionTime"`
}

// Quiz is an ordered set of questions plus the attempt rules.
type Quiz struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Creator          string     `json:"creator"`
	Questions        []Question `json:"questions"`
	TimingMode       TimingMode `json:"timingMode"`
	TimeLimitMinutes int        `json:"timeLimit"` // whole-quiz only; 0 = no limit
	AllowBack        bool       `json:"allowBack"`
	ShowResult       bool       `json:"showResult"`
	CreatedWithAI    bool       `json:"createdWithAI"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// Answer records the selected option for one question. SelectedIndex is nil
// when the question was left unanswered.
type Answer struct {
	QuestionID    string `json:"questionId"`
	SelectedIndex *int   `json:"selectedIndex"`
}

// Submission is the terminal record of one attempt. At most one exists per
// (QuizID, UserID) pair; the score is computed once at creation and never
// recomputed.
type Submission struct {
	ID          string    `json:"id"`
	QuizID      string    `json:"quizId"`
	UserID      string    `json:"userId"`
	UserEmail   string    `json:"userEmail"`
	Answers     []Answer  `json:"answers"`
	Score       int       `json:"score"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// QuizSummary aggregates submission statistics for a quiz's dashboard.
type QuizSummary struct {
	TotalSubmissions int               `json:"totalSubmissions"`
	CorrectCounts    []int             `json:"correctCounts"`
	MostCorrect      *QuestionStanding `json:"mostCorrect"`
	LeastCorrect     *QuestionStanding `json:"leastCorrect"`
}

// QuestionStanding points at a question by position and id.
type QuestionStanding struct {
	Index      int    `json:"index"`
	QuestionID string `json:"questionId"`
}

// QuestionDraft is an AI-generated candidate question, reviewed by the
// creator before it is persisted as a real Question.
type QuestionDraft struct {
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
}
