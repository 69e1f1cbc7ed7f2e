package app

import (
	"github.com/MevanWeerasinghe/quiz-app/internal/domain"
)

// Score computes the number of correctly answered questions in an answer set.
//
// An answer counts iff its SelectedIndex is non-nil, within the option range
// of the referenced question, and equal to that question's CorrectIndex.
// Unanswered slots and unknown question IDs are ignored. Answer sets that
// reference the same question more than once are rejected with
// domain.ErrDuplicateAnswer, which keeps the result independent of answer
// order. Always runs server-side; a client-supplied score is never trusted.
func Score(questions []domain.Question, answers []domain.Answer) (int, error) {
	byID := make(map[string]domain.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	seen := make(map[string]struct{}, len(answers))
	score := 0
	for _, a := range answers {
		if _, dup := seen[a.QuestionID]; dup {
			return 0, domain.ErrDuplicateAnswer
		}
		seen[a.QuestionID] = struct{}{}

		if a.SelectedIndex == nil {
			continue
		}
		q, ok := byID[a.QuestionID]
		if !ok {
			continue
		}
		sel := *a.SelectedIndex
		if sel < 0 || sel >= len(q.Options) {
			continue
		}
		if sel == q.CorrectIndex {
			score++
		}
	}
	return score, nil
}
