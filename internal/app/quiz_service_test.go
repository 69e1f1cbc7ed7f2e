package app_test

import (
	"context"
	"testing"

	"github.com/MevanWeerasinghe/quiz-app/internal/app"
	"github.com/MevanWeerasinghe/quiz-app/internal/domain"
	"github.com/MevanWeerasinghe/quiz-app/internal/infra/memory"
)

func newQuizService() (*app.QuizService, *memory.QuizStore) {
	store := memory.NewQuizStore()
	return app.NewQuizService(store), store
}

func validInput() app.CreateQuizInput {
	return app.CreateQuizInput{
		Title:      "Go basics",
		Creator:    "creator-1",
		TimingMode: domain.TimingWholeQuiz,
		ShowResult: true,
		AllowBack:  true,
		Questions: []app.QuestionInput{
			{Text: "What does go vet do?", Options: []string{"lints", "compiles"}, CorrectIndex: 0},
			{Text: "Keyword for goroutines?", Options: []string{"run", "go", "spawn"}, CorrectIndex: 1},
		},
	}
}

func TestCreateQuizPersistsQuestionsInOrder(t *testing.T) {
	ctx := context.Background()
	service, _ := newQuizService()

	created, err := service.CreateQuiz(ctx, validInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated quiz id")
	}

	got, err := service.GetQuiz(ctx, created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(got.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(got.Questions))
	}
	if got.Questions[0].Text != "What does go vet do?" || got.Questions[1].CorrectIndex != 1 {
		t.Fatalf("question order not preserved: %+v", got.Questions)
	}
	if got.Questions[0].QuestionTime != domain.DefaultQuestionTime {
		t.Fatalf("expected default question time, got %d", got.Questions[0].QuestionTime)
	}
}

func TestCreateQuizValidation(t *testing.T) {
	ctx := context.Background()
	service, _ := newQuizService()

	cases := []struct {
		name   string
		mutate func(*app.CreateQuizInput)
	}{
		{"empty title", func(in *app.CreateQuizInput) { in.Title = "  " }},
		{"missing creator", func(in *app.CreateQuizInput) { in.Creator = "" }},
		{"no questions", func(in *app.CreateQuizInput) { in.Questions = nil }},
		{"bad timing mode", func(in *app.CreateQuizInput) { in.TimingMode = "speedrun" }},
		{"negative time limit", func(in *app.CreateQuizInput) { in.TimeLimitMinutes = -1 }},
		{"one option", func(in *app.CreateQuizInput) {
			in.Questions[0].Options = []string{"only"}
		}},
		{"six options", func(in *app.CreateQuizInput) {
			in.Questions[0].Options = []string{"a", "b", "c", "d", "e", "f"}
		}},
		{"blank option", func(in *app.CreateQuizInput) {
			in.Questions[0].Options = []string{"a", " "}
		}},
		{"correct index out of range", func(in *app.CreateQuizInput) {
			in.Questions[0].CorrectIndex = 2
		}},
		{"question time too short", func(in *app.CreateQuizInput) {
			in.TimingMode = domain.TimingPerQuestion
			in.Questions[0].QuestionTime = 3
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			if _, err := service.CreateQuiz(ctx, in); !domain.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateQuizPerQuestionDisablesBack(t *testing.T) {
	ctx := context.Background()
	service, _ := newQuizService()

	in := validInput()
	in.TimingMode = domain.TimingPerQuestion
	in.AllowBack = true
	for i := range in.Questions {
		in.Questions[i].QuestionTime = 30
	}
	created, err := service.CreateQuiz(ctx, in)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.AllowBack {
		t.Fatalf("per-question quizzes must not allow backward navigation")
	}
}

func TestUpdateQuizPartial(t *testing.T) {
	ctx := context.Background()
	service, _ := newQuizService()
	created, err := service.CreateQuiz(ctx, validInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	title := "Go basics v2"
	limit := 15
	updated, err := service.UpdateQuiz(ctx, created.ID, app.UpdateQuizInput{
		Title:            &title,
		TimeLimitMinutes: &limit,
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Title != title || updated.TimeLimitMinutes != 15 {
		t.Fatalf("unexpected update result: %+v", updated)
	}
	// Untouched fields survive the partial update.
	if !updated.ShowResult || !updated.AllowBack {
		t.Fatalf("untouched fields changed: %+v", updated)
	}

	mode := domain.TimingPerQuestion
	updated, err = service.UpdateQuiz(ctx, created.ID, app.UpdateQuizInput{TimingMode: &mode})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.AllowBack {
		t.Fatalf("switching to per-question timing must force allowBack off")
	}
}

func TestUpdateQuizUnknownID(t *testing.T) {
	service, _ := newQuizService()
	if _, err := service.UpdateQuiz(context.Background(), "nope", app.UpdateQuizInput{}); err != domain.ErrQuizNotFound {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

func TestUpdateQuestionRejectedEditLeavesStoredState(t *testing.T) {
	ctx := context.Background()
	service, _ := newQuizService()
	created, err := service.CreateQuiz(ctx, validInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	target := created.Questions[0]

	_, err = service.UpdateQuestion(ctx, target.ID, app.UpdateQuestionInput{
		Text:         "edited",
		Options:      []string{"solo"},
		CorrectIndex: 0,
	})
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	got, err := service.GetQuiz(ctx, created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Questions[0].Text != target.Text || len(got.Questions[0].Options) != 2 {
		t.Fatalf("rejected edit must not change stored question: %+v", got.Questions[0])
	}
}

func TestUpdateQuestionValidEdit(t *testing.T) {
	ctx := context.Background()
	service, _ := newQuizService()
	created, err := service.CreateQuiz(ctx, validInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	updated, err := service.UpdateQuestion(ctx, created.Questions[1].ID, app.UpdateQuestionInput{
		Text:         "Which keyword starts a goroutine?",
		Options:      []string{"go", "run"},
		CorrectIndex: 0,
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.CorrectIndex != 0 {
		t.Fatalf("unexpected question after edit: %+v", updated)
	}

	got, err := service.GetQuiz(ctx, created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Questions[1].Text != "Which keyword starts a goroutine?" {
		t.Fatalf("edit not visible through the quiz: %+v", got.Questions[1])
	}
}

func TestSaveDraftMarksAIOrigin(t *testing.T) {
	ctx := context.Background()
	service, _ := newQuizService()

	in := validInput()
	in.CreatedWithAI = false
	created, err := service.SaveDraft(ctx, in)
	if err != nil {
		t.Fatalf("save draft failed: %v", err)
	}
	if !created.CreatedWithAI {
		t.Fatalf("draft save must flag the quiz as AI-created")
	}
}

func TestDeleteQuizRemovesQuestions(t *testing.T) {
	ctx := context.Background()
	service, store := newQuizService()
	created, err := service.CreateQuiz(ctx, validInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := service.DeleteQuiz(ctx, created.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := service.GetQuiz(ctx, created.ID); err != domain.ErrQuizNotFound {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
	if _, err := store.GetQuestion(ctx, created.Questions[0].ID); err != domain.ErrQuestionNotFound {
		t.Fatalf("expected cascaded question delete, got %v", err)
	}
}

func TestListByCreator(t *testing.T) {
	ctx := context.Background()
	service, _ := newQuizService()

	if _, err := service.CreateQuiz(ctx, validInput()); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	other := validInput()
	other.Creator = "creator-2"
	if _, err := service.CreateQuiz(ctx, other); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	mine, err := service.ListByCreator(ctx, "creator-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(mine) != 1 || mine[0].Creator != "creator-1" {
		t.Fatalf("unexpected listing: %+v", mine)
	}
}
