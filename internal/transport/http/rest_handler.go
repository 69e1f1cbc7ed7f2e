package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/MevanWeerasinghe/quiz-app/internal/app"
	"github.com/MevanWeerasinghe/quiz-app/internal/domain"
	"github.com/MevanWeerasinghe/quiz-app/internal/genai"
)

// DraftGenerator produces AI question drafts for creator review.
type DraftGenerator interface {
	GenerateDraft(ctx context.Context, req genai.DraftRequest) ([]domain.QuestionDraft, error)
}

// API is the REST surface: quiz/question CRUD, AI draft generation, and the
// direct submission path (which also serves beacon-style fire-and-forget
// sends from navigating-away clients).
type API struct {
	quizzes     *app.QuizService
	submissions *app.SubmissionService
	generator   DraftGenerator
	log         *logrus.Logger
	validate    *validator.Validate
}

func NewAPI(quizzes *app.QuizService, submissions *app.SubmissionService, generator DraftGenerator, log *logrus.Logger) *API {
	return &API{
		quizzes:     quizzes,
		submissions: submissions,
		generator:   generator,
		log:         log,
		validate:    validator.New(),
	}
}

// Routes returns all REST endpoints, meant to be mounted under /api.
func (a *API) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/quizzes", func(r chi.Router) {
		r.Post("/", a.createQuiz)
		r.Get("/user/{userID}", a.listUserQuizzes)
		r.Put("/questions/{questionID}", a.updateQuestion)
		r.Post("/generate-ai", a.generateDraft)
		r.Post("/save-ai", a.saveDraft)
		r.Get("/{quizID}", a.getQuiz)
		r.Put("/{quizID}", a.updateQuiz)
		r.Delete("/{quizID}", a.deleteQuiz)
	})

	r.Route("/submissions", func(r chi.Router) {
		r.Post("/", a.submit)
		r.Get("/quiz/{quizID}", a.listSubmissions)
		r.Get("/quiz/{quizID}/summary", a.summary)
		r.Get("/quiz/{quizID}/has-submitted", a.hasSubmitted)
		r.Delete("/{submissionID}", a.deleteSubmission)
	})

	return r
}

type questionRequest struct {
	Text         string   `json:"text" validate:"required"`
	Options      []string `json:"options" validate:"required,min=2,max=5,dive,required"`
	CorrectIndex int      `json:"correctIndex" validate:"gte=0"`
	QuestionTime int      `json:"questionTime" validate:"omitempty,gte=5"`
}

type createQuizRequest struct {
	Title         string            `json:"title" validate:"required"`
	CreatorID     string            `json:"creatorId" validate:"required"`
	TimingMode    string            `json:"timingMode"`
	TimeLimit     int               `json:"timeLimit" validate:"gte=0"`
	AllowBack     bool              `json:"allowBack"`
	ShowResult    bool              `json:"showResult"`
	CreatedWithAI bool              `json:"createdWithAI"`
	Questions     []questionRequest `json:"questions" validate:"required,min=1,dive"`
}

func (a *API) createQuiz(w http.ResponseWriter, r *http.Request) {
	var req createQuizRequest
	if !a.decode(w, r, &req) {
		return
	}
	quiz, err := a.quizzes.CreateQuiz(r.Context(), toCreateInput(req, false))
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, quiz)
}

func (a *API) saveDraft(w http.ResponseWriter, r *http.Request) {
	var req createQuizRequest
	if !a.decode(w, r, &req) {
		return
	}
	quiz, err := a.quizzes.SaveDraft(r.Context(), toCreateInput(req, true))
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]string{"quizId": quiz.ID})
}

func (a *API) getQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := a.quizzes.GetQuiz(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	render.JSON(w, r, quiz)
}

func (a *API) listUserQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := a.quizzes.ListByCreator(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	render.JSON(w, r, quizzes)
}

type updateQuizRequest struct {
	Title      *string `json:"title"`
	TimingMode *string `json:"timingMode"`
	TimeLimit  *int    `json:"timeLimit"`
	AllowBack  *bool   `json:"allowBack"`
	ShowResult *bool   `json:"showResult"`
}

func (a *API) updateQuiz(w http.ResponseWriter, r *http.Request) {
	var req updateQuizRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		a.renderError(w, r, domain.Validationf("invalid request body"))
		return
	}
	in := app.UpdateQuizInput{
		Title:            req.Title,
		TimeLimitMinutes: req.TimeLimit,
		AllowBack:        req.AllowBack,
		ShowResult:       req.ShowResult,
	}
	if req.TimingMode != nil {
		mode := domain.TimingMode(*req.TimingMode)
		in.TimingMode = &mode
	}
	quiz, err := a.quizzes.UpdateQuiz(r.Context(), chi.URLParam(r, "quizID"), in)
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	render.JSON(w, r, quiz)
}

func (a *API) updateQuestion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text         string   `json:"text" validate:"required"`
		Options      []string `json:"options" validate:"required,min=2,max=5,dive,required"`
		CorrectIndex int      `json:"correctIndex" validate:"gte=0"`
		QuestionTime *int     `json:"questionTime"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	question, err := a.quizzes.UpdateQuestion(r.Context(), chi.URLParam(r, "questionID"), app.UpdateQuestionInput{
		Text:         req.Text,
		Options:      req.Options,
		CorrectIndex: req.CorrectIndex,
		QuestionTime: req.QuestionTime,
	})
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	render.JSON(w, r, question)
}

func (a *API) deleteQuiz(w http.ResponseWriter, r *http.Request) {
	if err := a.quizzes.DeleteQuiz(r.Context(), chi.URLParam(r, "quizID")); err != nil {
		a.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"message": "quiz deleted"})
}

type generateDraftRequest struct {
	Topic              string `json:"topic" validate:"required"`
	NumQuestions       int    `json:"numQuestions" validate:"gte=1,lte=50"`
	NumOptions         int    `json:"numOptions" validate:"gte=2,lte=5"`
	PromptInstructions string `json:"promptInstructions"`
}

func (a *API) generateDraft(w http.ResponseWriter, r *http.Request) {
	var req generateDraftRequest
	if !a.decode(w, r, &req) {
		return
	}
	drafts, err := a.generator.GenerateDraft(r.Context(), genai.DraftRequest{
		Topic:        req.Topic,
		NumQuestions: req.NumQuestions,
		NumOptions:   req.NumOptions,
		Instructions: req.PromptInstructions,
	})
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	render.JSON(w, r, drafts)
}

type submitRequest struct {
	QuizID    string `json:"quizId" validate:"required"`
	UserID    string `json:"userId" validate:"required"`
	UserEmail string `json:"userEmail"`
	Answers   []struct {
		QuestionID    string `json:"questionId" validate:"required"`
		SelectedIndex *int   `json:"selectedIndex"`
	} `json:"answers" validate:"required,dive"`
}

func (a *API) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !a.decode(w, r, &req) {
		return
	}
	answers := make([]domain.Answer, len(req.Answers))
	for i, ans := range req.Answers {
		answers[i] = domain.Answer{QuestionID: ans.QuestionID, SelectedIndex: ans.SelectedIndex}
	}
	sub, err := a.submissions.Submit(r.Context(), app.SubmitInput{
		QuizID:    req.QuizID,
		UserID:    req.UserID,
		UserEmail: req.UserEmail,
		Answers:   answers,
	})
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, sub)
}

func (a *API) listSubmissions(w http.ResponseWriter, r *http.Request) {
	subs, err := a.submissions.ListByQuiz(r.Context(), chi.URLParam(r, "quizID"), r.URL.Query().Get("userId"))
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	render.JSON(w, r, subs)
}

func (a *API) summary(w http.ResponseWriter, r *http.Request) {
	summary, err := a.submissions.Summary(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	render.JSON(w, r, summary)
}

func (a *API) hasSubmitted(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		a.renderError(w, r, domain.Validationf("userId query parameter is required"))
		return
	}
	exists, err := a.submissions.Exists(r.Context(), chi.URLParam(r, "quizID"), userID)
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]bool{"submitted": exists})
}

func (a *API) deleteSubmission(w http.ResponseWriter, r *http.Request) {
	if err := a.submissions.Delete(r.Context(), chi.URLParam(r, "submissionID")); err != nil {
		a.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"message": "submission deleted"})
}

// decode parses and validates a JSON body, rendering a 400 on failure.
func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		a.renderError(w, r, domain.Validationf("invalid request body"))
		return false
	}
	if err := a.validate.Struct(dst); err != nil {
		a.renderError(w, r, domain.Validationf("invalid request: %s", err.Error()))
		return false
	}
	return true
}

type errorResponse struct {
	Message string `json:"message"`
	Raw     string `json:"raw,omitempty"`
}

func (a *API) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	body := errorResponse{Message: err.Error()}

	var genErr *domain.GenerationError
	switch {
	case domain.IsValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrAlreadySubmitted), errors.Is(err, domain.ErrDuplicateAnswer):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrSubmissionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNotCreator):
		status = http.StatusForbidden
	case errors.As(err, &genErr):
		status = http.StatusBadGateway
		body.Raw = genErr.Raw
	default:
		a.log.WithError(err).Error("request failed")
		body.Message = "internal error"
	}

	render.Status(r, status)
	render.JSON(w, r, body)
}

func toCreateInput(req createQuizRequest, withAI bool) app.CreateQuizInput {
	in := app.CreateQuizInput{
		Title:            req.Title,
		Creator:          req.CreatorID,
		TimingMode:       domain.TimingMode(req.TimingMode),
		TimeLimitMinutes: req.TimeLimit,
		AllowBack:        req.AllowBack,
		ShowResult:       req.ShowResult,
		CreatedWithAI:    req.CreatedWithAI || withAI,
	}
	for _, q := range req.Questions {
		in.Questions = append(in.Questions, app.QuestionInput{
			Text:         q.Text,
			Options:      q.Options,
			CorrectIndex: q.CorrectIndex,
			QuestionTime: q.QuestionTime,
		})
	}
	return in
}
