package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/MevanWeerasinghe/quiz-app/internal/domain"
)

// DraftRequest describes the quiz the creator wants generated.
type DraftRequest struct {
	Topic        string
	NumQuestions int
	NumOptions   int
	Instructions string
}

// Client calls a Gemini-style generateContent endpoint and turns the model's
// text output into question drafts. The model is non-deterministic and often
// wraps JSON in markdown fences, so the response is cleaned before parsing;
// anything that still fails to parse is surfaced as a GenerationError with
// the raw text preserved.
type Client struct {
	http    *resty.Client
	baseURL string
	apiKey  string
}

// DefaultBaseURL targets the hosted Gemini flash model.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent"

func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    resty.New().SetTimeout(30 * time.Second),
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// GenerateDraft asks the model for candidate questions. The drafts are meant
// to be reviewed by the creator before being persisted.
func (c *Client) GenerateDraft(ctx context.Context, req DraftRequest) ([]domain.QuestionDraft, error) {
	prompt := buildPrompt(req)

	var out generateResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("key", c.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(generateRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}}).
		SetResult(&out).
		Post(c.baseURL)
	if err != nil {
		return nil, &domain.GenerationError{Msg: "generation request failed", Err: err}
	}
	if resp.IsError() {
		return nil, &domain.GenerationError{
			Msg: fmt.Sprintf("generation upstream returned %s", resp.Status()),
			Raw: string(resp.Body()),
		}
	}

	text := firstCandidateText(out)
	if text == "" {
		return nil, &domain.GenerationError{Msg: "generation returned no content", Raw: string(resp.Body())}
	}

	drafts, err := ParseDrafts(text)
	if err != nil {
		return nil, err
	}
	return drafts, nil
}

// ParseDrafts cleans model output and parses it into question drafts.
// Exported so transports can reuse it when re-validating stored raw output.
func ParseDrafts(text string) ([]domain.QuestionDraft, error) {
	cleaned := stripFences(text)
	var drafts []domain.QuestionDraft
	if err := json.Unmarshal([]byte(cleaned), &drafts); err != nil {
		return nil, &domain.GenerationError{Msg: "could not parse generated quiz", Raw: text, Err: err}
	}
	if len(drafts) == 0 {
		return nil, &domain.GenerationError{Msg: "generated quiz is empty", Raw: text}
	}
	return drafts, nil
}

func buildPrompt(req DraftRequest) string {
	instructions := req.Instructions
	if instructions == "" {
		instructions = "Use general knowledge. Keep questions clear."
	}
	return fmt.Sprintf(`Generate a multiple-choice quiz on the topic: %q.
- Include %d questions.
- Each question should have %d answer options.
- Format the output as JSON like this:

[
  {
    "text": "What is the capital of France?",
    "options": ["Paris", "London", "Rome", "Berlin"],
    "correctIndex": 0
  },
  ...
]

Instructions: %s
`, req.Topic, req.NumQuestions, req.NumOptions, instructions)
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag, and trims to the outermost JSON array as a fallback.
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	if !strings.HasPrefix(s, "[") {
		start := strings.Index(s, "[")
		end := strings.LastIndex(s, "]")
		if start >= 0 && end > start {
			s = s[start : end+1]
		}
	}
	return s
}

func firstCandidateText(resp generateResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	parts := resp.Candidates[0].Content.Parts
	if len(parts) == 0 {
		return ""
	}
	return parts[0].Text
}
