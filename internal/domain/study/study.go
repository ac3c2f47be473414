// Package study builds quizzes, summaries and chat replies from notes using
// the content-generation capability. Generation never fails a request:
// errors and empty answers become an empty result with an inline Status.
package study

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/capabilities/generation"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/id"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

const (
	DefaultQuestions = 5
	MaxQuestions     = 20
	// MaxSourceChars bounds the page text sent to the provider
	MaxSourceChars = 12000

	UnavailableMessage = "configure your key in Settings"
)

// State is the outcome of a generation call
type State string

const (
	StateReady       State = "ready"
	StateEmpty       State = "empty"
	StateError       State = "error"
	StateUnavailable State = "unavailable"
)

// Status is shown inline in the panel
type Status struct {
	State   State  `json:"state"`
	Message string `json:"message,omitempty"`
}

// Question is one multiple-choice question
type Question struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Answer      int      `json:"answer"`
	Explanation string   `json:"explanation,omitempty"`
}

// Quiz is a generated quiz over a page
type Quiz struct {
	PageID    id.PageID  `json:"page_id"`
	Questions []Question `json:"questions"`
	Status    Status     `json:"status"`
}

// Summary is a generated page summary
type Summary struct {
	PageID    id.PageID `json:"page_id"`
	Text      string    `json:"text"`
	KeyPoints []string  `json:"key_points"`
	Status    Status    `json:"status"`
}

// Reply is a chat answer
type Reply struct {
	Text   string `json:"text"`
	Status Status `json:"status"`
}

// PageSource flattens a page to text
type PageSource interface {
	PlainText(ownerID string, pageID id.PageID) (string, error)
}

// Assistant runs study generations
type Assistant struct {
	gen    generation.Generator
	pages  PageSource
	logger *zap.Logger
}

// New creates an assistant
func New(gen generation.Generator, pages PageSource, logger *zap.Logger) *Assistant {
	if gen == nil {
		gen = generation.Disabled{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assistant{gen: gen, pages: pages, logger: logger.Named("study")}
}

// Available reports whether a provider is configured
func (a *Assistant) Available() bool {
	_, disabled := a.gen.(generation.Disabled)
	return !disabled
}

const quizSystem = `You write multiple-choice quizzes for students. Answer with JSON only:
{"questions":[{"question":"...","options":["...","...","...","..."],"answer":0,"explanation":"..."}]}
"answer" is the zero-based index of the correct option.`

// GenerateQuiz builds a quiz over a page. Only an unknown page is an error.
func (a *Assistant) GenerateQuiz(ctx context.Context, ownerID string, pageID id.PageID, n int) (Quiz, error) {
	if n <= 0 {
		n = DefaultQuestions
	}
	if n > MaxQuestions {
		n = MaxQuestions
	}
	quiz := Quiz{PageID: pageID, Questions: []Question{}}

	text, err := a.pages.PlainText(ownerID, pageID)
	if err != nil {
		return quiz, err
	}

	raw, status := a.generate(ctx, generation.Request{
		System:      quizSystem,
		Prompt:      fmt.Sprintf("Write %d questions about these notes:\n\n%s", n, truncate(text)),
		JSON:        true,
		Temperature: 0.4,
	})
	quiz.Status = status
	if status.State != StateReady {
		return quiz, nil
	}

	var out struct {
		Questions []Question `json:"questions"`
	}
	if err := sonic.UnmarshalString(stripFences(raw), &out); err != nil {
		a.logger.Warn("malformed quiz", zap.Error(err))
		quiz.Status = Status{State: StateError, Message: "the quiz could not be read, try again"}
		return quiz, nil
	}
	for _, q := range out.Questions {
		if valid(q) {
			quiz.Questions = append(quiz.Questions, q)
		}
		if len(quiz.Questions) == n {
			break
		}
	}
	if len(quiz.Questions) == 0 {
		quiz.Status = Status{State: StateEmpty, Message: "no questions could be generated from this page"}
	}
	return quiz, nil
}

func valid(q Question) bool {
	return strings.TrimSpace(q.Question) != "" &&
		len(q.Options) >= 2 &&
		q.Answer >= 0 && q.Answer < len(q.Options)
}

const summarySystem = `You summarise study notes. Answer with JSON only:
{"summary":"...","key_points":["...","..."]}`

// Summarize summarises a page. Only an unknown page is an error.
func (a *Assistant) Summarize(ctx context.Context, ownerID string, pageID id.PageID) (Summary, error) {
	sum := Summary{PageID: pageID, KeyPoints: []string{}}

	text, err := a.pages.PlainText(ownerID, pageID)
	if err != nil {
		return sum, err
	}

	raw, status := a.generate(ctx, generation.Request{
		System:      summarySystem,
		Prompt:      "Summarise these notes:\n\n" + truncate(text),
		JSON:        true,
		Temperature: 0.2,
	})
	sum.Status = status
	if status.State != StateReady {
		return sum, nil
	}

	var out struct {
		Summary   string   `json:"summary"`
		KeyPoints []string `json:"key_points"`
	}
	if err := sonic.UnmarshalString(stripFences(raw), &out); err != nil {
		// plain prose is still a usable summary
		sum.Text = strings.TrimSpace(raw)
		return sum, nil
	}
	sum.Text = strings.TrimSpace(out.Summary)
	if out.KeyPoints != nil {
		sum.KeyPoints = out.KeyPoints
	}
	if sum.Text == "" && len(sum.KeyPoints) == 0 {
		sum.Status = Status{State: StateEmpty, Message: "nothing to summarise yet"}
	}
	return sum, nil
}

const chatSystem = "You are a friendly study tutor. Keep answers short and accurate."

// Chat answers a free-form question
func (a *Assistant) Chat(ctx context.Context, message string) Reply {
	raw, status := a.generate(ctx, generation.Request{
		System:      chatSystem,
		Prompt:      message,
		Temperature: 0.7,
	})
	return Reply{Text: strings.TrimSpace(raw), Status: status}
}

// generate maps capability failures to an inline status
func (a *Assistant) generate(ctx context.Context, req generation.Request) (string, Status) {
	out, err := a.gen.Generate(ctx, req)
	switch {
	case err == nil:
		return out, Status{State: StateReady}
	case errors.Is(err, generation.ErrUnavailable):
		return "", Status{State: StateUnavailable, Message: UnavailableMessage}
	case errors.Is(err, generation.ErrEmpty):
		return "", Status{State: StateEmpty, Message: "the assistant had nothing to say, try again"}
	default:
		a.logger.Warn("generation failed", zap.String("provider", a.gen.Name()), zap.Error(err))
		return "", Status{State: StateError, Message: "the assistant is unavailable right now"}
	}
}

func truncate(s string) string {
	if len(s) <= MaxSourceChars {
		return s
	}
	cut := s[:MaxSourceChars]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}

// stripFences removes a markdown code fence around a JSON answer
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
