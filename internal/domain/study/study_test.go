package study

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/capabilities/generation"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var errPageNotFound = errors.New("page not found")

type fakePages map[id.PageID]string

func (f fakePages) PlainText(_ string, pageID id.PageID) (string, error) {
	text, ok := f[pageID]
	if !ok {
		return "", errPageNotFound
	}
	return text, nil
}

type fakeGen struct {
	out  string
	err  error
	last generation.Request
}

func (f *fakeGen) Generate(_ context.Context, req generation.Request) (string, error) {
	f.last = req
	return f.out, f.err
}

func (f *fakeGen) Name() string { return "fake" }

var pages = fakePages{"pg_bio": "Cells\nThe mitochondria produces ATP."}

func TestGenerateQuiz(t *testing.T) {
	gen := &fakeGen{out: "```json\n" + `{"questions":[
		{"question":"What produces ATP?","options":["Nucleus","Mitochondria"],"answer":1},
		{"question":"","options":["a","b"],"answer":0},
		{"question":"Bad index","options":["a","b"],"answer":5},
		{"question":"What is a cell?","options":["Unit of life","A battery","A virus"],"answer":0}
	]}` + "\n```"}
	a := New(gen, pages, zaptest.NewLogger(t))

	quiz, err := a.GenerateQuiz(context.Background(), "usr_1", "pg_bio", 3)
	require.NoError(t, err)
	assert.Equal(t, StateReady, quiz.Status.State)
	require.Len(t, quiz.Questions, 2, "invalid questions are dropped")
	assert.Equal(t, "What produces ATP?", quiz.Questions[0].Question)
	assert.True(t, gen.last.JSON)
	assert.Contains(t, gen.last.Prompt, "Write 3 questions")
	assert.Contains(t, gen.last.Prompt, "mitochondria")
}

func TestQuizFallbacks(t *testing.T) {
	tests := []struct {
		name  string
		gen   generation.Generator
		state State
		msg   string
	}{
		{"no key", generation.Disabled{}, StateUnavailable, UnavailableMessage},
		{"provider error", &fakeGen{err: errors.New("boom")}, StateError, ""},
		{"empty answer", &fakeGen{err: generation.ErrEmpty}, StateEmpty, ""},
		{"malformed json", &fakeGen{out: "not json"}, StateError, ""},
		{"no usable questions", &fakeGen{out: `{"questions":[]}`}, StateEmpty, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(tt.gen, pages, zaptest.NewLogger(t))
			quiz, err := a.GenerateQuiz(context.Background(), "usr_1", "pg_bio", 0)
			require.NoError(t, err)
			assert.Equal(t, tt.state, quiz.Status.State)
			assert.NotNil(t, quiz.Questions)
			assert.Empty(t, quiz.Questions)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, quiz.Status.Message)
			}
		})
	}
}

func TestQuizUnknownPage(t *testing.T) {
	a := New(&fakeGen{}, pages, zaptest.NewLogger(t))
	_, err := a.GenerateQuiz(context.Background(), "usr_1", "pg_missing", 5)
	assert.ErrorIs(t, err, errPageNotFound)
}

func TestSummarize(t *testing.T) {
	a := New(&fakeGen{out: `{"summary":"Cells make energy.","key_points":["ATP","Mitochondria"]}`}, pages, zaptest.NewLogger(t))
	sum, err := a.Summarize(context.Background(), "usr_1", "pg_bio")
	require.NoError(t, err)
	assert.Equal(t, StateReady, sum.Status.State)
	assert.Equal(t, "Cells make energy.", sum.Text)
	assert.Equal(t, []string{"ATP", "Mitochondria"}, sum.KeyPoints)

	a = New(&fakeGen{out: "Cells make energy via ATP."}, pages, zaptest.NewLogger(t))
	sum, err = a.Summarize(context.Background(), "usr_1", "pg_bio")
	require.NoError(t, err)
	assert.Equal(t, "Cells make energy via ATP.", sum.Text, "prose answers are kept")
	assert.Empty(t, sum.KeyPoints)
}

func TestChat(t *testing.T) {
	a := New(&fakeGen{out: "  ATP is energy.  "}, pages, zaptest.NewLogger(t))
	reply := a.Chat(context.Background(), "what is ATP?")
	assert.Equal(t, "ATP is energy.", reply.Text)
	assert.Equal(t, StateReady, reply.Status.State)
	assert.True(t, a.Available())

	a = New(nil, pages, zaptest.NewLogger(t))
	reply = a.Chat(context.Background(), "hello")
	assert.Equal(t, StateUnavailable, reply.Status.State)
	assert.Equal(t, UnavailableMessage, reply.Status.Message)
	assert.False(t, a.Available())
}

func TestTruncateKeepsRunes(t *testing.T) {
	s := strings.Repeat("é", MaxSourceChars)
	out := truncate(s)
	assert.LessOrEqual(t, len(out), MaxSourceChars)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, "short", truncate("short"))
}
