package logging

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "chatty"})
	require.Error(t, err)
}

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level string
		dev   bool
		want  zapcore.Level
	}{
		{"debug", true, zapcore.DebugLevel},
		{"info", false, zapcore.InfoLevel},
		{"warn", false, zapcore.WarnLevel},
		{"error", true, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, err := New(Config{Level: tt.level, Development: tt.dev, Output: "stderr", Sample: true})
			require.NoError(t, err)
			assert.Equal(t, tt.want, l.Level())
		})
	}
}

func TestSetLevel(t *testing.T) {
	l, err := New(Config{Level: "info", Output: "stderr"})
	require.NoError(t, err)

	require.NoError(t, l.SetLevel("debug"))
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
	assert.Error(t, l.SetLevel("loud"))
	assert.Equal(t, zapcore.DebugLevel, l.Level())
}

func TestLevelHandler(t *testing.T) {
	l, err := New(Config{Level: "info", Output: "stderr"})
	require.NoError(t, err)
	h := l.LevelHandler()

	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"level":"warn"}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, zapcore.WarnLevel, l.Level())

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, w.Body.String(), "warn")
}

func TestRendererLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, RendererLevel("verbose"))
	assert.Equal(t, zapcore.WarnLevel, RendererLevel("WARNING"))
	assert.Equal(t, zapcore.ErrorLevel, RendererLevel("fatal"))
	assert.Equal(t, zapcore.InfoLevel, RendererLevel("log"))
}

func TestNop(t *testing.T) {
	l := NewNop()
	assert.NotPanics(t, func() {
		l.Named("gateway").Info("discarded")
	})
}
