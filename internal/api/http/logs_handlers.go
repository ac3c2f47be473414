package http

import (
	"net/http"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/api/middleware"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/infrastructure/tracing"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MaxLogEntries caps one batch of renderer logs; the rest are dropped
const MaxLogEntries = 100

// RendererLog is one log line produced by the renderer
type RendererLog struct {
	ID      string         `json:"id"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Panel   string         `json:"panel,omitempty"`
	Context map[string]any `json:"context,omitempty"`
	// Timestamp is the renderer clock, passed through as-is
	Timestamp string `json:"timestamp"`
}

// RendererLogBatch is the body of POST /logs
type RendererLogBatch struct {
	Source  string        `json:"source"`
	Entries []RendererLog `json:"entries"`
}

// StreamLogs writes renderer log lines into the server log under the "ui"
// logger, tagged with the user and the request trace
func (h *Handlers) StreamLogs(c *gin.Context) {
	var batch RendererLogBatch
	switch err := c.ShouldBindJSON(&batch); {
	case err != nil:
		badRequest(c, "invalid log batch")
		return
	case batch.Source != "ui":
		badRequest(c, "log source must be ui")
		return
	case len(batch.Entries) == 0:
		badRequest(c, "no log entries")
		return
	}

	dropped := max(0, len(batch.Entries)-MaxLogEntries)
	batch.Entries = batch.Entries[:len(batch.Entries)-dropped]

	logger := tracing.Logger(c.Request.Context(), h.logger.Named("ui")).
		With(zap.String("user", c.GetString(middleware.UserIDKey)))
	for _, entry := range batch.Entries {
		ce := logger.Check(logging.RendererLevel(entry.Level), entry.Message)
		if ce == nil {
			continue
		}
		ce.Write(rendererFields(entry)...)
	}

	c.JSON(http.StatusOK, gin.H{"accepted": len(batch.Entries), "dropped": dropped})
}

func rendererFields(entry RendererLog) []zap.Field {
	fields := []zap.Field{zap.String("ui_id", entry.ID), zap.String("ui_time", entry.Timestamp)}
	if entry.Panel != "" {
		fields = append(fields, zap.String("panel", entry.Panel))
	}
	for key, value := range entry.Context {
		fields = append(fields, zap.Any("ui."+key, value))
	}
	return fields
}
