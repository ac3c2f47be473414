package logging

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Service is attached to every entry
const Service = "studydesk"

// Logger is the process logger. Its level can be changed while running.
type Logger struct {
	*zap.Logger
	level zap.AtomicLevel
}

// Config selects level, encoding and destination
type Config struct {
	Level       string
	Development bool
	// Output is "stdout", "stderr" or a file path
	Output string
	// Sample drops repeated entries in production: the first 100 of each
	// message per second are kept, then one in 100
	Sample bool
}

// New builds the logger. Development mode logs colored console lines with
// stack traces on warnings; production logs JSON.
func New(cfg Config) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}

	atom := zap.NewAtomicLevelAt(level)
	zc := zap.Config{
		Level:             atom,
		Development:       cfg.Development,
		Encoding:          "json",
		EncoderConfig:     productionEncoder(),
		OutputPaths:       []string{cfg.Output},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: !cfg.Development,
	}
	if cfg.Development {
		zc.Encoding = "console"
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else if cfg.Sample {
		zc.Sampling = &zap.SamplingConfig{Initial: 100, Thereafter: 100}
	}

	z, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return &Logger{Logger: z.With(zap.String("service", Service)), level: atom}, nil
}

// NewDefault returns an info-level JSON logger on stdout, or a no-op logger
// if even that cannot be built
func NewDefault() *Logger {
	l, err := New(Config{Level: "info"})
	if err != nil {
		return NewNop()
	}
	return l
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop(), level: zap.NewAtomicLevel()}
}

// Level returns the current level
func (l *Logger) Level() zapcore.Level {
	return l.level.Level()
}

// SetLevel changes the level at runtime
func (l *Logger) SetLevel(level string) error {
	lv, err := ParseLevel(level)
	if err != nil {
		return err
	}
	l.level.SetLevel(lv)
	return nil
}

// LevelHandler serves the level as JSON on GET and changes it on PUT
func (l *Logger) LevelHandler() http.Handler {
	return l.level
}

// ParseLevel parses a zap level name
func ParseLevel(level string) (zapcore.Level, error) {
	var lv zapcore.Level
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("parse log level %q: %w", level, err)
	}
	return lv, nil
}

// RendererLevel maps a browser console level to a zap level. Renderer
// entries never go above error; unknown levels are info.
func RendererLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug", "verbose", "trace":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error", "fatal", "critical":
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}

func productionEncoder() zapcore.EncoderConfig {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.MessageKey = "message"
	enc.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339Nano)
	enc.EncodeDuration = zapcore.MillisDurationEncoder
	return enc
}
