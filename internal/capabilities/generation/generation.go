package generation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/infrastructure/resilience"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrUnavailable means no provider is configured
	ErrUnavailable = errors.New("content generation unavailable: no API key configured")
	// ErrEmpty means the provider answered without content
	ErrEmpty = errors.New("content generation returned no content")
)

// Request is one generation call
type Request struct {
	System      string
	Prompt      string
	JSON        bool
	MaxTokens   int
	Temperature float32
}

// Generator produces text from a prompt
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
}

// Config selects and tunes a provider
type Config struct {
	Provider   string        `envconfig:"PROVIDER" default:"gemini"`
	APIKey     string        `envconfig:"API_KEY"`
	Model      string        `envconfig:"MODEL"`
	BaseURL    string        `envconfig:"BASE_URL"`
	Timeout    time.Duration `envconfig:"TIMEOUT" default:"30s"`
	RateLimit  float64       `envconfig:"RATE_LIMIT" default:"2"`
	MaxRetries int           `envconfig:"MAX_RETRIES" default:"3"`
	RetryWait  time.Duration `envconfig:"RETRY_WAIT" default:"1s"`
}

// New returns the configured provider, or Disabled without an API key
func New(cfg Config, logger *zap.Logger, metrics *monitoring.Metrics) Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		logger.Info("content generation disabled: no API key")
		return Disabled{}
	}
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAI(cfg, logger, metrics)
	default:
		return NewGemini(cfg, logger, metrics)
	}
}

// Disabled is the generator used without credentials
type Disabled struct{}

func (Disabled) Generate(context.Context, Request) (string, error) { return "", ErrUnavailable }
func (Disabled) Name() string                                     { return "disabled" }

// guard is the limiter and breaker shared by providers
type guard struct {
	name    string
	limiter *rate.Limiter
	breaker *resilience.Breaker
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

func newGuard(name string, rps float64, logger *zap.Logger, metrics *monitoring.Metrics) guard {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}

	breaker := resilience.New("generation-"+name, resilience.Settings{
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5 ||
				(counts.Requests >= 20 && float64(counts.TotalFailures)/float64(counts.Requests) > 0.6)
		},
		OnStateChange: func(n string, from, to resilience.State) {
			logger.Warn("breaker state changed",
				zap.String("breaker", n),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			if metrics != nil {
				metrics.SetBreakerState(n, int(to))
			}
		},
	})

	return guard{
		name:    name,
		limiter: limiter,
		breaker: breaker,
		logger:  logger.Named("generation").With(zap.String("provider", name)),
		metrics: metrics,
	}
}

// run waits for the limiter and calls fn through the breaker
func (g guard) run(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	timer := monitoring.NewTimer(g.metrics, "generation", g.name)

	if err := g.limiter.Wait(ctx); err != nil {
		timer.Stop("rate_limited")
		return "", err
	}

	out, err := resilience.Call(ctx, g.breaker, fn)
	switch {
	case err != nil:
		timer.Stop("error")
		if g.metrics != nil {
			g.metrics.RecordCallError("generation", g.name, errorType(err))
		}
		g.logger.Warn("generation failed", zap.Error(err))
		return "", err
	case strings.TrimSpace(out) == "":
		timer.Stop("empty")
		return "", ErrEmpty
	}
	timer.Stop("ok")
	return out, nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "provider"
	}
}
