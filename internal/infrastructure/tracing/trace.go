package tracing

import (
	"context"
	"sync"
	"time"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/id"
	"go.uber.org/zap"
)

type (
	TraceID string
	SpanID  string
)

// maxIncomingID bounds ids accepted from the renderer
const maxIncomingID = 64

// Span is one traced operation: an API request or a health RPC
type Span struct {
	TraceID  TraceID
	SpanID   SpanID
	ParentID SpanID
	Name     string
	Started  time.Time
	Elapsed  time.Duration
	Status   int
	Err      error
	Attrs    map[string]string
}

// Attr annotates the span
func (s *Span) Attr(key, value string) {
	if value == "" {
		return
	}
	if s.Attrs == nil {
		s.Attrs = make(map[string]string, 4)
	}
	s.Attrs[key] = value
}

// End records the outcome. A non-nil err with a non-failure status is
// reported as 500.
func (s *Span) End(status int, err error) {
	s.Elapsed = time.Since(s.Started)
	s.Status = status
	s.Err = err
	if err != nil && status < 500 {
		s.Status = 500
	}
}

// Failed reports whether the span should be logged as a failure
func (s *Span) Failed() bool {
	return s.Err != nil || s.Status >= 500
}

// Tracer logs finished spans from a single collector goroutine
type Tracer struct {
	service string
	logger  *zap.Logger
	queue   chan *Span
	stopped chan struct{}
	close   sync.Once
}

// New starts a tracer; Close must be called to flush it
func New(service string, logger *zap.Logger) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracer{
		service: service,
		logger:  logger.With(zap.String("service", service)),
		queue:   make(chan *Span, 1024),
		stopped: make(chan struct{}),
	}
	go t.collect()
	return t
}

// Start opens a span below whatever span ctx carries
func (t *Tracer) Start(ctx context.Context, name string) (*Span, context.Context) {
	trace := TraceIDFrom(ctx)
	if trace == "" {
		trace = TraceID(id.NewRequestID())
	}
	span := &Span{
		TraceID:  trace,
		SpanID:   SpanID(id.NewRequestID()),
		ParentID: SpanIDFrom(ctx),
		Name:     name,
		Started:  time.Now(),
	}
	return span, context.WithValue(context.WithValue(ctx, traceKey{}, trace), spanKey{}, span.SpanID)
}

// Finish hands an ended span to the collector. Spans are dropped when the
// queue is full.
func (t *Tracer) Finish(span *Span) {
	select {
	case t.queue <- span:
	default:
		t.logger.Warn("trace queue full, span dropped",
			zap.String("trace_id", string(span.TraceID)),
			zap.String("op", span.Name))
	}
}

// Close flushes queued spans; it is safe to call more than once
func (t *Tracer) Close() {
	t.close.Do(func() {
		close(t.queue)
		<-t.stopped
	})
}

func (t *Tracer) collect() {
	defer close(t.stopped)
	for span := range t.queue {
		fields := []zap.Field{
			zap.String("trace_id", string(span.TraceID)),
			zap.String("span_id", string(span.SpanID)),
			zap.String("op", span.Name),
			zap.Int("status", span.Status),
			zap.Duration("elapsed", span.Elapsed),
		}
		if span.ParentID != "" {
			fields = append(fields, zap.String("parent_id", string(span.ParentID)))
		}
		for k, v := range span.Attrs {
			fields = append(fields, zap.String(k, v))
		}
		if span.Failed() {
			t.logger.Warn("span failed", append(fields, zap.Error(span.Err))...)
			continue
		}
		t.logger.Debug("span completed", fields...)
	}
}

type (
	traceKey struct{}
	spanKey  struct{}
)

// Continue returns ctx carrying an incoming trace. Ids that are too long or
// contain anything but letters, digits, '-' and '_' are ignored.
func Continue(ctx context.Context, trace, parent string) context.Context {
	if acceptable(trace) {
		ctx = context.WithValue(ctx, traceKey{}, TraceID(trace))
		if acceptable(parent) {
			ctx = context.WithValue(ctx, spanKey{}, SpanID(parent))
		}
	}
	return ctx
}

func acceptable(s string) bool {
	if s == "" || len(s) > maxIncomingID {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

func TraceIDFrom(ctx context.Context) TraceID {
	v, _ := ctx.Value(traceKey{}).(TraceID)
	return v
}

func SpanIDFrom(ctx context.Context) SpanID {
	v, _ := ctx.Value(spanKey{}).(SpanID)
	return v
}

// Logger tags base with the trace of ctx, if any
func Logger(ctx context.Context, base *zap.Logger) *zap.Logger {
	if trace := TraceIDFrom(ctx); trace != "" {
		return base.With(zap.String("trace_id", string(trace)))
	}
	return base
}
