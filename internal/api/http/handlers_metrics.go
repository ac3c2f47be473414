package http

import (
	"errors"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/capabilities/generation"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/infrastructure/monitoring"
)

// HandlerMetrics records per-operation timings of the services handlers call
type HandlerMetrics struct {
	metrics *monitoring.Metrics
}

// NewHandlerMetrics creates a metrics wrapper; nil metrics records nothing
func NewHandlerMetrics(metrics *monitoring.Metrics) *HandlerMetrics {
	return &HandlerMetrics{metrics: metrics}
}

// Track starts timing an operation. The returned func records its outcome.
func (hm *HandlerMetrics) Track(component, op string) func(err error) {
	timer := monitoring.NewTimer(hm.metrics, component, op)
	return func(err error) {
		if err == nil {
			timer.Stop("success")
			return
		}
		timer.Stop("error")
		if hm.metrics != nil {
			hm.metrics.RecordCallError(component, op, errorKind(err))
		}
	}
}

// TrackNotes tracks a notes graph operation
func (hm *HandlerMetrics) TrackNotes(operation string) func(err error) {
	return hm.Track("notes", operation)
}

// TrackStudy tracks a study assistant operation
func (hm *HandlerMetrics) TrackStudy(operation string) func(err error) {
	return hm.Track("study", operation)
}

// TrackAuth tracks a sign-in operation
func (hm *HandlerMetrics) TrackAuth(operation string) func(err error) {
	return hm.Track("auth", operation)
}

func errorKind(err error) string {
	switch code := statusOf(err); {
	case errors.Is(err, generation.ErrUnavailable):
		return "unavailable"
	case code == 404:
		return "not_found"
	case code == 400:
		return "invalid"
	case code == 401, code == 409:
		return "auth"
	}
	return "internal"
}
