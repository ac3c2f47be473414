package timer

import (
	"context"
	"time"
)

// Source delivers ticks
type Source interface {
	C() <-chan time.Time
	Stop()
}

type intervalSource struct {
	ticker *time.Ticker
}

// NewIntervalSource ticks every d. Ticks the consumer is too slow to
// receive are dropped.
func NewIntervalSource(d time.Duration) Source {
	return &intervalSource{ticker: time.NewTicker(d)}
}

func (s *intervalSource) C() <-chan time.Time { return s.ticker.C }
func (s *intervalSource) Stop()               { s.ticker.Stop() }

// ManualSource is a Source fired by hand
type ManualSource struct {
	ch chan time.Time
}

// NewManualSource creates a manual source with the given buffer
func NewManualSource(buffer int) *ManualSource {
	return &ManualSource{ch: make(chan time.Time, buffer)}
}

// Fire delivers one tick, blocking until it is buffered or received
func (s *ManualSource) Fire() {
	s.ch <- time.Now()
}

func (s *ManualSource) C() <-chan time.Time { return s.ch }
func (s *ManualSource) Stop()               {}

// Drive calls fn once per tick until ctx is done or the source closes.
// It stops the source on return.
func Drive(ctx context.Context, src Source, fn func(time.Time)) error {
	defer src.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ts, ok := <-src.C():
			if !ok {
				return nil
			}
			fn(ts)
		}
	}
}
