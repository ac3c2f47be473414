package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests")
)

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

var stateNames = [...]string{"closed", "half-open", "open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Settings tune a breaker. Zero values take the defaults applied by New.
type Settings struct {
	// MaxRequests is how many probes a half-open breaker admits, and how
	// many must succeed in a row to close it again. Default 1.
	MaxRequests uint32
	// Interval clears the counts of a closed breaker. Default 60s.
	Interval time.Duration
	// Timeout is how long the breaker stays open. Default 60s.
	Timeout time.Duration
	// ReadyToTrip decides after each failure while closed. Default: more
	// than five failures in a row.
	ReadyToTrip func(Counts) bool
	// IsSuccessful classifies a result. By default nil and
	// context.Canceled succeed, so a renderer hanging up never trips it.
	IsSuccessful  func(error) bool
	OnStateChange func(name string, from, to State)
	Now           func() time.Time
}

// Counts are reset on every state change and interval rollover
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

func (c *Counts) success() {
	c.TotalSuccesses++
	c.ConsecutiveSuccesses++
	c.ConsecutiveFailures = 0
}

func (c *Counts) failure() {
	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}

// Breaker guards a dependency that may be down, such as the remote record
// store or a generation provider
type Breaker struct {
	name string
	cfg  Settings

	mu     sync.Mutex
	state  State
	epoch  uint64 // bumped whenever counts reset
	counts Counts
	// until is when the current closed interval or open period ends
	until time.Time
}

func New(name string, cfg Settings) *Breaker {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Interval == 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Minute
	}
	if cfg.ReadyToTrip == nil {
		cfg.ReadyToTrip = func(c Counts) bool { return c.ConsecutiveFailures > 5 }
	}
	if cfg.IsSuccessful == nil {
		cfg.IsSuccessful = func(err error) bool { return err == nil || errors.Is(err, context.Canceled) }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{name: name, cfg: cfg, until: cfg.Now().Add(cfg.Interval)}
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.advance(b.cfg.Now())
}

// Available reports whether Do would currently run a request
func (b *Breaker) Available() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.admits(b.advance(b.cfg.Now())) == nil
}

func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Snapshot is what health endpoints report for a breaker
type Snapshot struct {
	Name      string `json:"name"`
	State     string `json:"state"`
	Available bool   `json:"available"`
	Requests  uint32 `json:"requests"`
	Failures  uint32 `json:"consecutive_failures"`
	// RetryAt is set while open: the moment a probe is let through
	RetryAt *time.Time `json:"retry_at,omitempty"`
}

func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.advance(b.cfg.Now())
	snap := Snapshot{
		Name:      b.name,
		State:     state.String(),
		Available: b.admits(state) == nil,
		Requests:  b.counts.Requests,
		Failures:  b.counts.ConsecutiveFailures,
	}
	if state == StateOpen {
		retry := b.until
		snap.RetryAt = &retry
	}
	return snap
}

// Do runs req unless the breaker rejects it. A done context returns its
// error without counting as a request. A panic in req counts as a failure
// and is re-raised.
func (b *Breaker) Do(ctx context.Context, req func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	epoch, err := b.admit()
	if err != nil {
		return err
	}

	settled := false
	defer func() {
		if !settled {
			b.settle(epoch, false)
		}
	}()
	err = req(ctx)
	settled = true
	b.settle(epoch, b.cfg.IsSuccessful(err))
	return err
}

// Call is Do for requests that produce a value
func Call[T any](ctx context.Context, b *Breaker, req func(context.Context) (T, error)) (T, error) {
	var out T
	err := b.Do(ctx, func(ctx context.Context) error {
		v, err := req(ctx)
		if err == nil {
			out = v
		}
		return err
	})
	return out, err
}

func (b *Breaker) admits(state State) error {
	switch {
	case state == StateOpen:
		return ErrCircuitOpen
	case state == StateHalfOpen && b.counts.Requests >= b.cfg.MaxRequests:
		return ErrTooManyRequests
	}
	return nil
}

func (b *Breaker) admit() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.admits(b.advance(b.cfg.Now())); err != nil {
		return b.epoch, err
	}
	b.counts.Requests++
	return b.epoch, nil
}

// settle records a result. Results from an earlier epoch are dropped.
func (b *Breaker) settle(epoch uint64, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.cfg.Now()
	state := b.advance(now)
	if epoch != b.epoch {
		return
	}

	switch {
	case ok:
		b.counts.success()
		if state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.cfg.MaxRequests {
			b.moveTo(StateClosed, now)
		}
	case state == StateHalfOpen:
		b.moveTo(StateOpen, now)
	case state == StateClosed:
		b.counts.failure()
		if b.cfg.ReadyToTrip(b.counts) {
			b.moveTo(StateOpen, now)
		}
	}
}

// advance applies the transitions that only depend on time
func (b *Breaker) advance(now time.Time) State {
	switch {
	case b.state == StateClosed && !b.until.IsZero() && now.After(b.until):
		b.reset(now)
	case b.state == StateOpen && now.After(b.until):
		b.moveTo(StateHalfOpen, now)
	}
	return b.state
}

func (b *Breaker) moveTo(to State, now time.Time) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.reset(now)
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, to)
	}
}

func (b *Breaker) reset(now time.Time) {
	b.epoch++
	b.counts = Counts{}
	switch b.state {
	case StateClosed:
		b.until = now.Add(b.cfg.Interval)
	case StateOpen:
		b.until = now.Add(b.cfg.Timeout)
	default:
		b.until = time.Time{}
	}
}
