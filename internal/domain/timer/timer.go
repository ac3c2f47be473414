package timer

import (
	"errors"
	"fmt"
	"time"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/types"
)

var (
	ErrInvalidMode     = errors.New("invalid session mode")
	ErrInvalidDuration = errors.New("session duration must be positive")
)

const (
	DefaultFocusSeconds = 25 * 60
	DefaultBreakSeconds = 5 * 60
)

// Locker is the focus-lock controller driven by the timer
type Locker interface {
	Lock(lockPanel, companion types.PanelType) bool
	Unlock() bool
	IsLocked() bool
}

// XPPolicy is the experience awarded per completed session
type XPPolicy struct {
	Focus int
	Break int
}

// DefaultXPPolicy rewards focus sessions more than breaks
func DefaultXPPolicy() XPPolicy {
	return XPPolicy{Focus: 50, Break: 10}
}

func (p XPPolicy) award(mode types.SessionMode) int {
	if mode == types.ModeFocus {
		return p.Focus
	}
	return p.Break
}

// StartOptions controls focus lock on start. An empty LockPanel uses the focus panel.
type StartOptions struct {
	Lock      bool
	LockPanel types.PanelType
	Companion types.PanelType
}

// Timer is a single per-workspace countdown. Not safe for concurrent use.
type Timer struct {
	session       types.FocusSession
	locker        Locker
	xp            XPPolicy
	lockedByTimer bool
	now           func() time.Time
}

// Option configures a Timer
type Option func(*Timer)

// WithXPPolicy overrides the XP awards
func WithXPPolicy(p XPPolicy) Option {
	return func(t *Timer) {
		t.xp = p
	}
}

// WithClock sets the clock used to stamp events
func WithClock(now func() time.Time) Option {
	return func(t *Timer) {
		t.now = now
	}
}

// New creates an idle timer. locker may be nil.
func New(locker Locker, opts ...Option) *Timer {
	t := &Timer{
		locker: locker,
		xp:     DefaultXPPolicy(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins a session, replacing any active one
func (t *Timer) Start(mode types.SessionMode, durationSeconds int, opts StartOptions) ([]types.Event, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	if durationSeconds <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDuration, durationSeconds)
	}

	var events []types.Event
	if t.session.IsActive {
		events = append(events, t.Stop()...)
	}

	t.session = types.FocusSession{
		IsActive:  true,
		Mode:      mode,
		TimeLeft:  durationSeconds,
		TotalTime: durationSeconds,
	}
	events = append(events, t.event(types.EventSessionStarted, durationSeconds, 0))

	if mode == types.ModeFocus && opts.Lock && t.locker != nil {
		lockPanel := opts.LockPanel
		if lockPanel == "" {
			lockPanel = types.PanelFocus
		}
		if t.locker.Lock(lockPanel, opts.Companion) {
			t.lockedByTimer = true
			events = append(events, t.event(types.EventFocusLocked, 0, 0))
		}
	}
	return events, nil
}

// Tick advances the countdown by one second
func (t *Timer) Tick() []types.Event {
	if !t.session.IsActive {
		return nil
	}

	t.session.TimeLeft--
	if t.session.TimeLeft > 0 {
		return nil
	}

	t.session.TimeLeft = 0
	t.session.IsActive = false
	events := []types.Event{
		t.event(types.EventSessionComplete, t.session.TotalTime, t.xp.award(t.session.Mode)),
	}

	if t.lockedByTimer {
		t.lockedByTimer = false
		if t.locker.Unlock() {
			events = append(events, t.event(types.EventFocusUnlocked, 0, 0))
		}
	}
	return events
}

// Stop ends the session without completion and releases focus lock
func (t *Timer) Stop() []types.Event {
	var events []types.Event
	if t.session.IsActive {
		t.session.IsActive = false
		elapsed := t.session.TotalTime - t.session.TimeLeft
		events = append(events, t.event(types.EventSessionStopped, elapsed, 0))
	}

	t.lockedByTimer = false
	if t.locker != nil && t.locker.IsLocked() && t.locker.Unlock() {
		events = append(events, t.event(types.EventFocusUnlocked, 0, 0))
	}
	return events
}

// ReleaseLock lifts focus lock at the user's request. A running session
// continues but no longer owns a lock, so its completion leaves any later
// lock in place. Returns false if nothing was locked.
func (t *Timer) ReleaseLock() bool {
	t.lockedByTimer = false
	return t.locker != nil && t.locker.Unlock()
}

// Session returns the current session state
func (t *Timer) Session() types.FocusSession {
	return t.session
}

// LockedByTimer reports whether the active lock was engaged by Start
func (t *Timer) LockedByTimer() bool {
	return t.lockedByTimer
}

func (t *Timer) event(kind types.EventKind, duration, xp int) types.Event {
	return types.Event{
		Kind:      kind,
		Mode:      t.session.Mode,
		AwardedXP: xp,
		Duration:  duration,
		At:        t.now(),
	}
}
