package types

import "time"

// SessionMode selects the kind of timed session
type SessionMode string

const (
	ModeFocus SessionMode = "focus"
	ModeBreak SessionMode = "break"
)

// Valid reports whether m is a known mode
func (m SessionMode) Valid() bool {
	return m == ModeFocus || m == ModeBreak
}

// FocusSession is the timer state; times are in seconds
type FocusSession struct {
	IsActive  bool        `json:"is_active"`
	Mode      SessionMode `json:"mode,omitempty"`
	TimeLeft  int         `json:"time_left"`
	TotalTime int         `json:"total_time"`
}

// EventKind names a workspace event
type EventKind string

const (
	EventSessionStarted  EventKind = "session_started"
	EventSessionComplete EventKind = "session_complete"
	EventSessionStopped  EventKind = "session_stopped"
	EventFocusLocked     EventKind = "focus_locked"
	EventFocusUnlocked   EventKind = "focus_unlocked"
	EventLayoutChanged   EventKind = "layout_changed"
	EventNotification    EventKind = "notification"
	EventStatsChanged    EventKind = "stats_changed"
)

// Event is emitted by a state transition and dispatched after it commits
type Event struct {
	Kind      EventKind   `json:"kind"`
	Mode      SessionMode `json:"mode,omitempty"`
	AwardedXP int         `json:"awarded_xp,omitempty"`
	Duration  int         `json:"duration,omitempty"`
	Data      any         `json:"data,omitempty"`
	At        time.Time   `json:"at"`
}
