package types

import (
	"time"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/id"
)

// Identity is the signed-in user as seen by the core
type Identity struct {
	UserID   id.UserID `json:"user_id"`
	Name     string    `json:"name"`
	Provider string    `json:"provider"`
	Guest    bool      `json:"guest"`
}

// Notification is a user-facing message
type Notification struct {
	ID        id.NotificationID `json:"id"`
	Title     string            `json:"title"`
	Body      string            `json:"body,omitempty"`
	Kind      string            `json:"kind"`
	Read      bool              `json:"read"`
	CreatedAt time.Time         `json:"created_at"`
}

// Settings are per-user preferences
type Settings struct {
	Theme          string    `json:"theme" yaml:"theme" toml:"theme"`
	Language       string    `json:"language" yaml:"language" toml:"language"`
	FocusMinutes   int       `json:"focus_minutes" yaml:"focus_minutes" toml:"focus_minutes"`
	BreakMinutes   int       `json:"break_minutes" yaml:"break_minutes" toml:"break_minutes"`
	LockOnStart    bool      `json:"lock_on_start" yaml:"lock_on_start" toml:"lock_on_start"`
	CompanionPanel PanelType `json:"companion_panel,omitempty" yaml:"companion_panel,omitempty" toml:"companion_panel,omitempty"`
	DefaultPreset  string    `json:"default_preset" yaml:"default_preset" toml:"default_preset"`
}

// DefaultSettings returns the settings of a new user
func DefaultSettings() Settings {
	return Settings{
		Theme:         "light",
		Language:      "en",
		FocusMinutes:  25,
		BreakMinutes:  5,
		LockOnStart:   true,
		DefaultPreset: "Studio",
	}
}

// Stats tracks gamification progress
type Stats struct {
	XP                int    `json:"xp"`
	Level             int    `json:"level"`
	SessionsCompleted int    `json:"sessions_completed"`
	FocusSeconds      int    `json:"focus_seconds"`
	BreakSeconds      int    `json:"break_seconds"`
	Streak            int    `json:"streak"`
	LastSessionDay    string `json:"last_session_day,omitempty"`
	RecentFocus       []int  `json:"recent_focus,omitempty"`
}
