package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownPanel is returned when a panel name is not in the registry
var ErrUnknownPanel = errors.New("unknown panel")

// PanelType identifies a registered panel. The set is closed.
type PanelType string

const (
	PanelSearch        PanelType = "search"
	PanelNotes         PanelType = "notes"
	PanelVideo         PanelType = "video"
	PanelQuiz          PanelType = "quiz"
	PanelFocus         PanelType = "focus"
	PanelChat          PanelType = "chat"
	PanelNotifications PanelType = "notifications"
	PanelSettings      PanelType = "settings"
	PanelPlanner       PanelType = "planner"
)

// registry order, also the order fresh z-indices are handed out by presets
var allPanels = []PanelType{
	PanelSearch,
	PanelNotes,
	PanelVideo,
	PanelQuiz,
	PanelFocus,
	PanelChat,
	PanelNotifications,
	PanelSettings,
	PanelPlanner,
}

// AllPanels returns every registered panel in registry order
func AllPanels() []PanelType {
	out := make([]PanelType, len(allPanels))
	copy(out, allPanels)
	return out
}

// Valid reports whether p is a registered panel
func (p PanelType) Valid() bool {
	for _, t := range allPanels {
		if t == p {
			return true
		}
	}
	return false
}

func (p PanelType) String() string {
	return string(p)
}

// ParsePanelType converts user input to a PanelType
func ParsePanelType(s string) (PanelType, error) {
	p := PanelType(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPanel, s)
	}
	return p, nil
}

// Geometry is a panel rectangle in viewport pixels
type Geometry struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// GeometryPatch is a partial geometry update; nil fields are left untouched
type GeometryPatch struct {
	X      *int `json:"x,omitempty"`
	Y      *int `json:"y,omitempty"`
	Width  *int `json:"width,omitempty"`
	Height *int `json:"height,omitempty"`
}

// Empty reports whether the patch changes nothing
func (p GeometryPatch) Empty() bool {
	return p.X == nil && p.Y == nil && p.Width == nil && p.Height == nil
}

// PanelState is the live state of one panel
type PanelState struct {
	ID     PanelType `json:"id"`
	IsOpen bool      `json:"is_open"`
	Geometry
	ZIndex int64 `json:"z_index"`
}

// PresetEntry is the layout a preset assigns to one panel
type PresetEntry struct {
	Geometry `yaml:",inline"`
	IsOpen   bool `json:"is_open" yaml:"open"`
}

// LayoutPreset is a named layout covering every registered panel
type LayoutPreset struct {
	Name   string                    `json:"name" yaml:"name"`
	Panels map[PanelType]PresetEntry `json:"panels" yaml:"panels"`
}

// WindowState is a point-in-time copy of the window manager
type WindowState struct {
	Panels         map[PanelType]PanelState `json:"panels"`
	FocusedPanel   PanelType                `json:"focused_panel,omitempty"`
	MaximizedPanel PanelType                `json:"maximized_panel,omitempty"`
	IsFocusLocked  bool                     `json:"is_focus_locked"`
	LockPanel      PanelType                `json:"lock_panel,omitempty"`
	CompanionPanel PanelType                `json:"companion_panel,omitempty"`
}
