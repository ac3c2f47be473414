package workspace

import (
	"context"
	"sync"
	"time"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/domain/timer"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/domain/window"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/persistence"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/types"
)

// View is what a renderer needs to draw the workspace
type View struct {
	Identity types.Identity     `json:"identity"`
	Window   types.WindowState  `json:"window"`
	Visible  []types.PanelState `json:"visible"`
	Session  types.FocusSession `json:"session"`
	Settings types.Settings     `json:"settings"`
}

// Workspace is one user's window manager and timer
type Workspace struct {
	mu       sync.Mutex
	identity types.Identity
	settings types.Settings // Protected by mu
	window   *window.Manager
	timer    *timer.Timer
	now      func() time.Time
	metrics  *monitoring.Metrics
	dispatch func(ctx context.Context, w *Workspace, events []types.Event)
}

func newWorkspace(identity types.Identity, settings types.Settings, cfg Config, now func() time.Time, metrics *monitoring.Metrics) *Workspace {
	wm := window.New(
		window.WithViewport(cfg.ViewportWidth, cfg.ViewportHeight),
		window.WithPreset(settings.DefaultPreset),
	)
	return &Workspace{
		identity: identity,
		settings: settings,
		window:   wm,
		timer:    timer.New(wm, timer.WithXPPolicy(cfg.XP), timer.WithClock(now)),
		now:      now,
		metrics:  metrics,
	}
}

// Identity returns the workspace owner
func (w *Workspace) Identity() types.Identity {
	return w.identity
}

// Owner returns the persistence owner of the workspace
func (w *Workspace) Owner() persistence.Owner {
	return OwnerOf(w.identity)
}

// OwnerOf maps an identity to its persistence owner
func OwnerOf(identity types.Identity) persistence.Owner {
	return persistence.Owner{ID: string(identity.UserID), Guest: identity.Guest}
}

// View returns a copy of the current state
func (w *Workspace) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.viewLocked()
}

func (w *Workspace) viewLocked() View {
	return View{
		Identity: w.identity,
		Window:   w.window.State(),
		Visible:  w.window.VisiblePanels(),
		Session:  w.timer.Session(),
		Settings: w.settings,
	}
}

// Settings returns the user's settings
func (w *Workspace) Settings() types.Settings {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.settings
}

func (w *Workspace) setSettings(s types.Settings) {
	w.mu.Lock()
	w.settings = s
	w.mu.Unlock()
}

// Session returns the timer state
func (w *Workspace) Session() types.FocusSession {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.timer.Session()
}

// apply runs fn under the workspace mutex and dispatches its events once
// the mutex is released
func (w *Workspace) apply(ctx context.Context, fn func() []types.Event) View {
	w.mu.Lock()
	events := fn()
	view := w.viewLocked()
	w.mu.Unlock()

	w.emit(ctx, events)
	return view
}

func (w *Workspace) emit(ctx context.Context, events []types.Event) {
	if len(events) > 0 && w.dispatch != nil {
		w.dispatch(ctx, w, events)
	}
}

func (w *Workspace) layoutEvent(op string) types.Event {
	return types.Event{Kind: types.EventLayoutChanged, Data: map[string]any{
		"op":     op,
		"window": w.window.State(),
	}, At: w.now()}
}

// layoutFollows appends a layout event when a timer event changed the lock
func (w *Workspace) layoutFollows(events []types.Event) []types.Event {
	for _, ev := range events {
		if ev.Kind == types.EventFocusLocked || ev.Kind == types.EventFocusUnlocked {
			return append(events, w.layoutEvent(string(ev.Kind)))
		}
	}
	return events
}

// TogglePanel opens or closes a panel
func (w *Workspace) TogglePanel(ctx context.Context, t types.PanelType) (View, bool) {
	var ok bool
	view := w.apply(ctx, func() []types.Event {
		ok = w.window.TogglePanel(t)
		return w.panelOp("toggle", ok)
	})
	return view, ok
}

// UpdateGeometry moves or resizes a panel
func (w *Workspace) UpdateGeometry(ctx context.Context, t types.PanelType, patch types.GeometryPatch) (View, bool, error) {
	var (
		ok  bool
		err error
	)
	view := w.apply(ctx, func() []types.Event {
		ok, err = w.window.UpdateGeometry(t, patch)
		if err != nil {
			return nil
		}
		return w.panelOp("geometry", ok)
	})
	return view, ok, err
}

// BringToFront raises and focuses a panel
func (w *Workspace) BringToFront(ctx context.Context, t types.PanelType) (View, bool) {
	var ok bool
	view := w.apply(ctx, func() []types.Event {
		ok = w.window.BringToFront(t)
		return w.panelOp("front", ok)
	})
	return view, ok
}

// ToggleMaximize maximises a panel or restores it
func (w *Workspace) ToggleMaximize(ctx context.Context, t types.PanelType) (View, bool) {
	var ok bool
	view := w.apply(ctx, func() []types.Event {
		ok = w.window.ToggleMaximize(t)
		return w.panelOp("maximize", ok)
	})
	return view, ok
}

// ApplyPreset lays out every panel from a named preset
func (w *Workspace) ApplyPreset(ctx context.Context, name string) (View, bool) {
	var ok bool
	view := w.apply(ctx, func() []types.Event {
		ok = w.window.ApplyPreset(name)
		return w.panelOp("preset", ok)
	})
	return view, ok
}

func (w *Workspace) panelOp(op string, applied bool) []types.Event {
	if w.metrics != nil {
		w.metrics.RecordPanelOp(op, applied)
	}
	if !applied {
		return nil
	}
	return []types.Event{w.layoutEvent(op)}
}

// Lock engages focus lock on a panel with an optional companion
func (w *Workspace) Lock(ctx context.Context, lockPanel, companion types.PanelType) (View, bool) {
	var ok bool
	view := w.apply(ctx, func() []types.Event {
		ok = w.window.Lock(lockPanel, companion)
		if !ok {
			return nil
		}
		return w.layoutFollows([]types.Event{{Kind: types.EventFocusLocked, At: w.now()}})
	})
	return view, ok
}

// Unlock releases focus lock, including one engaged by the timer
func (w *Workspace) Unlock(ctx context.Context) (View, bool) {
	var ok bool
	view := w.apply(ctx, func() []types.Event {
		ok = w.timer.ReleaseLock()
		if !ok {
			return nil
		}
		return w.layoutFollows([]types.Event{{Kind: types.EventFocusUnlocked, At: w.now()}})
	})
	return view, ok
}

// StartTimer begins a session. A zero duration uses the settings default
// for the mode; a nil lock uses the LockOnStart setting and an empty
// companion uses the configured companion panel.
func (w *Workspace) StartTimer(ctx context.Context, mode types.SessionMode, seconds int, lock *bool, companion types.PanelType) (View, error) {
	var err error
	view := w.apply(ctx, func() []types.Event {
		if seconds == 0 {
			seconds = w.settings.FocusMinutes * 60
			if mode == types.ModeBreak {
				seconds = w.settings.BreakMinutes * 60
			}
		}
		opts := timer.StartOptions{
			Lock:      w.settings.LockOnStart,
			LockPanel: types.PanelFocus,
			Companion: w.settings.CompanionPanel,
		}
		if lock != nil {
			opts.Lock = *lock
		}
		if companion != "" {
			opts.Companion = companion
		}

		var events []types.Event
		events, err = w.timer.Start(mode, seconds, opts)
		return w.layoutFollows(events)
	})
	return view, err
}

// StopTimer ends the session without completion
func (w *Workspace) StopTimer(ctx context.Context) View {
	return w.apply(ctx, func() []types.Event {
		return w.layoutFollows(w.timer.Stop())
	})
}

// Tick advances the timer by one second
func (w *Workspace) Tick(ctx context.Context) {
	w.mu.Lock()
	events := w.layoutFollows(w.timer.Tick())
	w.mu.Unlock()
	w.emit(ctx, events)
}
