package workspace

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/domain/content"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/domain/panels"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/domain/progress"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/domain/timer"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/domain/window"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/persistence"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/types"
	"go.uber.org/zap"
)

// Config sizes new workspaces
type Config struct {
	ViewportWidth  int
	ViewportHeight int
	XP             timer.XPPolicy
}

// DefaultConfig returns the configuration used when none is given
func DefaultConfig() Config {
	return Config{
		ViewportWidth:  window.DefaultViewportWidth,
		ViewportHeight: window.DefaultViewportHeight,
		XP:             timer.DefaultXPPolicy(),
	}
}

// Publisher receives the events of every committed transition
type Publisher interface {
	Publish(userID string, events []types.Event)
}

// Manager owns the open workspaces, keyed by user id
type Manager struct {
	mu         sync.RWMutex
	workspaces map[string]*Workspace // Protected by mu

	cfg       Config
	notes     *content.Notes
	progress  *progress.Tracker
	settings  *persistence.Gateway[settingsRecord]
	snapshots SnapshotStore
	publisher Publisher
	logger    *zap.Logger
	metrics   *monitoring.Metrics
	now       func() time.Time
	locks     persistence.KeyedMutex
}

// NewManager creates a manager over the shared persistence tiers
func NewManager(tiers persistence.Tiers, notes *content.Notes, tracker *progress.Tracker, cfg Config) *Manager {
	logger := tiers.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := tiers.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		workspaces: make(map[string]*Workspace),
		cfg:        cfg,
		notes:      notes,
		progress:   tracker,
		settings:   persistence.NewFor(tiers, SettingsKind, func(s *settingsRecord) string { return s.ID }),
		logger:     logger.Named("workspace"),
		metrics:    tiers.Metrics,
		now:        now,
	}
}

// WithSnapshots enables local snapshots
func (m *Manager) WithSnapshots(s SnapshotStore) *Manager {
	m.snapshots = s
	return m
}

// WithPublisher sets where committed events are sent
func (m *Manager) WithPublisher(p Publisher) *Manager {
	m.publisher = p
	return m
}

// Open returns the user's workspace, hydrating it on first use. Gateways are
// loaded first; a local snapshot then fills in whatever they did not know.
func (m *Manager) Open(ctx context.Context, identity types.Identity) (*Workspace, error) {
	userID := string(identity.UserID)
	if userID == "" {
		return nil, fmt.Errorf("open workspace: %w", persistence.ErrMissingID)
	}
	if w, ok := m.Get(userID); ok {
		return w, nil
	}

	unlock := m.locks.Lock(userID)
	defer unlock()

	if w, ok := m.Get(userID); ok {
		return w, nil
	}

	owner := OwnerOf(identity)
	if err := errors.Join(
		m.settings.Load(ctx, owner),
		m.notes.Load(ctx, owner),
		m.progress.Load(ctx, owner),
	); err != nil {
		m.forget(userID)
		return nil, fmt.Errorf("hydrate workspace: %w", err)
	}

	settings, found := m.loadSettings(owner)
	if snap, ok := m.loadSnapshot(ctx, userID); ok {
		adopted := m.notes.Adopt(owner, snap.Pages, snap.Blocks, snap.SavedAt)
		adopted += m.progress.Adopt(owner, snap.Stats, snap.Notifications, snap.SavedAt)
		if !found {
			adopted += m.settings.Adopt(owner, []settingsRecord{{ID: settingsID, Settings: snap.Settings}}, snap.SavedAt)
			settings = snap.Settings
		}
		if adopted > 0 {
			m.logger.Info("restored entities from snapshot",
				zap.String("user", userID), zap.Int("adopted", adopted))
		}
	}

	w := newWorkspace(identity, normalize(settings), m.cfg, m.now, m.metrics)
	w.dispatch = m.dispatch

	m.mu.Lock()
	m.workspaces[userID] = w
	n := len(m.workspaces)
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SetWorkspacesActive(n)
	}
	m.logger.Info("workspace opened",
		zap.String("user", userID),
		zap.String("provider", identity.Provider),
		zap.Bool("guest", identity.Guest))
	return w, nil
}

// normalize repairs settings saved by older versions or edited by hand
func normalize(s types.Settings) types.Settings {
	def := types.DefaultSettings()
	if s.FocusMinutes < 1 || s.FocusMinutes > MaxFocusMinutes {
		s.FocusMinutes = def.FocusMinutes
	}
	if s.BreakMinutes < 1 || s.BreakMinutes > MaxBreakMinutes {
		s.BreakMinutes = def.BreakMinutes
	}
	if !themes[s.Theme] {
		s.Theme = def.Theme
	}
	if s.Language == "" {
		s.Language = def.Language
	}
	if s.CompanionPanel != "" && !s.CompanionPanel.Valid() {
		s.CompanionPanel = ""
	}
	if _, ok := panels.Lookup(s.DefaultPreset); !ok {
		s.DefaultPreset = panels.DefaultName()
	}
	return s
}

// Get returns an open workspace
func (m *Manager) Get(userID string) (*Workspace, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.workspaces[userID]
	return w, ok
}

// List returns the open workspaces ordered by user id
func (m *Manager) List() []*Workspace {
	m.mu.RLock()
	out := make([]*Workspace, 0, len(m.workspaces))
	for _, w := range m.workspaces {
		out = append(out, w)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].identity.UserID < out[j].identity.UserID })
	return out
}

// Count returns the number of open workspaces
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.workspaces)
}

// Close saves the user's snapshot, replays pending writes once and drops the
// workspace. Pending writes that still fail stay in the local tier.
func (m *Manager) Close(ctx context.Context, userID string) error {
	unlock := m.locks.Lock(userID)
	defer unlock()

	m.mu.Lock()
	w, ok := m.workspaces[userID]
	delete(m.workspaces, userID)
	n := len(m.workspaces)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	if m.metrics != nil {
		m.metrics.SetWorkspacesActive(n)
	}

	err := m.SaveSnapshot(ctx, w)
	if _, rerr := m.Reconcile(ctx, userID); rerr != nil {
		m.logger.Debug("pending writes left for later", zap.String("user", userID), zap.Error(rerr))
	}
	m.forget(userID)

	m.logger.Info("workspace closed", zap.String("user", userID))
	return err
}

func (m *Manager) forget(userID string) {
	m.settings.Forget(userID)
	m.notes.Forget(userID)
	m.progress.Forget(userID)
}

// SaveAll snapshots every open workspace
func (m *Manager) SaveAll(ctx context.Context) error {
	var errs []error
	for _, w := range m.List() {
		if err := m.SaveSnapshot(ctx, w); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", w.identity.UserID, err))
		}
	}
	return errors.Join(errs...)
}

// TickAll advances every open workspace's timer by one second
func (m *Manager) TickAll(ctx context.Context) {
	for _, w := range m.List() {
		w.Tick(ctx)
	}
}

// Run ticks every workspace once per tick from src until ctx is done.
// Missed ticks are not made up.
func (m *Manager) Run(ctx context.Context, src timer.Source) error {
	return timer.Drive(ctx, src, func(time.Time) {
		m.TickAll(ctx)
	})
}

// Reconcile replays a user's pending writes to the remote tier
func (m *Manager) Reconcile(ctx context.Context, userID string) (int, error) {
	total := 0
	for _, fn := range []func(context.Context, string) (int, error){
		m.settings.Reconcile,
		m.notes.Reconcile,
		m.progress.Reconcile,
	} {
		n, err := fn(ctx, userID)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// RunReconciler reconciles every open workspace once per interval until ctx
// is done. An interval of zero or less disables it.
func (m *Manager) RunReconciler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.reconcileAll(ctx)
		}
	}
}

// reconcileAll reconciles every open workspace and returns how many entities
// were replayed. A failing user does not hold back the others.
func (m *Manager) reconcileAll(ctx context.Context) int {
	total := 0
	for _, w := range m.List() {
		if ctx.Err() != nil {
			break
		}
		userID := string(w.identity.UserID)
		n, err := m.Reconcile(ctx, userID)
		total += n
		if err != nil {
			m.logger.Debug("reconcile incomplete",
				zap.String("user", userID), zap.Int("replayed", n), zap.Error(err))
			continue
		}
		if n > 0 {
			m.logger.Info("reconciled local writes",
				zap.String("user", userID), zap.Int("replayed", n))
		}
	}
	return total
}

// dispatch runs the effects of committed events outside the workspace mutex
func (m *Manager) dispatch(ctx context.Context, w *Workspace, events []types.Event) {
	owner := w.Owner()
	out := make([]types.Event, 0, len(events))
	for _, ev := range events {
		out = append(out, ev)
		m.observe(ev)

		if ev.Kind != types.EventSessionComplete {
			continue
		}
		follow, err := m.progress.Record(ctx, owner, ev)
		if err != nil {
			m.logger.Error("record session",
				zap.String("user", owner.ID),
				zap.String("mode", string(ev.Mode)),
				zap.Error(err))
		}
		out = append(out, follow...)
	}

	if m.publisher != nil {
		m.publisher.Publish(owner.ID, out)
	}
}

func (m *Manager) observe(ev types.Event) {
	if m.metrics == nil {
		return
	}
	switch ev.Kind {
	case types.EventSessionStarted:
		m.metrics.RecordSession(string(ev.Mode), "started")
	case types.EventSessionComplete:
		m.metrics.RecordSession(string(ev.Mode), "completed")
	case types.EventSessionStopped:
		m.metrics.RecordSession(string(ev.Mode), "stopped")
	case types.EventFocusLocked:
		m.metrics.RecordLockTransition(true)
	case types.EventFocusUnlocked:
		m.metrics.RecordLockTransition(false)
	}
}
