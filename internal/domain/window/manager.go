package window

import (
	"errors"
	"fmt"
	"sort"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/domain/panels"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/types"
)

// ErrInvalidGeometry is returned for a negative width or height
var ErrInvalidGeometry = errors.New("invalid geometry")

const (
	DefaultViewportWidth  = 1440
	DefaultViewportHeight = 900

	// DefaultRenormalizeThreshold keeps z-indices well inside float64 precision
	// for renderers that treat them as JS numbers
	DefaultRenormalizeThreshold int64 = 1 << 52
)

// Manager tracks geometry, visibility, z-order, focus and maximise state
type Manager struct {
	panels    map[types.PanelType]*types.PanelState
	order     map[types.PanelType]int
	focused   types.PanelType
	maximized types.PanelType
	topZ      int64
	threshold int64
	viewportW int
	viewportH int
	lock      lockState
}

// Option configures a Manager
type Option func(*Manager)

// WithViewport sets the viewport used to centre the lock panel
func WithViewport(width, height int) Option {
	return func(m *Manager) {
		if width > 0 && height > 0 {
			m.viewportW, m.viewportH = width, height
		}
	}
}

// WithRenormalizeThreshold sets the z counter value that triggers compaction
func WithRenormalizeThreshold(n int64) Option {
	return func(m *Manager) {
		if n > 0 {
			m.threshold = n
		}
	}
}

// WithPreset selects the initial layout; unknown names use the default preset
func WithPreset(name string) Option {
	return func(m *Manager) {
		m.apply(panels.Preset(name))
	}
}

// New creates a manager laid out with the default preset
func New(opts ...Option) *Manager {
	m := &Manager{
		panels:    make(map[types.PanelType]*types.PanelState),
		order:     make(map[types.PanelType]int),
		threshold: DefaultRenormalizeThreshold,
		viewportW: DefaultViewportWidth,
		viewportH: DefaultViewportHeight,
	}
	for i, t := range types.AllPanels() {
		st := panels.DefaultPanelState(t)
		m.panels[t] = &st
		m.order[t] = i
	}
	m.apply(panels.Default())

	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) panel(t types.PanelType) *types.PanelState {
	p, ok := m.panels[t]
	if !ok {
		panic(fmt.Sprintf("window: unregistered panel %q", t))
	}
	return p
}

// TogglePanel flips a panel's visibility. Opening raises and focuses it.
// Closing leaves focus alone and clears maximise if t was maximised.
func (m *Manager) TogglePanel(t types.PanelType) bool {
	p := m.panel(t)
	if !m.Allowed(t) {
		return false
	}

	p.IsOpen = !p.IsOpen
	if p.IsOpen {
		m.raise(t)
	} else if m.maximized == t {
		m.maximized = ""
	}
	return true
}

// UpdateGeometry merges a geometry patch into a panel and raises it
func (m *Manager) UpdateGeometry(t types.PanelType, patch types.GeometryPatch) (bool, error) {
	p := m.panel(t)
	if m.lock.active && (!m.Allowed(t) || t == m.lock.panel) {
		return false, nil
	}
	if patch.Width != nil && *patch.Width < 0 {
		return false, fmt.Errorf("%w: width %d", ErrInvalidGeometry, *patch.Width)
	}
	if patch.Height != nil && *patch.Height < 0 {
		return false, fmt.Errorf("%w: height %d", ErrInvalidGeometry, *patch.Height)
	}

	if patch.X != nil {
		p.X = *patch.X
	}
	if patch.Y != nil {
		p.Y = *patch.Y
	}
	if patch.Width != nil {
		p.Width = *patch.Width
	}
	if patch.Height != nil {
		p.Height = *patch.Height
	}
	m.raise(t)
	return true, nil
}

// BringToFront raises and focuses an open panel
func (m *Manager) BringToFront(t types.PanelType) bool {
	p := m.panel(t)
	if !p.IsOpen || !m.Allowed(t) {
		return false
	}
	m.raise(t)
	return true
}

// ToggleMaximize clears maximise if t is maximised, otherwise opens,
// maximises and raises t
func (m *Manager) ToggleMaximize(t types.PanelType) bool {
	p := m.panel(t)
	if m.lock.active {
		return false
	}

	if m.maximized == t {
		m.maximized = ""
		return true
	}
	p.IsOpen = true
	m.maximized = t
	m.raise(t)
	return true
}

// ApplyPreset lays out every panel from the named preset
func (m *Manager) ApplyPreset(name string) bool {
	if m.lock.active {
		return false
	}
	m.apply(panels.Preset(name))
	return true
}

// apply assigns fresh z-indices in registry order and clears maximise
func (m *Manager) apply(preset types.LayoutPreset) {
	for _, t := range types.AllPanels() {
		entry := preset.Panels[t]
		p := m.panel(t)
		p.IsOpen = entry.IsOpen
		p.Geometry = entry.Geometry
		p.ZIndex = m.nextZ()
	}
	m.maximized = ""
}

func (m *Manager) raise(t types.PanelType) {
	m.panel(t).ZIndex = m.nextZ()
	m.focused = t
}

func (m *Manager) nextZ() int64 {
	if m.topZ >= m.threshold {
		m.renormalize()
	}
	m.topZ++
	return m.topZ
}

// renormalize compacts z-indices to 1..n keeping their relative order
func (m *Manager) renormalize() {
	all := make([]*types.PanelState, 0, len(m.panels))
	for _, p := range m.panels {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].ZIndex != all[j].ZIndex {
			return all[i].ZIndex < all[j].ZIndex
		}
		return m.order[all[i].ID] < m.order[all[j].ID]
	})
	for i, p := range all {
		p.ZIndex = int64(i + 1)
	}
	m.topZ = int64(len(all))
}

// State returns a deep copy of the manager state
func (m *Manager) State() types.WindowState {
	st := types.WindowState{
		Panels:         make(map[types.PanelType]types.PanelState, len(m.panels)),
		FocusedPanel:   m.focused,
		MaximizedPanel: m.maximized,
		IsFocusLocked:  m.lock.active,
		LockPanel:      m.lock.panel,
		CompanionPanel: m.lock.companion,
	}
	for t, p := range m.panels {
		st.Panels[t] = *p
	}
	return st
}

// Panel returns a copy of one panel's state
func (m *Manager) Panel(t types.PanelType) types.PanelState {
	return *m.panel(t)
}

// VisiblePanels returns open panels ordered back to front
func (m *Manager) VisiblePanels() []types.PanelState {
	out := make([]types.PanelState, 0, len(m.panels))
	for _, t := range types.AllPanels() {
		p := m.panels[t]
		if p.IsOpen && m.Allowed(t) {
			out = append(out, *p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ZIndex < out[j].ZIndex
	})
	return out
}

// Focused returns the focused panel, or "" if none
func (m *Manager) Focused() types.PanelType {
	return m.focused
}

// Maximized returns the maximised panel, or "" if none
func (m *Manager) Maximized() types.PanelType {
	return m.maximized
}
