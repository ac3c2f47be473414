package window

import (
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/types"
)

const (
	LockWidth  = 720
	LockHeight = 520
)

type savedLayout struct {
	isOpen   bool
	geometry types.Geometry
}

type lockState struct {
	active    bool
	panel     types.PanelType
	companion types.PanelType
	saved     map[types.PanelType]savedLayout
}

// Lock enters focus-lock mode. Companion "" means none; a companion equal
// to the lock panel is ignored. Returns false if already locked.
func (m *Manager) Lock(lockPanel, companion types.PanelType) bool {
	lp := m.panel(lockPanel)
	if companion != "" {
		m.panel(companion)
	}
	if m.lock.active {
		return false
	}
	if companion == lockPanel {
		companion = ""
	}

	saved := make(map[types.PanelType]savedLayout, len(m.panels))
	for t, p := range m.panels {
		saved[t] = savedLayout{isOpen: p.IsOpen, geometry: p.Geometry}
	}

	m.lock = lockState{
		active:    true,
		panel:     lockPanel,
		companion: companion,
		saved:     saved,
	}
	m.maximized = ""

	for t, p := range m.panels {
		if !m.Allowed(t) {
			p.IsOpen = false
		}
	}

	lp.IsOpen = true
	lp.Geometry = m.lockGeometry()
	m.raise(lockPanel)
	return true
}

// Unlock leaves focus-lock mode and restores the pre-lock layout of the lock
// panel and the hidden panels. The companion keeps the edits made while
// locked. Z-indices keep their current values. Returns false if not locked.
func (m *Manager) Unlock() bool {
	if !m.lock.active {
		return false
	}
	for t, s := range m.lock.saved {
		if t == m.lock.companion {
			continue
		}
		p := m.panel(t)
		p.IsOpen = s.isOpen
		p.Geometry = s.geometry
	}
	m.lock = lockState{}
	return true
}

// IsLocked reports whether focus lock is engaged
func (m *Manager) IsLocked() bool {
	return m.lock.active
}

// LockPanel returns the lock panel, or "" when unlocked
func (m *Manager) LockPanel() types.PanelType {
	return m.lock.panel
}

// Companion returns the companion panel, or "" if none
func (m *Manager) Companion() types.PanelType {
	return m.lock.companion
}

// Allowed reports whether t may be operated on in the current lock state
func (m *Manager) Allowed(t types.PanelType) bool {
	if !m.lock.active {
		return true
	}
	return t == m.lock.panel || (m.lock.companion != "" && t == m.lock.companion)
}

func (m *Manager) lockGeometry() types.Geometry {
	w := min(LockWidth, m.viewportW)
	h := min(LockHeight, m.viewportH)
	return types.Geometry{
		X:      (m.viewportW - w) / 2,
		Y:      (m.viewportH - h) / 2,
		Width:  w,
		Height: h,
	}
}
