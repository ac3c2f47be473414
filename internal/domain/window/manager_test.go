package window

import (
	"testing"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/domain/panels"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }

func assertOnTop(t *testing.T, m *Manager, top types.PanelType) {
	t.Helper()
	st := m.State()
	topZ := st.Panels[top].ZIndex
	for id, p := range st.Panels {
		if id == top {
			continue
		}
		assert.Less(t, p.ZIndex, topZ, "%s should be below %s", id, top)
	}
}

func TestNewUsesDefaultPreset(t *testing.T) {
	m := New()
	studio := panels.Default()

	for _, pt := range types.AllPanels() {
		p := m.Panel(pt)
		assert.Equal(t, studio.Panels[pt].IsOpen, p.IsOpen, pt)
		assert.Equal(t, studio.Panels[pt].Geometry, p.Geometry, pt)
		assert.Positive(t, p.ZIndex, pt)
	}
	assert.Empty(t, m.Maximized())
	assert.False(t, m.IsLocked())
}

func TestWithPreset(t *testing.T) {
	m := New(WithPreset("zen"))
	assert.True(t, m.Panel(types.PanelFocus).IsOpen)
	assert.False(t, m.Panel(types.PanelNotes).IsOpen)
}

func TestBringToFrontMonotonic(t *testing.T) {
	m := New()
	m.TogglePanel(types.PanelQuiz)

	sequence := []types.PanelType{
		types.PanelNotes, types.PanelVideo, types.PanelNotes, types.PanelQuiz,
		types.PanelChat, types.PanelFocus, types.PanelQuiz, types.PanelNotes,
	}
	for _, pt := range sequence {
		require.True(t, m.BringToFront(pt))
		assertOnTop(t, m, pt)
		assert.Equal(t, pt, m.Focused())
	}
}

func TestBringToFrontClosedPanel(t *testing.T) {
	m := New()
	before := m.State()

	assert.False(t, m.BringToFront(types.PanelSettings))
	assert.Equal(t, before, m.State())
}

func TestTogglePanel(t *testing.T) {
	m := New()

	require.True(t, m.TogglePanel(types.PanelQuiz))
	assert.True(t, m.Panel(types.PanelQuiz).IsOpen)
	assert.Equal(t, types.PanelQuiz, m.Focused())
	assertOnTop(t, m, types.PanelQuiz)

	require.True(t, m.TogglePanel(types.PanelQuiz))
	assert.False(t, m.Panel(types.PanelQuiz).IsOpen)
	assert.Equal(t, types.PanelQuiz, m.Focused(), "closing does not reassign focus")
}

func TestScenarioCloseKeepsFocus(t *testing.T) {
	m := New()
	require.True(t, m.Panel(types.PanelNotes).IsOpen)
	m.BringToFront(types.PanelVideo)
	focused := m.Focused()

	require.True(t, m.TogglePanel(types.PanelNotes))

	assert.False(t, m.Panel(types.PanelNotes).IsOpen)
	assert.Equal(t, focused, m.Focused())
}

func TestClosingMaximizedPanelClearsMaximize(t *testing.T) {
	m := New()
	m.ToggleMaximize(types.PanelVideo)
	require.Equal(t, types.PanelVideo, m.Maximized())

	m.TogglePanel(types.PanelVideo)
	assert.Empty(t, m.Maximized())
}

func TestUpdateGeometry(t *testing.T) {
	m := New()

	ok, err := m.UpdateGeometry(types.PanelNotes, types.GeometryPatch{X: intp(10), Width: intp(300)})
	require.NoError(t, err)
	require.True(t, ok)

	p := m.Panel(types.PanelNotes)
	assert.Equal(t, 10, p.X)
	assert.Equal(t, 300, p.Width)
	assert.Equal(t, panels.Default().Panels[types.PanelNotes].Y, p.Y)
	assertOnTop(t, m, types.PanelNotes)
}

func TestUpdateGeometryRejectsNegativeSize(t *testing.T) {
	tests := []struct {
		name  string
		patch types.GeometryPatch
	}{
		{"negative width", types.GeometryPatch{Width: intp(-1)}},
		{"negative height", types.GeometryPatch{X: intp(5), Height: intp(-20)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			before := m.State()

			ok, err := m.UpdateGeometry(types.PanelChat, tt.patch)
			require.ErrorIs(t, err, ErrInvalidGeometry)
			assert.False(t, ok)
			assert.Equal(t, before, m.State())
		})
	}
}

func TestToggleMaximize(t *testing.T) {
	m := New()

	require.True(t, m.ToggleMaximize(types.PanelQuiz))
	assert.Equal(t, types.PanelQuiz, m.Maximized())
	assert.True(t, m.Panel(types.PanelQuiz).IsOpen, "maximize opens a closed panel")
	assertOnTop(t, m, types.PanelQuiz)

	require.True(t, m.ToggleMaximize(types.PanelQuiz))
	assert.Empty(t, m.Maximized())
	assert.True(t, m.Panel(types.PanelQuiz).IsOpen)
}

func TestScenarioPresetClearsMaximize(t *testing.T) {
	m := New()

	require.True(t, m.ApplyPreset("Cinema"))
	require.True(t, m.ToggleMaximize(types.PanelVideo))
	assert.Equal(t, types.PanelVideo, m.Maximized())

	require.True(t, m.ApplyPreset("Studio"))
	assert.Empty(t, m.Maximized())
}

func TestApplyPresetAssignsEveryPanel(t *testing.T) {
	for _, name := range panels.Names() {
		t.Run(name, func(t *testing.T) {
			m := New()
			m.UpdateGeometry(types.PanelPlanner, types.GeometryPatch{X: intp(1), Y: intp(1)})

			require.True(t, m.ApplyPreset(name))
			preset := panels.Preset(name)
			st := m.State()

			var prev int64
			for _, pt := range types.AllPanels() {
				p := st.Panels[pt]
				assert.Equal(t, preset.Panels[pt].Geometry, p.Geometry)
				assert.Equal(t, preset.Panels[pt].IsOpen, p.IsOpen)
				assert.Greater(t, p.ZIndex, prev, "fresh z-indices follow registry order")
				prev = p.ZIndex
			}
		})
	}
}

func TestApplyUnknownPresetFallsBack(t *testing.T) {
	m := New(WithPreset("Zen"))

	require.True(t, m.ApplyPreset("nonexistent"))
	assert.True(t, m.Panel(types.PanelNotes).IsOpen)
	assert.True(t, m.Panel(types.PanelVideo).IsOpen)
}

func TestRenormalize(t *testing.T) {
	m := New(WithRenormalizeThreshold(20))

	for i := 0; i < 100; i++ {
		pt := []types.PanelType{types.PanelNotes, types.PanelVideo, types.PanelChat}[i%3]
		require.True(t, m.BringToFront(pt))
		assertOnTop(t, m, pt)
	}

	st := m.State()
	seen := make(map[int64]bool)
	for _, p := range st.Panels {
		assert.LessOrEqual(t, p.ZIndex, int64(20))
		assert.False(t, seen[p.ZIndex], "z-indices stay unique")
		seen[p.ZIndex] = true
	}
}

func TestRenormalizePreservesOrder(t *testing.T) {
	m := New(WithRenormalizeThreshold(12))
	m.BringToFront(types.PanelChat)
	m.BringToFront(types.PanelNotes)
	m.BringToFront(types.PanelVideo)

	before := m.VisiblePanels()
	m.renormalize()
	after := m.VisiblePanels()

	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
	}
	assert.Equal(t, int64(len(types.AllPanels())), m.topZ)
}

func TestVisiblePanelsBackToFront(t *testing.T) {
	m := New()
	m.BringToFront(types.PanelNotes)

	visible := m.VisiblePanels()
	require.NotEmpty(t, visible)
	assert.Equal(t, types.PanelNotes, visible[len(visible)-1].ID)
	for i := 1; i < len(visible); i++ {
		assert.Less(t, visible[i-1].ZIndex, visible[i].ZIndex)
	}
}

func TestStateIsACopy(t *testing.T) {
	m := New()
	st := m.State()
	p := st.Panels[types.PanelNotes]
	p.Width = 1
	st.Panels[types.PanelNotes] = p

	assert.NotEqual(t, 1, m.Panel(types.PanelNotes).Width)
}

func TestUnregisteredPanelPanics(t *testing.T) {
	m := New()
	assert.Panics(t, func() { m.TogglePanel("terminal") })
}
