package panels

import (
	"strings"
	"testing"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryPresetAssignsEveryPanel(t *testing.T) {
	require.NotEmpty(t, Names())

	for _, name := range Names() {
		p := Preset(name)
		assert.Equal(t, name, p.Name)
		for _, panel := range types.AllPanels() {
			entry, ok := p.Panels[panel]
			assert.True(t, ok, "preset %s misses %s", name, panel)
			assert.Positive(t, entry.Width, "preset %s panel %s", name, panel)
			assert.Positive(t, entry.Height, "preset %s panel %s", name, panel)
		}
	}
}

func TestPresetNames(t *testing.T) {
	assert.Equal(t, []string{"Cinema", "Exam", "Research", "Studio", "Zen"}, Names())
	assert.Equal(t, "Studio", DefaultName())
}

func TestPresetLookup(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Cinema", "Cinema"},
		{"cinema", "Cinema"},
		{"  ZEN ", "Zen"},
		{"does-not-exist", "Studio"},
		{"", "Studio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Preset(tt.name).Name)
		})
	}

	_, ok := Lookup("does-not-exist")
	assert.False(t, ok)
}

func TestStudioOpensCorePanels(t *testing.T) {
	p := Default()
	for _, panel := range []types.PanelType{types.PanelNotes, types.PanelVideo, types.PanelChat, types.PanelFocus} {
		assert.True(t, p.Panels[panel].IsOpen, "%s should be open in Studio", panel)
	}
	assert.False(t, p.Panels[types.PanelQuiz].IsOpen)
}

func TestPresetIsACopy(t *testing.T) {
	p := Preset("Studio")
	p.Panels[types.PanelNotes] = types.PresetEntry{IsOpen: false}

	assert.True(t, Preset("Studio").Panels[types.PanelNotes].IsOpen)
}

func TestDefaultPanelState(t *testing.T) {
	for _, panel := range types.AllPanels() {
		st := DefaultPanelState(panel)
		assert.Equal(t, panel, st.ID)
		assert.Zero(t, st.ZIndex)
		assert.Positive(t, st.Width)
	}

	assert.Panics(t, func() { DefaultPanelState("terminal") })
}

func TestParseCatalogRejectsIncompletePreset(t *testing.T) {
	var b strings.Builder
	b.WriteString("default: Solo\nregistry:\n")
	for _, p := range types.AllPanels() {
		b.WriteString("  " + string(p) + ": {x: 0, y: 0, width: 10, height: 10, open: false}\n")
	}
	b.WriteString("presets:\n  - name: Solo\n    panels:\n      notes: {x: 0, y: 0, width: 10, height: 10, open: true}\n")

	_, err := parseCatalog([]byte(b.String()))
	require.ErrorIs(t, err, ErrIncompleteCatalog)
}

func TestParseCatalogRejectsUnknownDefault(t *testing.T) {
	_, err := parseCatalog(presetsYAML)
	require.NoError(t, err)

	bad := strings.Replace(string(presetsYAML), "default: Studio", "default: Gallery", 1)
	_, err = parseCatalog([]byte(bad))
	require.ErrorIs(t, err, ErrIncompleteCatalog)
}

func TestParseCatalogRejectsUnknownPanel(t *testing.T) {
	bad := strings.Replace(string(presetsYAML), "registry:\n", "registry:\n  terminal: {x: 0, y: 0, width: 1, height: 1, open: false}\n", 1)
	_, err := parseCatalog([]byte(bad))
	require.ErrorIs(t, err, types.ErrUnknownPanel)
}
