package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePanelType(t *testing.T) {
	tests := []struct {
		in      string
		want    PanelType
		wantErr bool
	}{
		{"notes", PanelNotes, false},
		{" Focus ", PanelFocus, false},
		{"PLANNER", PanelPlanner, false},
		{"terminal", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePanelType(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownPanel)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllPanelsIsACopy(t *testing.T) {
	panels := AllPanels()
	require.Len(t, panels, 9)
	panels[0] = "mutated"

	assert.Equal(t, PanelSearch, AllPanels()[0])
}

func TestBlockTypeValid(t *testing.T) {
	assert.True(t, BlockTodo.Valid())
	assert.True(t, BlockCode.Valid())
	assert.False(t, BlockType("table").Valid())
}

func TestSessionModeValid(t *testing.T) {
	assert.True(t, ModeFocus.Valid())
	assert.True(t, ModeBreak.Valid())
	assert.False(t, SessionMode("long_break").Valid())
}
