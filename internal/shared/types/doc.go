// Package types provides shared data structures for the workspace backend.
//
// This package defines the value types passed between the window manager,
// the session timer, the notes graph, the persistence gateway and the API.
//
// Workspace Types:
//   - PanelType: Closed enumeration of the registered panels
//   - PanelState, Geometry: Per-panel visibility, position, size and z-order
//   - LayoutPreset, PresetEntry: Named, immutable layouts
//   - WindowState: Snapshot of the window manager
//
// Session Types:
//   - SessionMode: focus or break
//   - FocusSession: Timer state
//   - Event: Outcome of a transition (session_complete, focus_locked, ...)
//
// Content Types:
//   - Page, Block, BlockType: Notes graph
//   - Notification, Settings, Stats, Identity: Per-user records
//
// Example Usage:
//
//	t, err := types.ParsePanelType(c.Param("panel"))
//	if err != nil {
//	    return err
//	}
//	ws.TogglePanel(t)
package types
