// Package workspace holds the live state of every signed-in user.
//
// A Workspace owns one window manager and one session timer. All of its
// transitions run under a single mutex, so they never interleave. The events
// a transition produces are dispatched only after that mutex is released.
// Dispatch records progress, which goes through the persistence gateway, and
// then publishes to subscribers.
//
// Lifecycle:
//   - Open hydrates settings, notes and progress, then merges the user's
//     local snapshot for anything the gateways did not know
//   - Close saves the snapshot and drops the user's state from memory
//   - TickAll advances every timer by one second; Run drives it from a Source
//
// Snapshots hold identity, settings, stats, notifications and the notes
// graph. Panel layout is not saved: a fresh load starts from the settings'
// default preset.
//
// Example Usage:
//
//	ws, err := mgr.Open(ctx, identity)
//	if err != nil {
//	    return err
//	}
//	ws.TogglePanel(ctx, types.PanelQuiz)
//	ws.StartTimer(ctx, types.ModeFocus, 0, nil, "")
package workspace
