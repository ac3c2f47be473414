// Package window implements the workspace window manager and its
// focus-lock controller.
//
// The Manager owns exactly one PanelState per registered PanelType. It is
// synchronous, performs no I/O and is not safe for concurrent use; the
// owning workspace serialises access.
//
// Z-Order:
//   - Every raise takes the next value of a monotonically increasing counter
//   - The panel most recently opened, moved, resized or clicked holds the
//     highest z-index among open panels
//   - When the counter passes the renormalise threshold all z-indices are
//     compacted to 1..n preserving their order
//
// Focus Lock:
//   - Lock saves the layout of every panel, hides everything except the lock
//     panel and its optional companion, and centres the lock panel
//   - While locked, operations on other panels, maximise and preset changes
//     are no-ops
//   - Unlock restores the saved geometry and visibility of every panel but
//     the companion, which keeps whatever was done to it while locked
//
// Example Usage:
//
//	wm := window.New(window.WithViewport(1920, 1080))
//	wm.TogglePanel(types.PanelQuiz)
//	wm.Lock(types.PanelFocus, types.PanelNotes)
//	defer wm.Unlock()
package window
