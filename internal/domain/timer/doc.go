// Package timer implements the focus/break session countdown.
//
// The timer holds no clock. It is advanced by exactly one Tick per second
// from an injected Source; ticks dropped by a slow consumer or a throttled
// host are not compensated, so a late session simply ends late.
//
// Lifecycle:
//   - Start replaces any active session (implicit Stop) and may engage focus lock
//   - Tick decrements; reaching zero emits session_complete with awarded XP
//     and releases a lock this timer engaged
//   - Stop ends the session without a completion event and releases any lock
//   - Tick with no active session is a silent no-op
//
// Example Usage:
//
//	t := timer.New(windowManager)
//	events, err := t.Start(types.ModeFocus, 1500, timer.StartOptions{Lock: true})
//	go timer.Drive(ctx, timer.NewIntervalSource(time.Second), func(time.Time) {
//	    events := t.Tick()
//	    ...
//	})
package timer
