// Package resilience guards calls to the remote record store and the
// content-generation providers with a circuit breaker.
//
// A breaker starts closed. Once ReadyToTrip approves the counts of the
// current interval it opens and rejects calls with ErrCircuitOpen until
// Timeout passes; it then lets MaxRequests probes through half-open and
// closes again after as many consecutive successes. A failed probe reopens
// it. Cancelled calls count as successes so a client hanging up cannot
// take the remote tier offline.
//
//	breaker := resilience.New("remote", resilience.Settings{
//		Timeout:     30 * time.Second,
//		ReadyToTrip: func(c resilience.Counts) bool { return c.ConsecutiveFailures >= 5 },
//	})
//	err := breaker.Do(ctx, func(ctx context.Context) error { return store.Put(ctx, rec) })
//	rows, err := resilience.Call(ctx, breaker, list)
package resilience
