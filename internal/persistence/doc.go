// Package persistence implements the two-tier write-through gateway used for
// every user-owned entity kind (pages, blocks, notifications, settings, stats).
//
// Consistency Model:
//   - The in-memory state is updated first and is what readers see
//   - The remote store is tried next, through a circuit breaker
//   - On any remote failure the identical mutation is written to the local
//     durable store and the entity is marked TierLocal
//   - A *Error is returned only when the local tier fails too, and the
//     mutation is then rolled back in memory
//   - Guest owners never touch the remote store
//
// Every entity carries an explicit tier marker:
//   - TierRemote: the remote store holds the latest write
//   - TierLocal: only the local store (or memory) holds it; pending replay
//   - TierNone: unknown id
//
// Writes to the same entity are serialised, so remote write order equals
// call order. Entities stuck in TierLocal are replayed by Reconcile, which
// the workspace manager calls periodically for every open workspace.
//
// Example Usage:
//
//	pages := persistence.New(persistence.Config[types.Page]{
//	    Kind:    "page",
//	    ID:      func(p *types.Page) string { return string(p.ID) },
//	    Remote:  remoteStore,
//	    Local:   localStore,
//	    Breaker: breaker,
//	    Logger:  logger,
//	})
//	page, err := pages.Create(ctx, owner, page)
//	tier := pages.Tier(owner.ID, string(page.ID))
package persistence
