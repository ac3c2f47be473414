// Package server assembles the StudyDesk backend.
//
// NewServer opens the three storage tiers (badger locally, a SQL remote
// store behind a circuit breaker, and Redis or memory for auth sessions),
// builds the domain services on top of them and mounts the HTTP API. Run
// adds the background loops: the one-second session ticker, the remote
// reconciler and periodic local snapshots. An optional gRPC port serves
// grpc.health.v1, where the studydesk.remote service follows the breaker.
//
// Shutdown is ordered: listeners stop first, then the loops, then every
// open workspace is snapshotted and reconciled before the stores close.
package server
