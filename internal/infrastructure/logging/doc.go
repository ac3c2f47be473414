// Package logging builds the process zap logger.
//
// Production logs JSON, optionally sampled; development logs colored
// console lines. Components receive a *zap.Logger and name themselves with
// Named ("gateway", "workspace", "ws"). The level is an atomic level that
// can be changed while running, and in development it is served at
// /debug/log-level.
//
//	logger, err := logging.New(logging.Config{Level: "info"})
//	gw := logger.Named("gateway")
//	gw.Warn("remote write failed", zap.String("kind", "page"), zap.Error(err))
package logging
