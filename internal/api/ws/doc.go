// Package ws streams workspace events to browsers over WebSocket.
//
// A Hub keeps every open connection grouped by user. Committed workspace
// transitions are published to all of that user's connections as
// {"type":"event"} frames; the first frame of a connection is a
// {"type":"system"} hello carrying the current workspace view.
//
// Message Types (Client → Server):
//   - ping: keep-alive, answered with pong
//
// Message Types (Server → Client):
//   - system: hello with the initial view
//   - event: one workspace event
//   - pong: keep-alive reply
//
// Example Usage:
//
//	hub := ws.NewHub(logger, metrics)
//	manager.WithPublisher(hub)
//	router.GET("/api/v1/stream", func(c *gin.Context) { hub.Serve(c, userID, view) })
package ws
