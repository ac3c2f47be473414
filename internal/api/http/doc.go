// Package http exposes the workspace engine over a JSON API.
//
// Every route lives under /api/v1 and, apart from login, presets and
// health, requires a bearer token resolved by middleware.Auth. The
// caller's workspace is opened on first use. Domain errors map to
// status codes in one place:
//
//   - unknown page, block or notification: 404
//   - invalid input: 400
//   - bad credentials: 401
//   - assistant unavailable: 200 with an inline status
//   - anything else: 500, logged and not echoed
//
// Panel operations suppressed by focus lock answer 200 with
// "applied": false.
//
// Example Usage:
//
//	h := http.NewHandlers(http.Deps{Auth: authSvc, Workspaces: manager, ...})
//	h.Register(router)
package http
