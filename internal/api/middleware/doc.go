// Package middleware holds the gin middleware in front of the StudyDesk API:
// CORS for the renderer origins, per-IP token buckets and bearer-token
// authentication.
//
// Requests over the limit get 429 with a Retry-After header. Health and
// metrics paths are exempt. Auth accepts the token from the Authorization
// header or, for the WebSocket stream, the token query parameter.
package middleware
