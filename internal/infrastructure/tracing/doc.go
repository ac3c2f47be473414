// Package tracing tags API requests and health RPCs with trace and span ids
// and logs each finished span through zap.
//
// The renderer may send X-Trace-ID and X-Span-ID to join requests issued
// from one UI action. Both are echoed back. Malformed ids are replaced by
// fresh request ids.
package tracing
