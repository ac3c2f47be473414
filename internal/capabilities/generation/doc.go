// Package generation is the content-generation capability consumed by the
// study assistant.
//
// Two providers are supported: a Gemini-style REST API (resty over a
// retryablehttp transport) and any OpenAI-compatible chat API (go-openai).
// Both share the same guards: a token-bucket limiter and a circuit breaker.
// Without an API key the capability is Disabled and every call returns
// ErrUnavailable, which callers surface as an inline status.
package generation
