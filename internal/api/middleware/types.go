package middleware

// Context keys for middleware-populated request-scoped data.
type contextKey string

const (
	// RequestIDContextKey is the context key for request ID.
	RequestIDContextKey contextKey = "request_id"

	// CredentialContextKey is the context key for the authenticated
	// credential (internal/auth.Credential), set by AuthMiddleware.
	CredentialContextKey contextKey = "credential"

	// StartTimeContextKey is the context key for request start time.
	StartTimeContextKey contextKey = "start_time"
)

// HTTP headers
const (
	RequestIDHeader = "X-Request-ID"

	// APIKeyHeader carries the opaque credential secret (spec §6.1
	// "Credential presentation: an X-Api-Key header").
	APIKeyHeader = "X-Api-Key"

	RateLimitLimitHeader     = "X-RateLimit-Limit"
	RateLimitRemainingHeader = "X-RateLimit-Remaining"
	RateLimitResetHeader     = "X-RateLimit-Reset"

	CacheControlHeader = "Cache-Control"
	ETagHeader         = "ETag"
	IfNoneMatchHeader  = "If-None-Match"

	APIVersionHeader = "X-API-Version"
)
