package domain

import "context"

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// WithCorrelationID attaches a correlation ID to ctx so it threads,
// unchanged, through every span and log line of the request (I7).
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext returns the correlation ID attached to ctx, or
// "" if none was set.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

// Scope identifies the tenant/user/session a recall or write targets.
type Scope struct {
	TenantID  string
	UserID    string
	SessionID string
}
