package telemetry

import (
	"context"

	"github.com/kari-ai/core/internal/domain"
	"go.uber.org/zap"
)

// With returns a child logger carrying the request's correlation ID as a
// first-class structured field (REDESIGN FLAG §9: correlation ID is read
// out of context.Context, never reconstructed from logging-handler
// "extras"). provider/policy are optional and omitted when empty.
func With(logger *zap.Logger, ctx context.Context, provider, policy string) *zap.Logger {
	fields := []zap.Field{zap.String("correlation_id", domain.CorrelationIDFromContext(ctx))}
	if provider != "" {
		fields = append(fields, zap.String("provider", provider))
	}
	if policy != "" {
		fields = append(fields, zap.String("policy", policy))
	}
	return logger.With(fields...)
}
