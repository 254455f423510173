package eventing

import "context"

type contextKey string

const (
	contextKeyCorr   contextKey = "eventing.correlation_id"
	contextKeyTarget contextKey = "eventing.target_id"
)

// WithCorrelationID sets correlation id in context.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, contextKeyCorr, correlationID)
}

// CorrelationIDFromContext returns the correlation id if available.
func CorrelationIDFromContext(ctx context.Context) string {
	if value := ctx.Value(contextKeyCorr); value != nil {
		if corr, ok := value.(string); ok {
			return corr
		}
	}
	return ""
}

// WithTargetID sets the device target id in context.
func WithTargetID(ctx context.Context, targetID string) context.Context {
	return context.WithValue(ctx, contextKeyTarget, targetID)
}

// TargetIDFromContext returns the target id if available.
func TargetIDFromContext(ctx context.Context) string {
	if value := ctx.Value(contextKeyTarget); value != nil {
		if target, ok := value.(string); ok {
			return target
		}
	}
	return ""
}
