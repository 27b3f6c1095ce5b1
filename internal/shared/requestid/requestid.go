// Package requestid carries the originating request ID through contexts and
// queue hops so log lines from the API, the worker and the sweeper correlate.
package requestid

import "context"

type ctxKey struct{}

// With attaches a request ID to ctx. Empty IDs are ignored.
func With(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, requestID)
}

// From returns the request ID carried by ctx, or "".
func From(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(ctxKey{}).(string); ok {
		return id
	}
	return ""
}

// Detach returns a background context that keeps only the request ID, for
// work that must outlive the request.
func Detach(ctx context.Context) context.Context {
	id := From(ctx)
	if id == "" {
		return context.Background()
	}
	return With(context.Background(), id)
}
