// Package ctxutil provides context utility functions.
package ctxutil

import "context"

// Canceled checks if the context has been canceled or exceeded its deadline.
// Returns the context error if done (Canceled or DeadlineExceeded), nil otherwise.
// Stages call it at entry so a canceled run stops before starting new work.
func Canceled(ctx context.Context) error {
	return ctx.Err()
}

// Detached returns a context that carries the values of ctx (logger, trace
// span) but is never canceled. It is used to persist run state after the run
// context was canceled.
func Detached(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
