// Package tenantcontext carries the authenticated caller through a request.
package tenantcontext

import (
	"context"

	"github.com/smallbiznis/taskhub/internal/authorization"
)

type callerKey struct{}

// WithCaller stores the caller resolved by the auth middleware.
func WithCaller(ctx context.Context, caller authorization.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFromContext returns the caller, if one was attached.
func CallerFromContext(ctx context.Context) (authorization.Caller, bool) {
	if ctx == nil {
		return authorization.Caller{}, false
	}
	caller, ok := ctx.Value(callerKey{}).(authorization.Caller)
	if !ok || caller.UserID == 0 {
		return authorization.Caller{}, false
	}
	return caller, true
}

// MustCaller returns the caller or authorization.ErrUnauthenticated.
func MustCaller(ctx context.Context) (authorization.Caller, error) {
	caller, ok := CallerFromContext(ctx)
	if !ok {
		return authorization.Caller{}, authorization.ErrUnauthenticated
	}
	return caller, nil
}
