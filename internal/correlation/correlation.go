// Package correlation carries the correlation identifier that ties together
// all inbound and outbound calls triggered by a single user action.
package correlation

import (
	"context"

	"github.com/rs/xid"
)

const Header = "X-Correlation-Id"

type contextKey struct{}

// New generates a fresh correlation ID.
func New() string {
	return xid.New().String()
}

// WithID returns a copy of ctx carrying the correlation ID.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext retrieves the correlation ID from the context.
func FromContext(ctx context.Context) string {
	id, ok := ctx.Value(contextKey{}).(string)
	if !ok {
		return ""
	}
	return id
}

// Ensure returns the correlation ID of ctx, generating and attaching one if absent.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := FromContext(ctx); id != "" {
		return ctx, id
	}
	id := New()
	return WithID(ctx, id), id
}
