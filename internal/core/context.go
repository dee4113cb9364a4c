package core

import "context"

type authContextKey struct{}

// WithAuthContext returns a copy of ctx carrying the given AuthContext.
func WithAuthContext(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, ac)
}

// AuthContextFrom returns the AuthContext attached by the authorization checkpoint, if any.
func AuthContextFrom(ctx context.Context) (*AuthContext, bool) {
	ac, ok := ctx.Value(authContextKey{}).(*AuthContext)
	if !ok || ac == nil {
		return nil, false
	}
	return ac, true
}
