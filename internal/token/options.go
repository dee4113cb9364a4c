package token

import (
	"time"

	"github.com/oks-citadel/svcauth/internal/clock"
)

// DefaultTTL is the validity window of issued tokens unless configured otherwise.
const DefaultTTL = 15 * time.Minute

type options struct {
	ttl    time.Duration
	issuer string
	leeway time.Duration
	clock  clock.Clock
}

// Option configures an Issuer or a Verifier.
type Option func(*options)

// WithTTL sets the token lifetime. A non-positive TTL issues tokens without expiry.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.ttl = ttl
	}
}

// WithIssuerName sets the "iss" claim on issue and requires it on verification.
func WithIssuerName(name string) Option {
	return func(o *options) {
		o.issuer = name
	}
}

// WithLeeway tolerates clock skew between services when checking time claims.
func WithLeeway(d time.Duration) Option {
	return func(o *options) {
		o.leeway = d
	}
}

func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

func buildOptions(opts []Option) options {
	o := options{
		ttl:   DefaultTTL,
		clock: clock.Real(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
