// Package auth decides whether inbound request headers carry a valid service
// credential. It never reports why a credential was rejected: the absence of
// an AuthContext is the uniform failure signal.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/oks-citadel/svcauth/internal/clock"
	"github.com/oks-citadel/svcauth/internal/core"
)

// TokenVerifier verifies a signed service token.
type TokenVerifier interface {
	Verify(raw string) (*core.ServiceIdentityClaim, error)
}

var _ core.Authenticator = (*Verifier)(nil)

// Verifier authenticates service calls by signed token, falling back to the
// shared API key.
type Verifier struct {
	tokens TokenVerifier
	apiKey string
	clock  clock.Clock
}

type Option func(*Verifier)

// WithAPIKey enables the shared API key fallback.
func WithAPIKey(key string) Option {
	return func(v *Verifier) {
		v.apiKey = key
	}
}

func WithClock(c clock.Clock) Option {
	return func(v *Verifier) {
		v.clock = c
	}
}

func NewVerifier(tokens TokenVerifier, opts ...Option) *Verifier {
	v := &Verifier{
		tokens: tokens,
		clock:  clock.Real(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Authenticate returns the authentication context for the given headers, or
// false if they do not constitute a valid service credential.
func (v *Verifier) Authenticate(headers http.Header) (*core.AuthContext, bool) {
	if raw := SignedToken(headers); raw != "" && v.tokens != nil {
		claim, err := v.tokens.Verify(raw)
		if err == nil {
			return &core.AuthContext{
				IsServiceRequest:  true,
				CallerServiceName: claim.Subject,
				Method:            core.AuthMethodSignedToken,
				Claim:             claim,
				VerifiedAt:        v.clock.Now(),
			}, true
		}
		// fall through to the API key, the reason stays in the logs
		log.Debug().Err(err).Msg("service token rejected")
	}

	if key := headers.Get(core.HeaderServiceAPIKey); key != "" && v.apiKeyMatches(key) {
		caller := strings.TrimSpace(headers.Get(core.HeaderServiceName))
		if caller == "" {
			caller = core.UnknownService
		}
		return &core.AuthContext{
			IsServiceRequest:  true,
			CallerServiceName: caller,
			Method:            core.AuthMethodAPIKey,
			VerifiedAt:        v.clock.Now(),
		}, true
	}

	return nil, false
}

func (v *Verifier) apiKeyMatches(presented string) bool {
	if v.apiKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(v.apiKey)) == 1
}

// SignedToken extracts the signed service token from the headers. The
// dedicated header wins over a bearer Authorization header.
func SignedToken(headers http.Header) string {
	if tok := strings.TrimSpace(headers.Get(core.HeaderServiceToken)); tok != "" {
		return tok
	}
	auth := headers.Get(core.HeaderAuthorization)
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
