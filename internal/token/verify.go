package token

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/oks-citadel/svcauth/internal/core"
)

// Errors returned by Verify. They are meant for logs only and must never be
// reported to the caller of a guarded endpoint.
var (
	ErrInvalidToken   = errors.New("invalid service token")
	ErrWrongTokenType = errors.New("token is not a service token")
	ErrMissingSubject = errors.New("service token has no subject")
)

// Verifier checks signed service tokens.
type Verifier struct {
	signer Signer
	opts   options
}

func NewVerifier(signer Signer, opts ...Option) *Verifier {
	return &Verifier{
		signer: signer,
		opts:   buildOptions(opts),
	}
}

// Verify checks signature, expiry and token type and returns the decoded claim.
func (v *Verifier) Verify(raw string) (*core.ServiceIdentityClaim, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithTimeFunc(v.opts.clock.Now),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.opts.leeway),
	}
	if v.opts.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.opts.issuer))
	}

	claims, err := v.signer.Parse(raw, parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Type != core.TokenTypeService {
		return nil, fmt.Errorf("%w: got type '%s'", ErrWrongTokenType, claims.Type)
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	return claims.Identity(), nil
}
