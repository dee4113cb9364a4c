package token

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/oks-citadel/svcauth/internal/audit"
	"github.com/oks-citadel/svcauth/internal/core"
)

var _ core.TokenIssuer = (*Issuer)(nil)

// Issuer mints signed service identity tokens.
type Issuer struct {
	signer Signer
	opts   options
}

func NewIssuer(signer Signer, opts ...Option) *Issuer {
	return &Issuer{
		signer: signer,
		opts:   buildOptions(opts),
	}
}

// Issue produces a signed token asserting that serviceName is the caller.
func (i *Issuer) Issue(serviceName string) (string, error) {
	return i.IssueWithClaims(serviceName, nil)
}

// IssueWithClaims is like Issue but embeds additional free-form claims.
func (i *Issuer) IssueWithClaims(serviceName string, extra map[string]any) (string, error) {
	if serviceName == "" {
		return "", errors.New("service name is required to issue a token")
	}

	claims := newClaims(serviceName, i.opts.issuer, i.opts.clock.Now(), i.opts.ttl, uuid.NewString(), extra)
	signed, err := i.signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("issuing token for '%s': %w", serviceName, err)
	}

	log.Debug().
		Str("sub", serviceName).
		Str("jti", claims.ID).
		Str("fingerprint", audit.CalculateFingerprint(signed)).
		Msg("token.issued")

	return signed, nil
}
