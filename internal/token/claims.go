package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/oks-citadel/svcauth/internal/core"
)

// Claims is the JWT body of a service token:
// {sub, type="service", iat, exp?, jti?, iss?, claims?}.
type Claims struct {
	Type  string         `json:"type"`
	Extra map[string]any `json:"claims,omitempty"`
	jwt.RegisteredClaims
}

// Identity converts the JWT claims into the domain claim.
func (c *Claims) Identity() *core.ServiceIdentityClaim {
	claim := &core.ServiceIdentityClaim{
		Subject: c.Subject,
		Type:    c.Type,
		TokenID: c.ID,
		Claims:  c.Extra,
	}
	if c.IssuedAt != nil {
		claim.IssuedAt = c.IssuedAt.Time.UTC()
	}
	if c.ExpiresAt != nil {
		exp := c.ExpiresAt.Time.UTC()
		claim.ExpiresAt = &exp
	}
	return claim
}

func newClaims(serviceName, issuer string, now time.Time, ttl time.Duration, id string, extra map[string]any) *Claims {
	claims := &Claims{
		Type:  core.TokenTypeService,
		Extra: extra,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   issuer,
			Subject:  serviceName,
			IssuedAt: jwt.NewNumericDate(now),
			ID:       id,
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return claims
}
