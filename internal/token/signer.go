package token

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMissingSecret is returned when a signer is constructed without a key.
// Callers treat it as a fatal startup error.
var ErrMissingSecret = errors.New("signing secret is not configured")

// Signer signs service claims and parses signed tokens back into claims.
type Signer interface {
	Sign(claims *Claims) (string, error)
	Parse(raw string, opts ...jwt.ParserOption) (*Claims, error)
}

var _ Signer = (*HMACSigner)(nil)

// HMACSigner signs tokens with a shared secret (HS256).
type HMACSigner struct {
	key    []byte
	method *jwt.SigningMethodHMAC
}

func NewHMACSigner(secret string) (*HMACSigner, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &HMACSigner{
		key:    []byte(secret),
		method: jwt.SigningMethodHS256,
	}, nil
}

func (s *HMACSigner) Sign(claims *Claims) (string, error) {
	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("signing service token: %w", err)
	}
	return signed, nil
}

func (s *HMACSigner) Parse(raw string, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append(opts, jwt.WithValidMethods([]string{s.method.Alg()}))

	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return s.key, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	return &claims, nil
}
