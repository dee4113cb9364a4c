package core

import "time"

// TokenTypeService is the only token type accepted as a service credential.
// Tokens minted for user sessions carry a different type and must never be
// replayed against service endpoints.
const TokenTypeService = "service"

// ServiceIdentityClaim is the signed payload asserting which service is calling.
type ServiceIdentityClaim struct {
	// Subject is the name of the calling service.
	Subject string `json:"sub"`

	// Type is always TokenTypeService for service tokens.
	Type string `json:"type"`

	IssuedAt  time.Time  `json:"iat"`
	ExpiresAt *time.Time `json:"exp,omitempty"`

	// TokenID uniquely identifies a single issued token.
	TokenID string `json:"jti,omitempty"`

	// Claims contains optional free-form claims attached at issue time.
	Claims map[string]any `json:"claims,omitempty"`
}

// AuthMethod describes how a caller proved its identity.
type AuthMethod string

const (
	AuthMethodAPIKey      AuthMethod = "api-key"
	AuthMethodSignedToken AuthMethod = "signed-token"
)

// UnknownService is used as caller name when an API key caller did not
// declare itself.
const UnknownService = "unknown"

// AuthContext is the request-scoped result of a successful verification.
// It is attached to the inbound request and discarded with it.
type AuthContext struct {
	IsServiceRequest  bool                  `json:"is_service_request"`
	CallerServiceName string                `json:"caller_service_name"`
	Method            AuthMethod            `json:"method"`
	Claim             *ServiceIdentityClaim `json:"claim,omitempty"`
	VerifiedAt        time.Time             `json:"verified_at"`
}
