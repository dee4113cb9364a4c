package core

import "net/http"

// TokenIssuer produces signed, time-bounded service credentials.
type TokenIssuer interface {
	Issue(serviceName string) (string, error)
}

// Authenticator decides whether request headers carry a valid service credential.
// Absence of a context is the only failure signal; it never returns an error.
type Authenticator interface {
	Authenticate(headers http.Header) (*AuthContext, bool)
}
