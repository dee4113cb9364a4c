package api

import "github.com/oks-citadel/svcauth/pkg/client"

const (
	HealthCheckRoute = "/health"
	AboutRoute       = "/about"

	WhoAmIRoute     = "/v1/whoami"
	PeerHealthRoute = client.PeerHealthPath

	InternalParent = "/v1/internal/"
	DecisionsRoute = InternalParent + "decisions"
)

// Endpoint identifiers double as mux patterns and as keys of the guard
// registry, so config overrides can target them directly.
const (
	HealthEndpoint     = "GET " + HealthCheckRoute
	AboutEndpoint      = "GET " + AboutRoute
	WhoAmIEndpoint     = "GET " + WhoAmIRoute
	PeerHealthEndpoint = "GET " + PeerHealthRoute
	DecisionsEndpoint  = "GET " + DecisionsRoute
)
