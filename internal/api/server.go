package api

import (
	"fmt"
	"net/http"

	"github.com/oks-citadel/svcauth/internal/api/middleware"
	"github.com/oks-citadel/svcauth/internal/audit"
	"github.com/oks-citadel/svcauth/internal/core"
	"github.com/oks-citadel/svcauth/internal/guard"
	"github.com/oks-citadel/svcauth/pkg/client"
)

type Server struct {
	serviceName string

	endpoints *guard.Registry
	mandatory *guard.Guard
	optional  *guard.Guard
	internal  *guard.Guard

	auditor core.Auditor
	peers   *client.Registry
}

// DefaultEndpoints returns the authorization metadata the reference routes
// are registered with. Rules from the configuration file are applied on top.
func DefaultEndpoints() []core.EndpointRule {
	return []core.EndpointRule{
		{ID: HealthEndpoint, Metadata: core.EndpointMetadata{Bypass: true}},
		{ID: AboutEndpoint, Metadata: core.EndpointMetadata{Bypass: true}},
		{ID: WhoAmIEndpoint},
		{ID: PeerHealthEndpoint},
		{ID: DecisionsEndpoint, Metadata: core.EndpointMetadata{InternalOnly: true}},
	}
}

func NewServer(
	serviceName string,
	authenticator core.Authenticator,
	auditor core.Auditor,
	peers *client.Registry,
	rules []core.EndpointRule,
) (*Server, error) {
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}
	if peers == nil {
		peers = client.NewRegistry()
	}

	endpoints := guard.NewRegistry()
	if err := endpoints.RegisterRules(DefaultEndpoints()); err != nil {
		return nil, fmt.Errorf("registering default endpoints: %w", err)
	}
	if err := endpoints.RegisterRules(rules); err != nil {
		return nil, fmt.Errorf("registering configured endpoints: %w", err)
	}

	return &Server{
		serviceName: serviceName,
		endpoints:   endpoints,
		mandatory:   guard.NewMandatory(authenticator, endpoints),
		optional:    guard.NewOptional(authenticator, endpoints),
		internal:    guard.NewInternalOnly(authenticator, endpoints),
		auditor:     auditor,
		peers:       peers,
	}, nil
}

// Endpoints exposes the registry the guards consult.
func (s *Server) Endpoints() *guard.Registry {
	return s.endpoints
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// liveness and build info, bypassed by default
	s.handle(mux, s.mandatory, HealthEndpoint, s.handleHealth)
	s.handle(mux, s.mandatory, AboutEndpoint, s.handleAbout)

	// caller introspection, anonymous calls are allowed
	s.handle(mux, s.optional, WhoAmIEndpoint, s.handleWhoAmI)

	s.handle(mux, s.mandatory, PeerHealthEndpoint, s.handlePeerHealth)

	// service-to-service only
	s.handle(mux, s.internal, DecisionsEndpoint, s.handleDecisions)

	return middleware.RecoverMiddleware(
		middleware.CorrelationIDMiddleware(
			middleware.LoggingMiddleware(
				mux)))
}

func (s *Server) handle(mux *http.ServeMux, g *guard.Guard, endpointID string, h http.HandlerFunc) {
	mux.Handle(endpointID, middleware.Guard(g, s.auditor, endpointID)(h))
}
