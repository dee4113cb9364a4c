package api

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/oks-citadel/svcauth/internal/api/presenter"
	"github.com/oks-citadel/svcauth/internal/buildinfo"
	"github.com/oks-citadel/svcauth/internal/core"
	"github.com/oks-citadel/svcauth/internal/correlation"
	"github.com/oks-citadel/svcauth/pkg/client"
)

const defaultDecisionLimit = 50

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// handleHealth reports liveness in the shape peers' health checks expect.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, HealthResponse{
		Status:  client.HealthOK,
		Service: s.serviceName,
		Version: buildinfo.Version,
	}, http.StatusOK)
}

// handleAbout responds with service information including version and commit hash.
func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, buildinfo.GetBuildInfo(s.serviceName), http.StatusOK)
}

type WhoAmIResponse struct {
	Authenticated bool            `json:"authenticated"`
	Caller        string          `json:"caller,omitempty"`
	Method        core.AuthMethod `json:"method,omitempty"`
	Claims        map[string]any  `json:"claims,omitempty"`
	CorrelationID string          `json:"correlation_id"`
}

func (s *Server) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := WhoAmIResponse{
		CorrelationID: correlation.FromContext(ctx),
	}
	if ac, ok := core.AuthContextFrom(ctx); ok && ac.IsServiceRequest {
		resp.Authenticated = true
		resp.Caller = ac.CallerServiceName
		resp.Method = ac.Method
		if ac.Claim != nil {
			resp.Claims = ac.Claim.Claims
		}
	}
	presenter.JSON(w, r, resp, http.StatusOK)
}

// handlePeerHealth probes a configured peer with the resilient client.
func (s *Server) handlePeerHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := r.PathValue("name")

	c, err := s.peers.Get(name)
	if err != nil {
		log.Ctx(ctx).Warn().Str("peer", name).Msg("health check for unknown peer")
		presenter.Error(w, r, "unknown peer", http.StatusNotFound)
		return
	}

	status := c.HealthCheck(ctx)
	code := http.StatusOK
	if status.Status == client.HealthError {
		code = http.StatusBadGateway
	}
	presenter.JSON(w, r, status, code)
}

// handleDecisions lists recent checkpoint decisions. Auditors that cannot be
// read back get 501.
func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	reader, ok := s.auditor.(core.AuditReader)
	if !ok {
		presenter.Error(w, r, "decision log is not queryable", http.StatusNotImplemented)
		return
	}

	// filters
	q := r.URL.Query()
	limitStr := q.Get("limit")

	filterCorrelationID := q.Get("correlation_id")
	filterCaller := q.Get("caller")
	filterEndpoint := q.Get("endpoint")

	limit := defaultDecisionLimit
	if limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil || v < 0 {
			logger.Warn().Str("limit", limitStr).Msg("invalid limit parameter")
			presenter.Error(w, r, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = v
	}

	var (
		entries []core.AuditEntry
		err     error
	)
	if filterCorrelationID != "" || filterCaller != "" || filterEndpoint != "" {
		entries, err = reader.Find(func(entry core.AuditEntry) bool {
			if filterCorrelationID != "" && entry.ID != filterCorrelationID {
				return false
			}
			if filterCaller != "" && entry.Caller != filterCaller {
				return false
			}
			if filterEndpoint != "" && entry.Endpoint != filterEndpoint {
				return false
			}
			return true
		}, limit)
	} else {
		entries, err = reader.GetRecent(limit)
	}
	if err != nil {
		logger.Error().Err(err).Msg("failed to retrieve decisions")
		presenter.Error(w, r, "failed to retrieve decisions", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []core.AuditEntry{}
	}

	presenter.JSON(w, r, entries, http.StatusOK)
}
