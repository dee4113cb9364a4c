package client

import (
	"context"
	"fmt"
	"net/http"
)

const HealthPath = "/health"

// PeerHealthPath is where a service reports the health of one of its own peers.
const PeerHealthPath = "/v1/peers/{name}/health"

const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
	HealthError    = "error"
)

// HealthStatus is the reported health of a peer.
type HealthStatus struct {
	Status  string         `json:"status"`
	Service string         `json:"service"`
	Details map[string]any `json:"details,omitempty"`
}

func (h HealthStatus) Healthy() bool {
	return h.Status == HealthOK
}

// HealthCheck queries the peer's health endpoint once. Failures are reported
// in the returned status, never as an error.
func (c *Client) HealthCheck(ctx context.Context) HealthStatus {
	return c.probe(ctx, HealthPath, nil, c.target)
}

// PeerHealth asks the target service to probe the peer it knows as peer.
func (c *Client) PeerHealth(ctx context.Context, peer string) HealthStatus {
	return c.probe(ctx, PeerHealthPath, map[string]string{"name": peer}, peer)
}

func (c *Client) probe(ctx context.Context, path string, params map[string]string, service string) HealthStatus {
	resp, err := c.Request(ctx, path, RequestOptions{
		Method:       http.MethodGet,
		PathParams:   params,
		DisableRetry: true,
	})
	if err != nil {
		return unhealthy(service, err.Error())
	}

	body, ok := resp.Data.(map[string]any)
	if !ok {
		return unhealthy(service, fmt.Sprintf("unexpected health response: %v", resp.Data))
	}

	status := HealthStatus{Service: service}
	switch s, _ := body["status"].(string); s {
	case HealthOK, HealthDegraded, HealthError:
		status.Status = s
	default:
		return unhealthy(service, fmt.Sprintf("unexpected health status %q", s))
	}
	if service, ok := body["service"].(string); ok && service != "" {
		status.Service = service
	}
	for k, v := range body {
		if k == "status" || k == "service" {
			continue
		}
		if status.Details == nil {
			status.Details = make(map[string]any)
		}
		status.Details[k] = v
	}
	return status
}

func unhealthy(service, reason string) HealthStatus {
	return HealthStatus{
		Status:  HealthError,
		Service: service,
		Details: map[string]any{"error": reason},
	}
}
