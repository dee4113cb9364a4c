// Package client is a resilient HTTP client for calling peer services.
//
// Every call carries a service credential obtained from a token issuer (or
// the shared API key), a correlation ID and W3C trace context. Failed
// attempts are retried with exponential backoff when the failure is
// transient: transport errors, timeouts and 5xx, 408 or 429 responses.
//
//	c := client.New("http://user-service:8002",
//	    client.WithTargetService("user-service"),
//	    client.WithCallerService("job-service"),
//	    client.WithTokenIssuer(issuer),
//	)
//	resp, err := c.Get(ctx, "/users/42")
package client

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/oks-citadel/svcauth/internal/clock"
	"github.com/oks-citadel/svcauth/internal/core"
)

const (
	DefaultTimeout = 10 * time.Second

	tracerName = "github.com/oks-citadel/svcauth/pkg/client"
)

// Doer performs a single HTTP round trip. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls a single peer service.
type Client struct {
	baseURL string
	target  string
	caller  string

	tokens core.TokenIssuer
	apiKey string

	httpClient Doer
	timeout    time.Duration
	retry      RetryPolicy
	clock      clock.Clock
	headers    map[string]string

	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

type Option func(*Client)

// WithTargetService names the peer this client calls. It is used in logs,
// spans and health records.
func WithTargetService(name string) Option {
	return func(c *Client) {
		c.target = name
	}
}

// WithCallerService sets the identity this process asserts.
func WithCallerService(name string) Option {
	return func(c *Client) {
		c.caller = name
	}
}

// WithTokenIssuer authenticates calls with a freshly issued service token.
func WithTokenIssuer(issuer core.TokenIssuer) Option {
	return func(c *Client) {
		c.tokens = issuer
	}
}

// WithAPIKey authenticates calls with the shared API key when no token
// issuer is configured.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

func WithHTTPClient(d Doer) Option {
	return func(c *Client) {
		c.httpClient = d
	}
}

// WithTimeout sets the default timeout of a single attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		c.retry = p.normalized()
	}
}

func WithClock(cl clock.Clock) Option {
	return func(c *Client) {
		c.clock = cl
	}
}

// WithHeader adds a header to every call. Per-call headers still win.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers[key] = value
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracer = tp.Tracer(tracerName)
	}
}

func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(c *Client) {
		c.propagator = p
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		retry:      DefaultRetryPolicy,
		clock:      clock.Real(),
		headers:    make(map[string]string),
		tracer:     otel.Tracer(tracerName),
		propagator: propagation.TraceContext{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.target == "" {
		if u, err := url.Parse(c.baseURL); err == nil {
			c.target = u.Hostname()
		}
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) TargetService() string {
	return c.target
}

func (c *Client) RetryPolicy() RetryPolicy {
	return c.retry
}
