package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/oks-citadel/svcauth/internal/audit"
	"github.com/oks-citadel/svcauth/internal/core"
	"github.com/oks-citadel/svcauth/internal/correlation"
)

// RequestOptions configures a single call.
type RequestOptions struct {
	Method string
	Query  url.Values

	// PathParams replace {name} placeholders in the path, escaped.
	PathParams map[string]string

	// Body is sent as JSON unless it is a []byte or string.
	Body any

	// Timeout overrides the client's per-attempt timeout.
	Timeout time.Duration

	// DisableRetry makes exactly one attempt.
	DisableRetry bool

	// Headers are applied last and override every generated header.
	Headers map[string]string
}

type CallOption func(*RequestOptions)

func WithQueryParam(key string, value any) CallOption {
	return func(o *RequestOptions) {
		if o.Query == nil {
			o.Query = url.Values{}
		}
		o.Query.Add(key, fmt.Sprint(value))
	}
}

func WithPathParam(key, value string) CallOption {
	return func(o *RequestOptions) {
		if o.PathParams == nil {
			o.PathParams = make(map[string]string)
		}
		o.PathParams[key] = value
	}
}

func WithCallTimeout(d time.Duration) CallOption {
	return func(o *RequestOptions) {
		o.Timeout = d
	}
}

func WithoutRetry() CallOption {
	return func(o *RequestOptions) {
		o.DisableRetry = true
	}
}

func WithCallHeader(key, value string) CallOption {
	return func(o *RequestOptions) {
		if o.Headers == nil {
			o.Headers = make(map[string]string)
		}
		o.Headers[key] = value
	}
}

func (c *Client) Get(ctx context.Context, path string, opts ...CallOption) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil, opts)
}

func (c *Client) Delete(ctx context.Context, path string, opts ...CallOption) (*Response, error) {
	return c.do(ctx, http.MethodDelete, path, nil, opts)
}

func (c *Client) Post(ctx context.Context, path string, body any, opts ...CallOption) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, body, opts)
}

func (c *Client) Put(ctx context.Context, path string, body any, opts ...CallOption) (*Response, error) {
	return c.do(ctx, http.MethodPut, path, body, opts)
}

func (c *Client) Patch(ctx context.Context, path string, body any, opts ...CallOption) (*Response, error) {
	return c.do(ctx, http.MethodPatch, path, body, opts)
}

func (c *Client) do(ctx context.Context, method, path string, body any, callOpts []CallOption) (*Response, error) {
	opts := RequestOptions{Method: method, Body: body}
	for _, opt := range callOpts {
		opt(&opts)
	}
	return c.Request(ctx, path, opts)
}

// Request performs a call with retries. It returns the response of the first
// successful attempt, or the error of the last one.
func (c *Client) Request(ctx context.Context, path string, opts RequestOptions) (*Response, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	payload, err := encodeBody(opts.Body)
	if err != nil {
		return nil, err
	}

	ctx, correlationID := correlation.Ensure(ctx)
	target := c.url().
		setPath(path).
		setPathParams(opts.PathParams).
		addQuery(opts.Query).
		build()

	maxAttempts := c.retry.MaxAttempts
	if opts.DisableRetry {
		maxAttempts = 1
	}

	ctx, span := c.tracer.Start(ctx, "svcauth.client "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.full", target),
			attribute.String("peer.service", c.target),
			attribute.String("correlation.id", correlationID),
		),
	)
	defer span.End()

	logger := loggerFrom(ctx).With().
		Str("correlation_id", correlationID).
		Str("target_service", c.target).
		Str("method", method).
		Str("url", target).
		Logger()

	start := c.clock.Now()
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			lastErr = errors.Join(ctxErr, lastErr)
			break
		}
		resp, err := c.attempt(ctx, method, target, payload, correlationID, opts, attempt)
		if err == nil {
			logger.Debug().
				Int("status", resp.Status).
				Int("attempt", attempt).
				Dur("duration", c.clock.Now().Sub(start)).
				Msg("client.request.succeeded")
			span.SetAttributes(
				attribute.Int("http.response.status_code", resp.Status),
				attribute.Int("svcauth.attempts", attempt),
			)
			return resp, nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt == maxAttempts {
			break
		}

		delay := c.retry.Delay(attempt)
		logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Dur("delay", delay).
			Msg("client.request.retrying")

		select {
		case <-c.clock.After(delay):
		case <-ctx.Done():
		}
	}

	logger.Error().
		Err(lastErr).
		Dur("duration", c.clock.Now().Sub(start)).
		Msg("client.request.failed")
	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, method, target string, payload []byte, correlationID string, opts RequestOptions, n int) (*Response, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	attemptCtx, span := c.tracer.Start(attemptCtx, "svcauth.client.attempt",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("svcauth.attempt", n)),
	)
	defer span.End()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if err := c.applyHeaders(req.Header, correlationID, opts.Headers); err != nil {
		return nil, err
	}
	c.propagator.Inject(attemptCtx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = c.classify(ctx, attemptCtx, timeout, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		err = c.classify(ctx, attemptCtx, timeout, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := parseErrorResponse(resp, raw)
		span.SetStatus(codes.Error, apiErr.Error())
		return nil, apiErr
	}
	return newResponse(resp, raw)
}

// classify maps a round-trip failure to a TimeoutError, a TransportError or,
// when the caller gave up, the caller's context error.
func (c *Client) classify(parent, attemptCtx context.Context, timeout time.Duration, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Timeout: timeout, Err: err}
	}
	return &TransportError{Err: err}
}

// applyHeaders sets the generated headers, then the client defaults, then
// the per-call headers.
func (c *Client) applyHeaders(h http.Header, correlationID string, custom map[string]string) error {
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	h.Set(correlation.Header, correlationID)
	h.Set("User-Agent", audit.CreateUserAgent(c.caller, c.target))

	switch {
	case c.tokens != nil && c.caller != "":
		token, err := c.tokens.Issue(c.caller)
		if err != nil {
			return fmt.Errorf("issuing service token: %w", err)
		}
		h.Set(core.HeaderServiceToken, token)
	case c.apiKey != "":
		h.Set(core.HeaderServiceAPIKey, c.apiKey)
		if c.caller != "" {
			h.Set(core.HeaderServiceName, c.caller)
		}
	}

	for k, v := range c.headers {
		h.Set(k, v)
	}
	for k, v := range custom {
		h.Set(k, v)
	}
	return nil
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		payload, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		return payload, nil
	}
}

// loggerFrom returns the request-scoped logger, falling back to the global one.
func loggerFrom(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}
