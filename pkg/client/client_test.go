package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/oks-citadel/svcauth/internal/clock"
	"github.com/oks-citadel/svcauth/internal/core"
	"github.com/oks-citadel/svcauth/internal/correlation"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

type staticIssuer struct {
	token string
	err   error
	calls atomic.Int32
}

func (s *staticIssuer) Issue(string) (string, error) {
	s.calls.Add(1)
	return s.token, s.err
}

func newTestClient(rt roundTripFunc, fake *clock.Fake, opts ...Option) *Client {
	all := []Option{
		WithTargetService("user-service"),
		WithCallerService("job-service"),
		WithHTTPClient(&http.Client{Transport: rt}),
		WithClock(fake),
		WithRetryPolicy(RetryPolicy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond}),
	}
	return New("http://user-service:8002", append(all, opts...)...)
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: 500 * time.Millisecond}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: 500 * time.Millisecond},
		{attempt: 1, want: 500 * time.Millisecond},
		{attempt: 2, want: time.Second},
		{attempt: 3, want: 2 * time.Second},
		{attempt: 4, want: 4 * time.Second},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt %d", tt.attempt), func(t *testing.T) {
			assert.Equal(t, tt.want, p.Delay(tt.attempt))
		})
	}
}

func TestRetryPolicy_DelayDoesNotOverflow(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 40, BaseDelay: 10 * time.Second}

	prev := time.Duration(0)
	for attempt := 1; attempt <= 40; attempt++ {
		d := p.Delay(attempt)
		require.Positive(t, d, "attempt %d", attempt)
		require.GreaterOrEqual(t, d, prev, "attempt %d", attempt)
		prev = d
	}
	assert.Equal(t, MaxDelay, p.Delay(31))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transport", &TransportError{Err: errors.New("connection refused")}, true},
		{"timeout", &TimeoutError{Timeout: time.Second}, true},
		{"500", &APIError{StatusCode: 500}, true},
		{"503", &APIError{StatusCode: 503}, true},
		{"408", &APIError{StatusCode: 408}, true},
		{"429", &APIError{StatusCode: 429}, true},
		{"400", &APIError{StatusCode: 400}, false},
		{"401", &APIError{StatusCode: 401}, false},
		{"404", &APIError{StatusCode: 404}, false},
		{"wrapped", fmt.Errorf("calling peer: %w", &APIError{StatusCode: 502}), true},
		{"cancelled", context.Canceled, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestRequest_RetriesServerErrorsWithBackoff(t *testing.T) {
	var calls atomic.Int32
	fake := clock.NewFake(time.Now())
	c := newTestClient(func(r *http.Request) (*http.Response, error) {
		calls.Add(1)
		return jsonResponse(http.StatusServiceUnavailable, `{"error":"overloaded","code":"UNAVAILABLE"}`), nil
	}, fake)

	_, err := c.Get(context.Background(), "/users/42")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "overloaded", apiErr.Message)
	assert.Equal(t, "UNAVAILABLE", apiErr.Code)
	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, fake.Sleeps())
}

func TestRequest_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	fake := clock.NewFake(time.Now())
	c := newTestClient(func(r *http.Request) (*http.Response, error) {
		calls.Add(1)
		return jsonResponse(http.StatusNotFound, `{"error":"user not found"}`), nil
	}, fake)

	_, err := c.Get(context.Background(), "/users/404")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.False(t, IsRetryable(err))
	assert.EqualValues(t, 1, calls.Load())
	assert.Empty(t, fake.Sleeps())
}

func TestRequest_RecoversFromTransportErrors(t *testing.T) {
	var calls atomic.Int32
	fake := clock.NewFake(time.Now())
	c := newTestClient(func(r *http.Request) (*http.Response, error) {
		if calls.Add(1) <= 2 {
			return nil, errors.New("dial tcp 10.0.0.7:8002: connect: connection refused")
		}
		return jsonResponse(http.StatusOK, `{"id":42}`), nil
	}, fake)

	resp, err := c.Get(context.Background(), "/users/42")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "OK", resp.StatusText)
	assert.Equal(t, map[string]any{"id": float64(42)}, resp.Data)
	assert.EqualValues(t, 3, calls.Load())

	sleeps := fake.Sleeps()
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, sleeps)
	assert.Equal(t, 300*time.Millisecond, sleeps[0]+sleeps[1])

	type user struct {
		ID int `json:"id"`
	}
	u, err := Decode[user](resp)
	require.NoError(t, err)
	assert.Equal(t, 42, u.ID)
}

func TestRequest_ExhaustedTransportErrors(t *testing.T) {
	fake := clock.NewFake(time.Now())
	c := newTestClient(func(r *http.Request) (*http.Response, error) {
		return nil, errors.New("connection reset by peer")
	}, fake)

	_, err := c.Post(context.Background(), "/jobs", map[string]string{"kind": "sync"})

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Len(t, fake.Sleeps(), 2)
}

func TestRequest_AttemptTimeout(t *testing.T) {
	fake := clock.NewFake(time.Now())
	c := newTestClient(func(r *http.Request) (*http.Response, error) {
		<-r.Context().Done()
		return nil, r.Context().Err()
	}, fake, WithTimeout(20*time.Millisecond))

	_, err := c.Get(context.Background(), "/slow", WithoutRetry())

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 20*time.Millisecond, timeoutErr.Timeout)
	assert.True(t, IsRetryable(err))
}

func TestRequest_CallTimeoutOverridesClientTimeout(t *testing.T) {
	fake := clock.NewFake(time.Now())
	c := newTestClient(func(r *http.Request) (*http.Response, error) {
		<-r.Context().Done()
		return nil, r.Context().Err()
	}, fake, WithTimeout(time.Hour))

	_, err := c.Get(context.Background(), "/slow", WithoutRetry(), WithCallTimeout(10*time.Millisecond))

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 10*time.Millisecond, timeoutErr.Timeout)
}

func TestRequest_StopsWhenCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	fake := clock.NewFake(time.Now())
	c := newTestClient(func(r *http.Request) (*http.Response, error) {
		calls.Add(1)
		cancel()
		return jsonResponse(http.StatusBadGateway, `{}`), nil
	}, fake, WithRetryPolicy(RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second}))

	_, err := c.Get(ctx, "/users")

	require.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 1, calls.Load())
}

func TestRequest_SignedTokenHeaders(t *testing.T) {
	issuer := &staticIssuer{token: "signed.jwt.token"}
	var got http.Header
	fake := clock.NewFake(time.Now())
	c := newTestClient(func(r *http.Request) (*http.Response, error) {
		got = r.Header.Clone()
		return jsonResponse(http.StatusOK, `{}`), nil
	}, fake, WithTokenIssuer(issuer), WithAPIKey("ignored-when-issuer-set"))

	ctx := correlation.WithID(context.Background(), "corr-123")
	_, err := c.Get(ctx, "/users/42")
	require.NoError(t, err)

	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, "corr-123", got.Get(correlation.Header))
	assert.Equal(t, "signed.jwt.token", got.Get(core.HeaderServiceToken))
	assert.Empty(t, got.Get(core.HeaderServiceAPIKey))
	assert.Contains(t, got.Get("User-Agent"), "caller=job-service")
	assert.Contains(t, got.Get("User-Agent"), "target=user-service")
	assert.EqualValues(t, 1, issuer.calls.Load())
}

func TestRequest_APIKeyHeaders(t *testing.T) {
	var got http.Header
	fake := clock.NewFake(time.Now())
	c := newTestClient(func(r *http.Request) (*http.Response, error) {
		got = r.Header.Clone()
		return jsonResponse(http.StatusOK, `{}`), nil
	}, fake, WithAPIKey("shared-key"))

	_, err := c.Get(context.Background(), "/users")
	require.NoError(t, err)

	assert.Equal(t, "shared-key", got.Get(core.HeaderServiceAPIKey))
	assert.Equal(t, "job-service", got.Get(core.HeaderServiceName))
	assert.Empty(t, got.Get(core.HeaderServiceToken))
	assert.NotEmpty(t, got.Get(correlation.Header), "a correlation id is generated when absent")
}

func TestRequest_CustomHeadersWin(t *testing.T) {
	issuer := &staticIssuer{token: "generated"}
	var got http.Header
	fake := clock.NewFake(time.Now())
	c := newTestClient(func(r *http.Request) (*http.Response, error) {
		got = r.Header.Clone()
		return jsonResponse(http.StatusOK, `{}`), nil
	}, fake, WithTokenIssuer(issuer), WithHeader("X-Tenant", "default"), WithHeader("User-Agent", "client-default"))

	_, err := c.Get(context.Background(), "/users",
		WithCallHeader(core.HeaderServiceToken, "override"),
		WithCallHeader("X-Tenant", "acme"),
	)
	require.NoError(t, err)

	assert.Equal(t, "override", got.Get(core.HeaderServiceToken))
	assert.Equal(t, "acme", got.Get("X-Tenant"))
	assert.Equal(t, "client-default", got.Get("User-Agent"))
}

func TestRequest_IssuerFailureIsNotRetried(t *testing.T) {
	issuer := &staticIssuer{err: errors.New("signing key unavailable")}
	var calls atomic.Int32
	fake := clock.NewFake(time.Now())
	c := newTestClient(func(r *http.Request) (*http.Response, error) {
		calls.Add(1)
		return jsonResponse(http.StatusOK, `{}`), nil
	}, fake, WithTokenIssuer(issuer))

	_, err := c.Get(context.Background(), "/users")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "issuing service token")
	assert.EqualValues(t, 0, calls.Load())
	assert.EqualValues(t, 1, issuer.calls.Load())
}

func TestRequest_InjectsTraceContext(t *testing.T) {
	traceID := trace.TraceID{0x4b, 0xf9, 0x2f, 0x35, 0x77, 0xb3, 0x4d, 0xa6, 0xa3, 0xce, 0x92, 0x9d, 0x0e, 0x0e, 0x47, 0x36}
	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     trace.SpanID{0x00, 0xf0, 0x67, 0xaa, 0x0b, 0xa9, 0x02, 0xb7},
		TraceFlags: trace.FlagsSampled,
	})

	var got http.Header
	fake := clock.NewFake(time.Now())
	c := newTestClient(func(r *http.Request) (*http.Response, error) {
		got = r.Header.Clone()
		return jsonResponse(http.StatusOK, `{}`), nil
	}, fake)

	ctx := trace.ContextWithSpanContext(context.Background(), parent)
	_, err := c.Get(ctx, "/users")
	require.NoError(t, err)

	assert.Contains(t, got.Get("traceparent"), traceID.String())
}

func TestRequest_URLAndBody(t *testing.T) {
	var (
		gotURL  string
		gotBody string
		method  string
	)
	fake := clock.NewFake(time.Now())
	c := newTestClient(func(r *http.Request) (*http.Response, error) {
		gotURL = r.URL.String()
		method = r.Method
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		return &http.Response{
			StatusCode: http.StatusCreated,
			Header:     http.Header{"Content-Type": {"text/plain"}},
			Body:       io.NopCloser(strings.NewReader("created")),
		}, nil
	}, fake)

	resp, err := c.Put(context.Background(), "users/42?expand=roles", map[string]any{"name": "ada"},
		WithQueryParam("dry_run", true))
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "http://user-service:8002/users/42?dry_run=true&expand=roles", gotURL)
	assert.JSONEq(t, `{"name":"ada"}`, gotBody)
	assert.Equal(t, "created", resp.Data)
	assert.Equal(t, "text/plain", resp.Headers["Content-Type"])
}

func TestRequest_PathParams(t *testing.T) {
	var gotPath, gotQuery string
	fake := clock.NewFake(time.Now())
	c := newTestClient(func(r *http.Request) (*http.Response, error) {
		gotPath = r.URL.EscapedPath()
		gotQuery = r.URL.RawQuery
		return jsonResponse(http.StatusOK, `{}`), nil
	}, fake)

	_, err := c.Get(context.Background(), "/v1/teams/{team}/members/{id}",
		WithPathParam("team", "billing/eu"),
		WithPathParam("id", "42"),
		WithQueryParam("limit", 5),
	)
	require.NoError(t, err)
	assert.Equal(t, "/v1/teams/billing%2Feu/members/42", gotPath)
	assert.Equal(t, "limit=5", gotQuery)
}

func TestPeerHealth(t *testing.T) {
	fake := clock.NewFake(time.Now())

	t.Run("reported by target", func(t *testing.T) {
		var gotPath string
		c := newTestClient(func(r *http.Request) (*http.Response, error) {
			gotPath = r.URL.Path
			return jsonResponse(http.StatusOK, `{"status":"degraded","service":"billing"}`), nil
		}, fake)

		h := c.PeerHealth(context.Background(), "billing")
		assert.Equal(t, "/v1/peers/billing/health", gotPath)
		assert.Equal(t, HealthDegraded, h.Status)
		assert.Equal(t, "billing", h.Service)
	})

	t.Run("bad gateway", func(t *testing.T) {
		var calls atomic.Int32
		c := newTestClient(func(r *http.Request) (*http.Response, error) {
			calls.Add(1)
			return jsonResponse(http.StatusBadGateway, `{"status":"error","service":"billing"}`), nil
		}, fake)

		h := c.PeerHealth(context.Background(), "billing")
		assert.Equal(t, HealthError, h.Status)
		assert.Equal(t, "billing", h.Service)
		assert.EqualValues(t, 1, calls.Load())
	})
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantStatus  string
		wantService string
		wantDetail  string
	}{
		{
			name:        "healthy",
			status:      http.StatusOK,
			body:        `{"status":"ok","service":"user-service","version":"1.2.0"}`,
			wantStatus:  HealthOK,
			wantService: "user-service",
			wantDetail:  "version",
		},
		{
			name:        "server error",
			status:      http.StatusInternalServerError,
			body:        `{"error":"database down"}`,
			wantStatus:  HealthError,
			wantService: "user-service",
			wantDetail:  "error",
		},
		{
			name:        "malformed body",
			status:      http.StatusOK,
			body:        `{"healthy":true}`,
			wantStatus:  HealthError,
			wantService: "user-service",
			wantDetail:  "error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			fake := clock.NewFake(time.Now())
			c := newTestClient(func(r *http.Request) (*http.Response, error) {
				calls.Add(1)
				assert.Equal(t, HealthPath, r.URL.Path)
				return jsonResponse(tt.status, tt.body), nil
			}, fake)

			status := c.HealthCheck(context.Background())

			assert.Equal(t, tt.wantStatus, status.Status)
			assert.Equal(t, tt.wantService, status.Service)
			assert.Contains(t, status.Details, tt.wantDetail)
			assert.EqualValues(t, 1, calls.Load(), "health checks are not retried")
		})
	}
}

func TestHealthCheck_Unreachable(t *testing.T) {
	fake := clock.NewFake(time.Now())
	c := newTestClient(func(r *http.Request) (*http.Response, error) {
		return nil, errors.New("no such host")
	}, fake)

	status := c.HealthCheck(context.Background())

	assert.False(t, status.Healthy())
	assert.Equal(t, HealthError, status.Status)
	assert.Contains(t, status.Details["error"], "no such host")
}

func TestNew_TargetDefaultsToHost(t *testing.T) {
	c := New("http://billing.internal:9000/")
	assert.Equal(t, "billing.internal", c.TargetService())
	assert.Equal(t, "http://billing.internal:9000", c.BaseURL())
	assert.Equal(t, DefaultRetryPolicy, c.RetryPolicy())
}

func TestRegistry(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"ok","service":"user-service"}`)
	}))
	defer healthy.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer broken.Close()

	reg := NewRegistry(WithCallerService("job-service"), WithAPIKey("k"))
	reg.Register(Peer{Name: "user-service", BaseURL: healthy.URL})
	reg.Register(Peer{Name: "billing", BaseURL: broken.URL, Timeout: 2 * time.Second})

	assert.Equal(t, []string{"billing", "user-service"}, reg.Names())

	c, err := reg.Get("billing")
	require.NoError(t, err)
	assert.Equal(t, "billing", c.TargetService())

	_, err = reg.Get("ghost")
	require.ErrorIs(t, err, ErrUnknownPeer)

	results := reg.HealthCheckAll(context.Background())
	require.Len(t, results, 2)
	assert.Equal(t, HealthOK, results["user-service"].Status)
	assert.Equal(t, HealthError, results["billing"].Status)
	assert.Equal(t, "billing", results["billing"].Service)
}

func TestRegistry_HealthCheckPeersProbesOnlyNamed(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	}))
	defer srv.Close()

	reg := NewRegistry(WithCallerService("job-service"), WithAPIKey("k"))
	for _, name := range []string{"billing", "search", "user-service"} {
		reg.Register(Peer{Name: name, BaseURL: srv.URL})
	}

	results, err := reg.HealthCheckPeers(context.Background(), "search")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, HealthOK, results["search"].Status)
	assert.EqualValues(t, 1, hits.Load())

	_, err = reg.HealthCheckPeers(context.Background(), "search", "ghost")
	require.ErrorIs(t, err, ErrUnknownPeer)
	assert.EqualValues(t, 1, hits.Load())
}
