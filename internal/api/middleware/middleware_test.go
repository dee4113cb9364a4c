package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oks-citadel/svcauth/internal/api/presenter"
	"github.com/oks-citadel/svcauth/internal/audit"
	"github.com/oks-citadel/svcauth/internal/auth"
	"github.com/oks-citadel/svcauth/internal/core"
	"github.com/oks-citadel/svcauth/internal/correlation"
	"github.com/oks-citadel/svcauth/internal/guard"
	"github.com/oks-citadel/svcauth/internal/token"
)

const (
	testSecret = "middleware-test-secret"
	endpointID = "GET /v1/users"
)

func newGuardStack(t *testing.T, mode guard.Mode, auditor core.Auditor) (http.Handler, *token.Issuer, *core.AuthContext) {
	t.Helper()

	signer, err := token.NewHMACSigner(testSecret)
	require.NoError(t, err)

	reg := guard.NewRegistry()
	require.NoError(t, reg.Register(endpointID, core.EndpointMetadata{AllowedCallers: []string{"user-service"}}))

	g := guard.New(mode, auth.NewVerifier(token.NewVerifier(signer)), reg)

	seen := &core.AuthContext{}
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ac, ok := core.AuthContextFrom(r.Context()); ok {
			*seen = *ac
		}
		presenter.JSON(w, r, map[string]string{"status": "ok"}, http.StatusOK)
	})

	h := CorrelationIDMiddleware(LoggingMiddleware(Guard(g, auditor, endpointID)(inner)))
	return h, token.NewIssuer(signer), seen
}

func TestCorrelationIDMiddleware(t *testing.T) {
	var fromCtx string
	h := CorrelationIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = correlation.FromContext(r.Context())
	}))

	t.Run("propagates incoming id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(correlation.Header, "abc-123")
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, "abc-123", fromCtx)
		assert.Equal(t, "abc-123", rec.Header().Get(correlation.Header))
	})

	t.Run("generates missing id", func(t *testing.T) {
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, fromCtx)
		assert.Equal(t, fromCtx, rec.Header().Get(correlation.Header))
	})
}

func TestGuard_MandatoryRejectsMissingCredential(t *testing.T) {
	auditor := audit.NewInMemoryAuditor(10)
	h, _, _ := newGuardStack(t, guard.Mandatory, auditor)

	req := httptest.NewRequest(http.MethodGet, "/v1/users", nil)
	req.Header.Set(correlation.Header, "corr-401")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var body presenter.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "authentication required", body.Error)
	assert.Equal(t, CodeAuthenticationRequired, body.Code)
	assert.Equal(t, "corr-401", body.CorrelationID)

	entries, err := auditor.GetRecent(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "corr-401", entries[0].ID)
	assert.Equal(t, endpointID, entries[0].Endpoint)
	assert.Equal(t, "mandatory", entries[0].Mode)
	assert.False(t, entries[0].Granted)
	assert.Equal(t, http.StatusUnauthorized, entries[0].Status)
}

func TestGuard_ForbiddenCaller(t *testing.T) {
	auditor := audit.NewInMemoryAuditor(10)
	h, issuer, _ := newGuardStack(t, guard.Mandatory, auditor)

	tok, err := issuer.Issue("job-service")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/users", nil)
	req.Header.Set(core.HeaderServiceToken, tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	var body presenter.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, CodeAccessDenied, body.Code)
	assert.NotEmpty(t, body.CorrelationID)

	entries, _ := auditor.GetRecent(0)
	require.Len(t, entries, 1)
	assert.Equal(t, "job-service", entries[0].Caller)
	assert.Equal(t, core.AuthMethodSignedToken, entries[0].Method)
	assert.Equal(t, audit.CalculateFingerprint(tok), entries[0].TokenFingerprint)
}

func TestGuard_AllowedAttachesContext(t *testing.T) {
	auditor := audit.NewInMemoryAuditor(10)
	h, issuer, seen := newGuardStack(t, guard.Mandatory, auditor)

	tok, err := issuer.Issue("user-service")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/users", nil)
	req.Header.Set(core.HeaderAuthorization, "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, seen.IsServiceRequest)
	assert.Equal(t, "user-service", seen.CallerServiceName)
	assert.Equal(t, core.AuthMethodSignedToken, seen.Method)

	entries, _ := auditor.GetRecent(0)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Granted)
}

func TestGuard_OptionalLetsAnonymousThrough(t *testing.T) {
	h, _, seen := newGuardStack(t, guard.Optional, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/users", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, seen.IsServiceRequest)
}

func TestGuard_InternalOnlyRejectsWithForbidden(t *testing.T) {
	h, _, _ := newGuardStack(t, guard.InternalOnly, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/users", nil)
	req.Header.Set(core.HeaderServiceToken, "not-a-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRecoverMiddleware(t *testing.T) {
	h := RecoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
	assert.Contains(t, rec.Body.String(), CodeInternal)
}

func TestLoggingMiddleware_RequestLineCarriesCaller(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	h, issuer, _ := newGuardStack(t, guard.Mandatory, audit.NewNoopAuditor())
	tok, err := issuer.Issue("user-service")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/users", nil)
	req.Header.Set(core.HeaderAuthorization, "Bearer "+tok)
	req.Header.Set(correlation.Header, "corr-77")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	for _, raw := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var m map[string]any
		require.NoError(t, json.Unmarshal(raw, &m))
		if m["message"] == "request.handled" {
			line = m
		}
	}
	require.NotNil(t, line)
	assert.Equal(t, "user-service", line["caller"])
	assert.Equal(t, "corr-77", line["correlation_id"])
	assert.EqualValues(t, http.StatusOK, line["status"])
	assert.Greater(t, line["bytes"], float64(0))
}
