package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/oks-citadel/svcauth/internal/api/presenter"
	"github.com/oks-citadel/svcauth/internal/audit"
	"github.com/oks-citadel/svcauth/internal/auth"
	"github.com/oks-citadel/svcauth/internal/core"
	"github.com/oks-citadel/svcauth/internal/correlation"
	"github.com/oks-citadel/svcauth/internal/guard"
)

// Machine-readable codes of checkpoint rejections.
const (
	CodeAuthenticationRequired = "authentication_required"
	CodeAccessDenied           = "access_denied"
)

// Guard runs the authorization checkpoint for a single endpoint. Rejected
// requests end here; allowed requests continue with the authentication
// context attached (if any).
func Guard(g *guard.Guard, auditor core.Auditor, endpointID string) func(http.Handler) http.Handler {
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			decision := g.Check(endpointID, r.Header)

			entry := core.AuditEntry{
				ID:               correlation.FromContext(ctx),
				Time:             time.Now(),
				Action:           "guard." + decision.Outcome.String(),
				Endpoint:         endpointID,
				Mode:             string(g.Mode()),
				TokenFingerprint: audit.CalculateFingerprint(auth.SignedToken(r.Header)),
				Status:           decision.Status(),
				Granted:          decision.Allowed(),
				Reason:           decision.Reason,
			}
			if decision.Context != nil {
				entry.Caller = decision.Context.CallerServiceName
				entry.Method = decision.Context.Method
			}
			if err := auditor.Log(entry); err != nil {
				log.Ctx(ctx).Error().Err(err).Msg("failed to write audit log entry")
			}

			logger := log.Ctx(ctx)
			switch decision.Outcome {
			case guard.Unauthenticated:
				logger.Warn().Str("endpoint", endpointID).Str("reason", decision.Reason).Msg("guard.rejected")
				presenter.ErrorCode(w, r, decision.Err().Error(), CodeAuthenticationRequired, decision.Status())
				return
			case guard.Forbidden:
				logger.Warn().
					Str("endpoint", endpointID).
					Str("caller", entry.Caller).
					Str("reason", decision.Reason).
					Msg("guard.rejected")
				presenter.ErrorCode(w, r, decision.Err().Error(), CodeAccessDenied, decision.Status())
				return
			}

			if decision.Context != nil {
				ctx = core.WithAuthContext(ctx, decision.Context)
				caller := decision.Context.CallerServiceName
				logger.UpdateContext(func(c zerolog.Context) zerolog.Context {
					return c.Str("caller", caller)
				})
				logger.Debug().
					Str("auth_method", string(decision.Context.Method)).
					Msg("guard.allowed")
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
