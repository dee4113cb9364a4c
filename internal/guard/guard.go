// Package guard implements the authorization checkpoint that judges every
// inbound call once, before business logic runs.
//
// The three variants share one decision core and only differ in how they
// treat a request without a valid credential:
//
//   - Mandatory rejects it with 401, unless the endpoint is flagged bypass.
//   - Optional lets it through without an authentication context.
//   - InternalOnly rejects it with 403 and never honors bypass.
//
// A Guard holds no per-request state and is safe for concurrent use.
package guard

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/expr-lang/expr"
	"github.com/rs/zerolog/log"

	"github.com/oks-citadel/svcauth/internal/core"
)

var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrAccessDenied           = errors.New("access denied")
)

type Mode string

const (
	Mandatory    Mode = "mandatory"
	Optional     Mode = "optional"
	InternalOnly Mode = "internal-only"
)

func (m Mode) IsValid() bool {
	switch m {
	case Mandatory, Optional, InternalOnly:
		return true
	default:
		return false
	}
}

type Outcome int

const (
	Allowed Outcome = iota
	Unauthenticated
	Forbidden
)

func (o Outcome) String() string {
	switch o {
	case Allowed:
		return "allowed"
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Decision is the terminal result of judging one request.
type Decision struct {
	Outcome Outcome

	// Context is set when the caller was authenticated. Allowed decisions
	// may still carry no context (bypass, optional anonymous calls).
	Context *core.AuthContext

	// Reason is meant for logs and audit only.
	Reason string
}

func (d Decision) Allowed() bool {
	return d.Outcome == Allowed
}

// Status maps the decision to its HTTP status code.
func (d Decision) Status() int {
	switch d.Outcome {
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	default:
		return http.StatusOK
	}
}

// Err returns nil for allowed decisions and the matching sentinel otherwise.
func (d Decision) Err() error {
	switch d.Outcome {
	case Unauthenticated:
		return ErrAuthenticationRequired
	case Forbidden:
		return ErrAccessDenied
	default:
		return nil
	}
}

// ReasonRejectedCredential marks optional calls that presented an invalid
// credential and were let through anonymously. Decision logs keep it so
// these calls can be reviewed.
const ReasonRejectedCredential = "credential rejected, treated as anonymous"

func presentedCredential(headers http.Header) bool {
	return headers.Get(core.HeaderServiceToken) != "" ||
		headers.Get(core.HeaderServiceAPIKey) != "" ||
		headers.Get(core.HeaderAuthorization) != ""
}

type Guard struct {
	mode     Mode
	auth     core.Authenticator
	registry *Registry
}

func New(mode Mode, auth core.Authenticator, registry *Registry) *Guard {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Guard{
		mode:     mode,
		auth:     auth,
		registry: registry,
	}
}

func NewMandatory(auth core.Authenticator, registry *Registry) *Guard {
	return New(Mandatory, auth, registry)
}

func NewOptional(auth core.Authenticator, registry *Registry) *Guard {
	return New(Optional, auth, registry)
}

func NewInternalOnly(auth core.Authenticator, registry *Registry) *Guard {
	return New(InternalOnly, auth, registry)
}

func (g *Guard) Mode() Mode {
	return g.mode
}

// Check judges a single inbound call to the given endpoint.
func (g *Guard) Check(endpointID string, headers http.Header) Decision {
	meta, _ := g.registry.Lookup(endpointID)

	// endpoint metadata can tighten the mounted mode, never loosen it
	mode := g.mode
	if meta.InternalOnly {
		mode = InternalOnly
	}

	if mode == Mandatory && meta.Bypass {
		return Decision{Outcome: Allowed, Reason: "bypass"}
	}

	ac, ok := g.auth.Authenticate(headers)
	if !ok || !ac.IsServiceRequest || ac.CallerServiceName == "" {
		switch mode {
		case Optional:
			// fail-open: a malformed service token is treated like an anonymous call
			if presentedCredential(headers) {
				log.Debug().Str("endpoint", endpointID).Msg("rejected credential on optional endpoint treated as anonymous")
				return Decision{Outcome: Allowed, Reason: ReasonRejectedCredential}
			}
			return Decision{Outcome: Allowed, Reason: "anonymous"}
		case InternalOnly:
			return Decision{Outcome: Forbidden, Reason: "internal endpoint requires a service credential"}
		default:
			return Decision{Outcome: Unauthenticated, Reason: "no valid service credential"}
		}
	}

	// optional endpoints never reject, the context is informational
	if mode == Optional {
		return Decision{Outcome: Allowed, Context: ac, Reason: "authenticated"}
	}

	if !meta.AllowsCaller(ac.CallerServiceName) {
		return Decision{
			Outcome: Forbidden,
			Context: ac,
			Reason:  fmt.Sprintf("caller '%s' is not in the allow-list", ac.CallerServiceName),
		}
	}

	if meta.CompiledRequire != nil {
		if ok, reason := evaluateRequire(meta, ac); !ok {
			return Decision{Outcome: Forbidden, Context: ac, Reason: reason}
		}
	}

	return Decision{Outcome: Allowed, Context: ac, Reason: "authenticated"}
}

func evaluateRequire(meta core.EndpointMetadata, ac *core.AuthContext) (bool, string) {
	out, err := expr.Run(meta.CompiledRequire, core.RequireEnv(ac))
	if err != nil {
		log.Warn().Err(err).Msgf("error evaluating endpoint requirement '%s'", meta.Require)
		return false, "requirement evaluation failed"
	}
	if b, ok := out.(bool); !ok || !b {
		return false, fmt.Sprintf("requirement not met: %s", meta.Require)
	}
	return true, ""
}
