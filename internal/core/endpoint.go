package core

import (
	"slices"

	"github.com/expr-lang/expr/vm"
)

// EndpointMetadata is the static authorization metadata of a single endpoint.
// It is attached when the service registers its endpoints and never mutated
// while requests are handled.
type EndpointMetadata struct {
	// InternalOnly marks endpoints that only other services may call.
	InternalOnly bool `yaml:"internal_only" json:"internal_only"`

	// AllowedCallers restricts the endpoint to the listed service names.
	// Leaving this empty allows any authenticated caller.
	AllowedCallers []string `yaml:"allowed_callers" json:"allowed_callers,omitempty"`

	// Bypass skips authentication entirely (e.g. for liveness probes).
	// It is not honored by internal-only checkpoints.
	Bypass bool `yaml:"bypass" json:"bypass"`

	// Require is an optional boolean expression evaluated against the
	// authenticated caller after the allow-list check.
	Require string `yaml:"require" json:"require,omitempty"`

	// CompiledRequire holds the pre-compiled form of Require.
	CompiledRequire *vm.Program `yaml:"-" json:"-"`
}

// AllowsCaller reports whether the allow-list admits the given service.
func (m EndpointMetadata) AllowsCaller(serviceName string) bool {
	if len(m.AllowedCallers) == 0 {
		return true
	}
	return slices.Contains(m.AllowedCallers, serviceName)
}

// EndpointRule binds metadata to an endpoint identifier, e.g. "GET /v1/whoami".
type EndpointRule struct {
	ID       string           `yaml:"id" json:"id"`
	Metadata EndpointMetadata `yaml:",inline" json:"metadata"`
}

// RequireEnv builds the environment a Require expression is evaluated in.
// A nil context yields the zero-valued environment used for compilation.
func RequireEnv(ac *AuthContext) map[string]any {
	env := map[string]any{
		"caller": "",
		"method": "",
		"claims": map[string]any{},
	}
	if ac == nil {
		return env
	}
	env["caller"] = ac.CallerServiceName
	env["method"] = string(ac.Method)
	if ac.Claim != nil && ac.Claim.Claims != nil {
		env["claims"] = ac.Claim.Claims
	}
	return env
}
