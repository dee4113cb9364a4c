package validation

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/oks-citadel/svcauth/internal/core"
)

// CompileRequire compiles an endpoint requirement expression.
func CompileRequire(src string) (*vm.Program, error) {
	return expr.Compile(src, expr.Env(core.RequireEnv(nil)), expr.AsBool())
}

// ValidateEndpoint checks a single endpoint rule and compiles its requirement.
func ValidateEndpoint(rule core.EndpointRule) (core.EndpointRule, error) {
	if strings.TrimSpace(rule.ID) == "" {
		return rule, fmt.Errorf("endpoint missing id")
	}
	for _, caller := range rule.Metadata.AllowedCallers {
		if strings.TrimSpace(caller) == "" {
			return rule, fmt.Errorf("endpoint '%s' has an empty entry in allowed_callers", rule.ID)
		}
	}
	if rule.Metadata.InternalOnly && rule.Metadata.Bypass {
		return rule, fmt.Errorf("endpoint '%s' cannot be both internal_only and bypass", rule.ID)
	}
	if rule.Metadata.Require != "" {
		program, err := CompileRequire(rule.Metadata.Require)
		if err != nil {
			return rule, fmt.Errorf("compiling require for endpoint '%s': %w", rule.ID, err)
		}
		rule.Metadata.CompiledRequire = program
	}
	return rule, nil
}

// ValidateEndpoints validates every rule and rejects duplicate ids.
func ValidateEndpoints(rules []core.EndpointRule) ([]core.EndpointRule, error) {
	seen := make(map[string]struct{})
	validRules := make([]core.EndpointRule, 0, len(rules))

	for i, rule := range rules {
		valid, err := ValidateEndpoint(rule)
		if err != nil {
			return nil, fmt.Errorf("endpoint #%d: %w", i, err)
		}
		if _, exists := seen[valid.ID]; exists {
			return nil, fmt.Errorf("endpoint id '%s' is not unique", valid.ID)
		}
		seen[valid.ID] = struct{}{}
		validRules = append(validRules, valid)
	}

	return validRules, nil
}
