package audit

import (
	"fmt"

	"github.com/oks-citadel/svcauth/internal/config"
	"github.com/oks-citadel/svcauth/internal/core"
)

// New builds the auditor described by the audit configuration.
func New(cfg config.AuditConfig) (core.Auditor, error) {
	if !cfg.Enabled {
		return NewNoopAuditor(), nil
	}
	switch cfg.Type {
	case "", "memory":
		return NewInMemoryAuditor(cfg.Capacity), nil
	case "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("audit type 'file' requires a path")
		}
		return NewFileAuditor(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown audit type '%s'", cfg.Type)
	}
}
