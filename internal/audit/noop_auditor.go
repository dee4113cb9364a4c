package audit

import "github.com/oks-citadel/svcauth/internal/core"

var (
	_ core.Auditor     = (*NoopAuditor)(nil)
	_ core.AuditReader = (*NoopAuditor)(nil)
)

// NoopAuditor discards every decision. It is used when auditing is disabled,
// so the decision log is always empty.
type NoopAuditor struct{}

func NewNoopAuditor() *NoopAuditor {
	return &NoopAuditor{}
}

func (NoopAuditor) Log(core.AuditEntry) error { return nil }

func (NoopAuditor) GetRecent(int) ([]core.AuditEntry, error) { return nil, nil }

func (NoopAuditor) Find(func(core.AuditEntry) bool, int) ([]core.AuditEntry, error) {
	return nil, nil
}

func (NoopAuditor) Close() error { return nil }
