package core

import "time"

type AuditEntry struct {
	// ID is the correlation ID of the request (X-Correlation-Id)
	ID string `json:"id"`

	// Time is the timestamp of the decision
	Time time.Time `json:"time"`

	// Action describing what happened (e.g. "guard.allowed", "guard.forbidden")
	Action string `json:"action"`

	// Endpoint is the identifier of the guarded endpoint
	Endpoint string `json:"endpoint"`

	// Mode is the checkpoint variant that made the decision
	Mode string `json:"mode"`

	// Caller is the verified caller, empty for anonymous requests
	Caller string `json:"caller,omitempty"`

	// Method is how the caller authenticated
	Method AuthMethod `json:"method,omitempty"`

	// TokenFingerprint identifies the presented token without revealing it
	TokenFingerprint string `json:"token_fingerprint,omitempty"`

	// Status is the HTTP status the decision maps to
	Status  int    `json:"status"`
	Granted bool   `json:"granted"`
	Reason  string `json:"reason,omitempty"`
}

type Auditor interface {
	Log(entry AuditEntry) error
	Close() error
}

// AuditReader is implemented by auditors that can be queried, such as the
// in-memory one.
type AuditReader interface {
	GetRecent(limit int) ([]AuditEntry, error)
	Find(filter func(entry AuditEntry) bool, limit int) ([]AuditEntry, error)
}
