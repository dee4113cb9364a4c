package audit

import (
	"crypto/sha256"
	"encoding/base64"
)

// CalculateFingerprint returns a stable, non-reversible identifier for a token
// so that it can be logged and audited without leaking the credential.
func CalculateFingerprint(token string) string {
	if token == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(hash[:12])
}
