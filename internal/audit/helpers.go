package audit

import (
	"fmt"

	"github.com/oks-citadel/svcauth/internal/buildinfo"
)

// CreateUserAgent builds the User-Agent sent on outbound service calls.
func CreateUserAgent(callerService, targetService string) string {
	return fmt.Sprintf("svcauth/%s (caller=%s; target=%s)",
		buildinfo.Version, callerService, targetService)
}
