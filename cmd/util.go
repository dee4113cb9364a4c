package cmd

import (
	"errors"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"

	"github.com/oks-citadel/svcauth/pkg/client"
)

var (
	bold  = color.New(color.Bold).SprintFunc()
	faint = color.New(color.Faint).SprintFunc()
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
)

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// logError logs a failed peer call, including the upstream correlation ID
// if the peer answered, and returns err for the command to fail with.
func logError(err error, msg string) error {
	ev := log.Error().Err(err)

	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		ev = ev.Int("status", apiErr.StatusCode)
		if apiErr.Code != "" {
			ev = ev.Str("code", apiErr.Code)
		}
		if apiErr.CorrelationID != "" {
			ev = ev.Str("correlation_id", apiErr.CorrelationID)
		}
	}
	ev.Msg(msg)
	return err
}
