package cmd

import (
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/oks-citadel/svcauth/internal/api"
	"github.com/oks-citadel/svcauth/internal/core"
	"github.com/oks-citadel/svcauth/pkg/client"
)

var (
	auditLogCaller        string
	auditLogCorrelationID string
)

// auditLogCmd represents the audit log command
var auditLogCmd = &cobra.Command{
	Use:   "log PEER",
	Short: "Retrieve and display the recent decisions of a peer",
	Long: `Fetches the decision log of a peer running svcauth. The endpoint is
internal-only, so this service must be an allowed caller of the peer.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			return err
		}

		c, err := f.PeerClient(args[0])
		if err != nil {
			return err
		}

		opts := []client.CallOption{client.WithQueryParam("limit", limit)}
		if auditLogCaller != "" {
			opts = append(opts, client.WithQueryParam("caller", auditLogCaller))
		}
		if auditLogCorrelationID != "" {
			opts = append(opts, client.WithQueryParam("correlation_id", auditLogCorrelationID))
		}

		log.Info().Msg("Fetching decision log...")
		resp, err := c.Get(cmd.Context(), api.DecisionsRoute, opts...)
		if err != nil {
			return logError(err, "failed to fetch decision log")
		}
		entries, err := client.Decode[[]core.AuditEntry](resp)
		if err != nil {
			return err
		}

		log.Info().Msgf("Retrieved %d decision(s)", len(entries))

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{
			"Time", "Endpoint", "Mode", "Caller", "Granted", "Status", "Reason",
		})

		for _, e := range entries {
			granted := green("YES")
			if !e.Granted {
				granted = red("NO")
			}

			caller := "(anonymous)"
			if e.Caller != "" {
				caller = truncate(e.Caller, 30)
			}

			t.AppendRow(table.Row{
				e.Time.Format(time.RFC3339),
				e.Endpoint,
				e.Mode,
				caller,
				granted,
				e.Status,
				truncate(e.Reason, 50),
			})
		}

		t.SetStyle(table.StyleLight)
		t.Render()
		return nil
	},
}

func init() {
	auditCmd.AddCommand(auditLogCmd)

	auditLogCmd.Flags().IntP("limit", "n", 25, "Number of decisions to retrieve")
	auditLogCmd.Flags().StringVar(&auditLogCaller, "caller", "", "Only show decisions about this caller")
	auditLogCmd.Flags().StringVar(&auditLogCorrelationID, "correlation-id", "", "Only show decisions of this correlation ID")
}
