package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/oks-citadel/svcauth/pkg/client"
)

var healthCmd = &cobra.Command{
	Use:   "health [PEER...]",
	Short: "Check the health of configured peers",
	Long: `Queries the health endpoint of every configured peer, or only the named ones.

With --via, the named peer is asked to probe its own peers instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := f.LoadConfig()
		if err != nil {
			return err
		}
		via, _ := cmd.Flags().GetString("via")

		var (
			names   []string
			results map[string]client.HealthStatus
		)
		if via != "" {
			if len(args) == 0 {
				return fmt.Errorf("--via needs at least one PEER argument")
			}
			c, err := f.PeerClient(via)
			if err != nil {
				return err
			}
			log.Info().Msgf("Asking %s about %d peer(s)...", via, len(args))
			names = args
			results = make(map[string]client.HealthStatus, len(args))
			for _, name := range args {
				results[name] = c.PeerHealth(cmd.Context(), name)
			}
		} else {
			peers, err := f.Peers(cfg)
			if err != nil {
				return err
			}
			names = peers.Names()
			if len(args) > 0 {
				names = args
			}
			if len(names) == 0 {
				log.Warn().Msg("No peers configured")
				return nil
			}
			log.Info().Msgf("Checking %d peer(s)...", len(names))
			if results, err = peers.HealthCheckPeers(cmd.Context(), names...); err != nil {
				return err
			}
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Peer", "Service", "Status", "Details"})

		unhealthy := 0
		for _, name := range names {
			h := results[name]

			status := green(h.Status)
			if !h.Healthy() {
				status = red(h.Status)
				unhealthy++
			}

			details := ""
			if len(h.Details) > 0 {
				details = truncate(fmt.Sprint(h.Details), 60)
			}

			t.AppendRow(table.Row{bold(name), h.Service, status, faint(details)})
		}

		t.SetStyle(table.StyleLight)
		t.Render()

		if unhealthy > 0 {
			return fmt.Errorf("%d of %d peer(s) unhealthy", unhealthy, len(names))
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().String("via", "", "Ask this configured peer to probe the named peers")
	rootCmd.AddCommand(healthCmd)
}
