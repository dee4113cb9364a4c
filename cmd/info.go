package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/oks-citadel/svcauth/internal/api"
	"github.com/oks-citadel/svcauth/internal/buildinfo"
	"github.com/oks-citadel/svcauth/pkg/client"
)

var infoPeer string

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show build information of this binary or of a peer",
	RunE: func(cmd *cobra.Command, args []string) error {
		if infoPeer == "" {
			log.Info().Msg("Showing local build info...")
			printInfo(buildinfo.GetBuildInfo(""))
			return nil
		}

		c, err := f.PeerClient(infoPeer)
		if err != nil {
			return err
		}
		log.Info().Msgf("Fetching build info from '%s'...", infoPeer)
		resp, err := c.Get(cmd.Context(), api.AboutRoute)
		if err != nil {
			return logError(err, "failed to get info from peer")
		}
		info, err := client.Decode[buildinfo.Info](resp)
		if err != nil {
			return err
		}
		printInfo(info)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)

	infoCmd.Flags().StringVar(&infoPeer, "from", "", "Fetch build info from a configured peer")
}

func printInfo(info buildinfo.Info) {
	fmt.Println(bold("\n── svcauth Build Information ──"))
	if info.Service != "" {
		fmt.Printf("  %s:    %s\n", faint("Service"), info.Service)
	}
	fmt.Printf("  %s:    %s\n", faint("Version"), info.Version)
	fmt.Printf("  %s:     %s\n", faint("Commit"), info.CommitHash)
}
