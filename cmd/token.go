package cmd

import (
	"github.com/spf13/cobra"
)

// tokenCmd represents the token command
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue and inspect service tokens",
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}
