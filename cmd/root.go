package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/oks-citadel/svcauth/internal/buildinfo"
	"github.com/oks-citadel/svcauth/internal/logging"
)

const (
	LogLevelKey   = "log.level"
	LogFormatKey  = "log.format"
	LogNoColorKey = "log.no_color"

	ConfigKey   = "config"
	AddrKey     = "addr"
	PeerListKey = "peer_list"
)

// configKeys can be overridden by SVCAUTH_* environment variables.
var configKeys = []string{
	"service.name",
	"auth.signing_secret",
	"auth.api_key",
	"auth.token_ttl",
	"auth.issuer",
	"auth.leeway",
	"client.timeout",
	"client.retry.max_attempts",
	"client.retry.base_delay",
	"audit.enabled",
	"audit.type",
	"audit.path",
	"audit.capacity",
}

var f = NewFactory()

var rootCmd = &cobra.Command{
	Use:   "svcauth",
	Short: fmt.Sprintf("svcauth (version: %s, commit: %s)", buildinfo.Version, buildinfo.CommitHash),
	Long: `svcauth authenticates and authorizes calls between internal services.
	It issues and verifies signed service tokens, guards endpoints and
	calls peer services with retries, correlation IDs and tracing.`,
	Version: buildinfo.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Init(&logging.Options{
			Level:   viper.GetString(LogLevelKey),
			Format:  viper.GetString(LogFormatKey),
			NoColor: viper.GetBool(LogNoColorKey),
		}); err != nil {
			log.Warn().Err(err).Msg("falling back to info log level")
		}
		if viper.GetBool(LogNoColorKey) {
			color.NoColor = true
		}
		f.ConfigPath = viper.GetString(ConfigKey)
		if f.ConfigPath != "" {
			log.Debug().Msgf("using config file: %s", f.ConfigPath)
		}
		return nil
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		log.Error().Err(err).Msg("execution failed")
		os.Exit(1)
	}
}

func init() {
	// setup pre-flag logger
	logging.InitDefault()

	flags := rootCmd.PersistentFlags()

	flags.StringP("config", "c", "", "Service configuration file (YAML)")
	bindFlag(flags, ConfigKey, "config")

	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	bindFlag(flags, LogLevelKey, "log-level")

	flags.String("log-format", "console", "Log format (console, json)")
	bindFlag(flags, LogFormatKey, "log-format")

	flags.Bool("no-color", false, "Disable color output")
	bindFlag(flags, LogNoColorKey, "no-color")

	flags.StringSlice("peer", nil, "Peer service as name=url (repeatable)")
	bindFlag(flags, PeerListKey, "peer")

	viper.SetEnvPrefix("SVCAUTH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))

	// nested keys are only picked up from the environment once bound
	for _, key := range configKeys {
		_ = viper.BindEnv(key)
	}

	viper.AutomaticEnv()

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
}

// bindFlag makes the flag the source of the viper key.
func bindFlag(flags *pflag.FlagSet, key, name string) {
	_ = viper.BindPFlag(key, flags.Lookup(name))
}
