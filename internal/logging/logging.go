// Package logging configures the global zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

type Options struct {
	Level   string
	Format  string
	NoColor bool
	Out     io.Writer
}

// InitDefault installs a console logger at info level. It is used before
// flags and configuration have been parsed.
func InitDefault() {
	_ = Init(nil)
}

// Init installs the global logger. A nil opts applies the defaults.
// An unknown level falls back to info and is reported as an error.
func Init(opts *Options) error {
	if opts == nil {
		opts = &Options{}
	}
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	var levelErr error
	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			levelErr = fmt.Errorf("invalid log level '%s': %w", opts.Level, err)
		} else {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)

	switch strings.ToLower(opts.Format) {
	case FormatJSON:
		zerolog.TimeFieldFormat = time.RFC3339Nano
	default:
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.Kitchen,
			NoColor:    opts.NoColor,
		}
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return levelErr
}
