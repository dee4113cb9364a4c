package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/oks-citadel/svcauth/internal/api"
)

const shutdownTimeout = 10 * time.Second

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reference service behind the authorization checkpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := viper.GetString(AddrKey)

		cfg, err := f.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		authenticator, err := f.Authenticator(cfg)
		if err != nil {
			return fmt.Errorf("building authenticator: %w", err)
		}
		if cfg.Auth.APIKey == "" {
			log.Info().Msg("No shared API key configured, only signed tokens are accepted")
		}

		auditor, err := f.Auditor(cfg)
		if err != nil {
			return fmt.Errorf("initializing auditor: %w", err)
		}
		defer func() {
			if err := auditor.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close auditor")
			}
		}()

		peers, err := f.Peers(cfg)
		if err != nil {
			return fmt.Errorf("building peer clients: %w", err)
		}

		srv, err := api.NewServer(cfg.Service.Name, authenticator, auditor, peers, cfg.Endpoints)
		if err != nil {
			return err
		}

		server := &http.Server{
			Addr:              addr,
			Handler:           srv.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			log.Info().
				Str("service", cfg.Service.Name).
				Strs("peers", peers.Names()).
				Msgf("Starting server on %s...", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server crashed: %w", err)
			}
			return nil
		case <-ctx.Done():
		}
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		log.Info().Msg("Server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "address to listen on")
	bindFlag(serveCmd.Flags(), AddrKey, "addr")
}
