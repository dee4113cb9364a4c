package cmd

import (
	"fmt"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/oks-citadel/svcauth/internal/audit"
)

var tokenInspectUnverified bool

var tokenInspectCmd = &cobra.Command{
	Use:   "inspect [token]",
	Short: "Verify a service token and print its claims",
	Long: `Verifies the token against the configured secret and prints the service
identity it asserts. With --unverified the token is only decoded, which
does not require any configuration.`,
	Example: `  svcauth token inspect -c svcauth.yaml eyJhbGciOi...
  svcauth token inspect --unverified eyJhbGciOi...`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw := args[0]
		if raw == "" {
			return fmt.Errorf("token cannot be empty")
		}
		log.Info().Msgf("Fingerprint: %s", audit.CalculateFingerprint(raw))

		if tokenInspectUnverified {
			return inspectUnverified(raw)
		}

		cfg, err := f.LoadConfig()
		if err != nil {
			return err
		}
		verifier, err := f.TokenVerifier(cfg)
		if err != nil {
			return err
		}

		claim, err := verifier.Verify(raw)
		if err != nil {
			log.Error().Err(err).Msg(red("Token rejected"))
			return err
		}

		log.Info().Msgf("%s service token for '%s'", green("Valid"), bold(claim.Subject))
		log.Info().Msg(spew.Sdump(claim))
		if claim.ExpiresAt != nil {
			log.Info().Msgf("Expiration (exp): %v (in %v)", *claim.ExpiresAt, time.Until(*claim.ExpiresAt).Round(time.Second))
		} else {
			log.Warn().Msg("Token does not expire")
		}
		return nil
	},
}

func inspectUnverified(raw string) error {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return fmt.Errorf("parsing token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return fmt.Errorf("invalid token claims")
	}

	log.Warn().Msg("Signature NOT verified")
	log.Info().Msg(spew.Sdump(claims))

	if typ, ok := claims["type"]; ok {
		log.Info().Msgf("Type: %v", typ)
	} else {
		log.Warn().Msg("Token does not contain a 'type' claim")
	}
	return nil
}

func init() {
	tokenCmd.AddCommand(tokenInspectCmd)

	tokenInspectCmd.Flags().BoolVar(&tokenInspectUnverified, "unverified", false, "Decode only, skip signature and claim checks")
}
