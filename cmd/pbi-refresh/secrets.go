package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dvcrn/pbi-refresh/internal/app"
	"github.com/dvcrn/pbi-refresh/internal/credentials"
)

func init() {
	secretsCmd.AddCommand(secretsSetCmd)
	secretsCmd.AddCommand(secretsCheckCmd)
	rootCmd.AddCommand(secretsCmd)
}

var secretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "Manages the service principal secrets in the configured store",
}

var secretsSetCmd = &cobra.Command{
	Use:   "set <name> <value>",
	Short: "Stores one secret",
	Long: fmt.Sprintf(`The set command writes one secret into the configured store. Only the
file, keyring and sqlite backends are writable.

Valid names: %s`, strings.Join(credentials.Names(), ", ")),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, value := args[0], args[1]
		if !slices.Contains(credentials.Names(), name) {
			return fmt.Errorf("unknown secret name %q, expected one of %s", name, strings.Join(credentials.Names(), ", "))
		}

		store, closeStore, err := app.NewSecretStore(cfg.Secrets, log)
		if err != nil {
			return err
		}
		defer closeStore()

		writable, ok := store.(credentials.WritableSecretStore)
		if !ok {
			return fmt.Errorf("secrets backend %q is read-only", cfg.Secrets.Backend)
		}
		if err := writable.SetSecret(cmd.Context(), name, value); err != nil {
			return err
		}

		log.Info().Str("name", name).Int("length", len(value)).Msg("Secret stored")
		return nil
	},
}

var secretsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verifies that every secret can be read, without printing values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, closeStore, err := app.NewSecretStore(cfg.Secrets, log)
		if err != nil {
			return err
		}
		defer closeStore()

		var missing []string
		for _, name := range credentials.Names() {
			v, err := store.GetSecret(cmd.Context(), name)
			if err != nil {
				log.Error().Err(err).Str("name", name).Msg("❌ Secret unavailable")
				missing = append(missing, name)
				continue
			}
			log.Info().Str("name", name).Int("length", len(v)).Msg("✅ Secret found")
		}

		if len(missing) > 0 {
			return fmt.Errorf("missing secrets: %s", strings.Join(missing, ", "))
		}
		return nil
	},
}
