package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dvcrn/pbi-refresh/internal/config"
	"github.com/dvcrn/pbi-refresh/internal/logger"
)

// Populated by PersistentPreRunE before any subcommand runs
var (
	cfg *config.Config
	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pbi-refresh",
	Short: "Trigger Power BI dataset and dataflow refreshes",
	Long: `pbi-refresh authenticates as an Azure AD service principal and asks the
Power BI REST API to refresh a dataset or dataflow.

Credentials come from flags or from the configured secret store
(PBI_SECRETS_BACKEND). A fresh access token is requested for every refresh.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("authority-host", "", "identity provider base URL (PBI_AUTHORITY_HOST)")
	flags.String("api-base-url", "", "Power BI REST API root (PBI_API_BASE_URL)")
	flags.Int64("timeout", 0, "per-request timeout in seconds, 0 disables (PBI_HTTP_TIMEOUT_SECONDS)")
	flags.String("secrets-backend", "", "secret store backend: env, file, keyring, kubernetes or sqlite (PBI_SECRETS_BACKEND)")
	flags.String("secrets-file", "", "secrets file for the file backend (PBI_SECRETS_FILE)")
	flags.String("secrets-db", "", "sqlite database for the sqlite backend (PBI_SECRETS_DB)")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	log = logger.New()

	loaded, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("authority-host") {
		loaded.AuthorityHost, _ = flags.GetString("authority-host")
	}
	if flags.Changed("api-base-url") {
		loaded.APIBaseURL, _ = flags.GetString("api-base-url")
	}
	if flags.Changed("timeout") {
		seconds, _ := flags.GetInt64("timeout")
		loaded.HTTPTimeout = time.Duration(seconds) * time.Second
	}
	if flags.Changed("secrets-backend") {
		loaded.Secrets.Backend, _ = flags.GetString("secrets-backend")
	}
	if flags.Changed("secrets-file") {
		loaded.Secrets.FilePath, _ = flags.GetString("secrets-file")
	}
	if flags.Changed("secrets-db") {
		loaded.Secrets.RegistryPath, _ = flags.GetString("secrets-db")
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	cfg = loaded
	return nil
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
