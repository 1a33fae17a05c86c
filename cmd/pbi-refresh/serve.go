package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvcrn/pbi-refresh/internal/app"
	"github.com/dvcrn/pbi-refresh/internal/credentials"
)

func init() {
	serveCmd.Flags().String("port", "", "port to listen on (PORT)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the HTTP trigger server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if port, _ := cmd.Flags().GetString("port"); port != "" {
			cfg.Port = port
		}
		if cfg.AdminAPIKey == "" {
			log.Warn().Msg("⚠️  ADMIN_API_KEY is not set, refresh endpoints will refuse every request")
		}

		store, closeStore, err := app.NewSecretStore(cfg.Secrets, log)
		if err != nil {
			return err
		}
		defer closeStore()

		validateSecretsAtStartup(ctx, store)

		srv := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           app.NewServer(cfg, store, log),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server failed")
			return err
		}
		log.Info().Msg("Server stopped")
		return nil
	},
}

// validateSecretsAtStartup only warns; the store is read again on every request
func validateSecretsAtStartup(ctx context.Context, store credentials.SecretStore) {
	creds, err := credentials.Resolve(ctx, store)
	if err != nil {
		log.Error().Err(err).Msg("⚠️  Failed to resolve Power BI credentials at startup")
		return
	}
	log.Info().
		Str("client_id", creds.ClientID).
		Str("tenant_id", creds.TenantID).
		Int("client_secret_length", len(creds.ClientSecret)).
		Msg("✅ Power BI credentials loaded successfully")
}
