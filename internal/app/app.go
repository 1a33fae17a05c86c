package app

import (
	"github.com/rs/zerolog"

	"github.com/dvcrn/pbi-refresh/internal/auth"
	"github.com/dvcrn/pbi-refresh/internal/config"
	"github.com/dvcrn/pbi-refresh/internal/credentials"
	"github.com/dvcrn/pbi-refresh/internal/powerbi"
	"github.com/dvcrn/pbi-refresh/internal/server"
	"github.com/dvcrn/pbi-refresh/internal/trigger"
)

// NewTrigger wires the token client and the Power BI client from cfg. Both
// share one HTTP client so the configured timeout bounds every request.
func NewTrigger(cfg *config.Config, logger zerolog.Logger) *trigger.Trigger {
	httpClient := powerbi.NewHTTPClient(cfg.HTTPTimeout)
	tokens := auth.NewClient(cfg.AuthorityHost, cfg.ResourceURL, httpClient, logger)
	api := powerbi.NewClient(cfg.APIBaseURL, httpClient, logger)
	return trigger.New(tokens, api, logger)
}

// NewServer creates the HTTP trigger server reading credentials from store
func NewServer(cfg *config.Config, store credentials.SecretStore, logger zerolog.Logger) *server.Server {
	return server.New(logger, NewTrigger(cfg, logger), store, cfg.AdminAPIKey)
}
