//go:build js && wasm

package main

import (
	"github.com/syumai/workers"
	"github.com/syumai/workers/cloudflare"

	"github.com/dvcrn/pbi-refresh/internal/app"
	"github.com/dvcrn/pbi-refresh/internal/config"
	"github.com/dvcrn/pbi-refresh/internal/credentials"
	"github.com/dvcrn/pbi-refresh/internal/logger"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	// Worker vars and secrets are bindings, not process environment
	cfg.AdminAPIKey = cloudflare.Getenv("ADMIN_API_KEY")

	log.Info().Msg("📦 Using Cloudflare KV secret store")
	store, err := credentials.NewCloudflareKVStore(cloudflare.Getenv("PBI_KV_BINDING"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Cloudflare KV store")
	}

	workers.Serve(app.NewServer(cfg, store, log))
}
