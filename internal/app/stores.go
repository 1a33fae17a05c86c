//go:build !js || !wasm

package app

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvcrn/pbi-refresh/internal/config"
	"github.com/dvcrn/pbi-refresh/internal/credentials"
)

func noopClose() error { return nil }

// NewSecretStore opens the backend selected by cfg. The returned close
// function must be called once the store is no longer used.
func NewSecretStore(cfg config.SecretsConfig, logger zerolog.Logger) (credentials.SecretStore, func() error, error) {
	switch cfg.Backend {
	case config.BackendEnv, "":
		logger.Info().Str("prefix", cfg.EnvPrefix).Msg("📝 Using environment secret store")
		return credentials.NewEnvStore(cfg.EnvPrefix), noopClose, nil

	case config.BackendFile:
		logger.Info().Str("path", cfg.FilePath).Msg("📄 Using file secret store")
		return credentials.NewFileStore(cfg.FilePath), noopClose, nil

	case config.BackendKeyring:
		logger.Info().Str("service", cfg.KeyringService).Msg("🔑 Using keyring secret store")
		return credentials.NewKeyringStore(cfg.KeyringService), noopClose, nil

	case config.BackendKubernetes:
		client, err := credentials.NewKubernetesClient(cfg.Kubeconfig)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().
			Str("namespace", cfg.KubeNamespace).
			Str("secret", cfg.KubeSecret).
			Msg("☸️  Using kubernetes secret store")
		return credentials.NewKubernetesStore(client, cfg.KubeNamespace, cfg.KubeSecret), noopClose, nil

	case config.BackendSQLite:
		if err := credentials.EnsureParentDir(cfg.RegistryPath); err != nil {
			return nil, nil, err
		}
		registry, err := credentials.OpenConnectionRegistry(cfg.RegistryPath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Str("path", cfg.RegistryPath).Msg("🗄️  Using sqlite connection registry")
		return registry, registry.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown secrets backend %q", cfg.Backend)
}
