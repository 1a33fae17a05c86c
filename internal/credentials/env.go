package credentials

import (
	"context"
	"os"
)

// EnvStore retrieves secrets from environment variables
type EnvStore struct {
	// Prefix is prepended to every name before lookup
	Prefix string
}

// NewEnvStore creates a new environment-based secret store
func NewEnvStore(prefix string) *EnvStore {
	return &EnvStore{Prefix: prefix}
}

// GetSecret returns the value of the environment variable Prefix+name.
// A variable that is set but empty counts as missing.
func (e *EnvStore) GetSecret(_ context.Context, name string) (string, error) {
	v, ok := os.LookupEnv(e.Prefix + name)
	if !ok || v == "" {
		return "", notFound(e.Prefix + name)
	}
	return v, nil
}
