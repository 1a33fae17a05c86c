package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// DefaultKeyringService is the keyring service secrets are stored under
const DefaultKeyringService = "pbi-refresh"

// KeyringStore retrieves secrets from the system keychain (macOS Keychain,
// Secret Service on Linux, Windows Credential Manager).
type KeyringStore struct {
	Service string
}

func NewKeyringStore(service string) *KeyringStore {
	if service == "" {
		service = DefaultKeyringService
	}
	return &KeyringStore{Service: service}
}

func (k *KeyringStore) GetSecret(_ context.Context, name string) (string, error) {
	v, err := keyring.Get(k.Service, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", notFound(name)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s from keyring: %w", name, err)
	}
	return v, nil
}

func (k *KeyringStore) SetSecret(_ context.Context, name, value string) error {
	if err := keyring.Set(k.Service, name, value); err != nil {
		return fmt.Errorf("failed to write %s to keyring: %w", name, err)
	}
	return nil
}
