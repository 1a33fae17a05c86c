package credentials

import (
	"context"
	"errors"
	"fmt"
)

const (
	// SecretClientSecret names the service principal's client secret
	SecretClientSecret = "POWER_BI_API_CLIENT_SECRET"
	// SecretClientID names the service principal's application (client) id
	SecretClientID = "POWER_BI_API_CLIENT_ID"
	// SecretTenantID names the Azure AD tenant the service principal lives in
	SecretTenantID = "POWER_BI_TENANT_ID"
)

// ErrSecretNotFound is returned when a store has no value for a name
var ErrSecretNotFound = errors.New("secret not found")

// Credentials identifies the service principal used to call the Power BI API
type Credentials struct {
	ClientID     string
	ClientSecret string
	TenantID     string
}

// SecretStore looks up secrets by name
type SecretStore interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// WritableSecretStore is a SecretStore that can also persist secrets
type WritableSecretStore interface {
	SecretStore
	SetSecret(ctx context.Context, name, value string) error
}

// Names returns the secret names Resolve reads, in lookup order
func Names() []string {
	return []string{SecretClientSecret, SecretClientID, SecretTenantID}
}

// Resolve reads the client secret, client id and tenant id from store.
// Every call performs fresh lookups; nothing is cached.
func Resolve(ctx context.Context, store SecretStore) (Credentials, error) {
	values := make(map[string]string, 3)
	for _, name := range Names() {
		v, err := store.GetSecret(ctx, name)
		if err != nil {
			return Credentials{}, &ResolveError{Name: name, Err: err}
		}
		values[name] = v
	}

	return Credentials{
		ClientID:     values[SecretClientID],
		ClientSecret: values[SecretClientSecret],
		TenantID:     values[SecretTenantID],
	}, nil
}

// ResolveError reports which secret Resolve could not read
type ResolveError struct {
	Name string
	Err  error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("failed to resolve %s: %v", e.Name, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

func notFound(name string) error {
	return fmt.Errorf("%w: %s", ErrSecretNotFound, name)
}

// MapStore is an in-memory SecretStore
type MapStore map[string]string

// GetSecret returns the value stored under name
func (m MapStore) GetSecret(_ context.Context, name string) (string, error) {
	v, ok := m[name]
	if !ok {
		return "", notFound(name)
	}
	return v, nil
}

// SetSecret stores value under name
func (m MapStore) SetSecret(_ context.Context, name, value string) error {
	m[name] = value
	return nil
}
