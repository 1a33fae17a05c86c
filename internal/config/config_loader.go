package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dvcrn/pbi-refresh/internal/credentials"
)

// Load reads configuration from the environment. When ENV_FILE_PATH is set
// the file is loaded first; variables already present in the environment
// take precedence over the file.
func Load() (*Config, error) {
	if envFilePath := os.Getenv("ENV_FILE_PATH"); envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFilePath, err)
		}
	}

	r := &configReader{}
	cfg := &Config{
		AuthorityHost: r.readOptionalURL("PBI_AUTHORITY_HOST", DefaultAuthorityHost),
		ResourceURL:   r.readOptionalString("PBI_RESOURCE_URL", DefaultResourceURL),
		APIBaseURL:    r.readOptionalURL("PBI_API_BASE_URL", DefaultAPIBaseURL),
		HTTPTimeout:   time.Duration(r.readOptionalInt64("PBI_HTTP_TIMEOUT_SECONDS", 60)) * time.Second,
		Port:          r.readOptionalString("PORT", "9879"),
		AdminAPIKey:   r.readOptionalString("ADMIN_API_KEY", ""),
	}

	cfg.Secrets = SecretsConfig{
		Backend:        strings.ToLower(r.readOptionalString("PBI_SECRETS_BACKEND", BackendEnv)),
		EnvPrefix:      r.readOptionalString("PBI_SECRETS_ENV_PREFIX", ""),
		FilePath:       r.readOptionalString("PBI_SECRETS_FILE", credentials.DefaultSecretsPath()),
		RegistryPath:   r.readOptionalString("PBI_SECRETS_DB", credentials.DefaultRegistryPath()),
		KeyringService: r.readOptionalString("PBI_KEYRING_SERVICE", credentials.DefaultKeyringService),
		KubeNamespace:  r.readOptionalString("PBI_KUBE_NAMESPACE", "default"),
		KubeSecret:     r.readOptionalString("PBI_KUBE_SECRET", "power-bi-api"),
		Kubeconfig:     r.readOptionalString("KUBECONFIG", ""),
	}

	r.errors = append(r.errors, cfg.Validate())
	if err := errors.Join(r.errors...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that flags may have overridden after Load
func (c *Config) Validate() error {
	var errs []error
	for _, u := range []struct{ key, value string }{
		{"PBI_AUTHORITY_HOST", c.AuthorityHost},
		{"PBI_API_BASE_URL", c.APIBaseURL},
	} {
		if err := validateAbsoluteURL(u.key, u.value); err != nil {
			errs = append(errs, err)
		}
	}
	if c.HTTPTimeout < 0 {
		errs = append(errs, fmt.Errorf("PBI_HTTP_TIMEOUT_SECONDS must be >= 0, got %d", int64(c.HTTPTimeout/time.Second)))
	}
	if !slices.Contains(Backends(), c.Secrets.Backend) {
		errs = append(errs, fmt.Errorf("PBI_SECRETS_BACKEND must be one of %s, got %q",
			strings.Join(Backends(), ", "), c.Secrets.Backend))
	}
	if c.Secrets.Backend == BackendFile && c.Secrets.FilePath == "" {
		errs = append(errs, errors.New("PBI_SECRETS_FILE must be set for the file backend"))
	}
	if c.Secrets.Backend == BackendSQLite && c.Secrets.RegistryPath == "" {
		errs = append(errs, errors.New("PBI_SECRETS_DB must be set for the sqlite backend"))
	}
	if c.ResourceURL == "" {
		errs = append(errs, errors.New("PBI_RESOURCE_URL must be non-empty"))
	}
	return errors.Join(errs...)
}

type configReader struct {
	errors []error
}

func (r *configReader) readOptionalString(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return defaultValue
}

func (r *configReader) readOptionalInt64(key string, defaultValue int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		r.errors = append(r.errors, fmt.Errorf("%s must be an integer, got %q", key, v))
		return defaultValue
	}
	return n
}

// readOptionalURL trims trailing slashes; Validate checks the result
func (r *configReader) readOptionalURL(key, defaultValue string) string {
	return strings.TrimRight(r.readOptionalString(key, defaultValue), "/")
}

func validateAbsoluteURL(key, v string) error {
	u, err := url.Parse(v)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", key, v)
	}
	return nil
}
