package config

import (
	"time"
)

const (
	DefaultAuthorityHost = "https://login.microsoftonline.com"
	DefaultResourceURL   = "https://analysis.windows.net/powerbi/api"
	DefaultAPIBaseURL    = "https://api.powerbi.com/v1.0"
)

// Secret store backends
const (
	BackendEnv        = "env"
	BackendFile       = "file"
	BackendKeyring    = "keyring"
	BackendKubernetes = "kubernetes"
	BackendSQLite     = "sqlite"
)

// Backends lists every supported secret store backend
func Backends() []string {
	return []string{BackendEnv, BackendFile, BackendKeyring, BackendKubernetes, BackendSQLite}
}

type Config struct {
	// AuthorityHost is the identity provider base; the tenant id is appended
	AuthorityHost string
	// ResourceURL is the audience the access token is requested for
	ResourceURL string
	// APIBaseURL is the Power BI REST API root, including the version
	APIBaseURL string
	// HTTPTimeout bounds each outbound request; zero disables the timeout
	HTTPTimeout time.Duration

	Secrets SecretsConfig

	Port        string
	AdminAPIKey string
}

type SecretsConfig struct {
	Backend        string
	EnvPrefix      string
	FilePath       string
	RegistryPath   string
	KeyringService string
	KubeNamespace  string
	KubeSecret     string
	Kubeconfig     string
}
