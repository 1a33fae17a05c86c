package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/dvcrn/pbi-refresh/internal/credentials"
	"github.com/dvcrn/pbi-refresh/internal/logger"
)

const (
	// DefaultAuthorityHost is the Azure AD login endpoint
	DefaultAuthorityHost = "https://login.microsoftonline.com"
	// PowerBIResource is the audience of tokens accepted by the Power BI REST API
	PowerBIResource = "https://analysis.windows.net/powerbi/api"
)

// AuthorityURL returns the tenant-scoped authority, always with a trailing slash
func AuthorityURL(host, tenantID string) string {
	return strings.TrimRight(host, "/") + "/" + tenantID + "/"
}

// TokenURL returns the OAuth2 token endpoint under the tenant's authority
func TokenURL(host, tenantID string) string {
	return AuthorityURL(host, tenantID) + "oauth2/token"
}

// Client exchanges service principal credentials for access tokens using
// the OAuth2 client-credentials grant. It never caches: every call to
// AcquireToken performs a token request.
type Client struct {
	authorityHost string
	resource      string
	httpClient    *http.Client
	logger        zerolog.Logger
}

// NewClient creates a token client. Empty authorityHost and resource fall
// back to Azure AD and the Power BI audience; a nil httpClient uses
// http.DefaultClient.
func NewClient(authorityHost, resource string, httpClient *http.Client, logger zerolog.Logger) *Client {
	if authorityHost == "" {
		authorityHost = DefaultAuthorityHost
	}
	if resource == "" {
		resource = PowerBIResource
	}
	return &Client{
		authorityHost: authorityHost,
		resource:      resource,
		httpClient:    httpClient,
		logger:        logger,
	}
}

// AcquireToken requests a fresh access token for creds.
func (c *Client) AcquireToken(ctx context.Context, creds credentials.Credentials) (string, error) {
	tokenURL := TokenURL(c.authorityHost, creds.TenantID)
	cfg := clientcredentials.Config{
		ClientID:       creds.ClientID,
		ClientSecret:   creds.ClientSecret,
		TokenURL:       tokenURL,
		EndpointParams: url.Values{"resource": {c.resource}},
		AuthStyle:      oauth2.AuthStyleInParams,
	}

	if c.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	}

	log := c.loggerFor(ctx)
	log.Debug().
		Str("authority_url", AuthorityURL(c.authorityHost, creds.TenantID)).
		Str("resource", c.resource).
		Str("client_id", creds.ClientID).
		Msg("Requesting access token")

	tok, err := cfg.Token(ctx)
	if err != nil {
		return "", classify(creds.TenantID, tokenURL, err)
	}
	if tok.AccessToken == "" {
		return "", &AuthenticationError{TenantID: creds.TenantID, Err: errors.New("response missing access token")}
	}

	log.Debug().
		Str("token_preview", logger.TokenPreview(tok.AccessToken)).
		Time("expires_at", tok.Expiry).
		Msg("Access token acquired")

	return tok.AccessToken, nil
}

func (c *Client) loggerFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &c.logger
}

// classify separates transport failures, which are returned as-is, from
// everything the identity provider said, which becomes an AuthenticationError.
func classify(tenantID, tokenURL string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		authErr := &AuthenticationError{TenantID: tenantID, Err: err}
		if retrieveErr.Response != nil {
			authErr.StatusCode = retrieveErr.Response.StatusCode
		}
		return authErr
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed to request token from %s: %w", tokenURL, err)
	}

	return &AuthenticationError{TenantID: tenantID, Err: err}
}
