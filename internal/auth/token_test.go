package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvcrn/pbi-refresh/internal/credentials"
)

var testCreds = credentials.Credentials{
	ClientID:     "client-1",
	ClientSecret: "secret-1",
	TenantID:     "tenant-1",
}

func TestAuthorityURL(t *testing.T) {
	assert.Equal(t, "https://login.microsoftonline.com/tenant-1/", AuthorityURL("https://login.microsoftonline.com", "tenant-1"))
	assert.Equal(t, "https://login.microsoftonline.com/tenant-1/", AuthorityURL("https://login.microsoftonline.com/", "tenant-1"))
	assert.Equal(t, "https://login.microsoftonline.com/tenant-1/oauth2/token", TokenURL("https://login.microsoftonline.com", "tenant-1"))
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("", "", nil, zerolog.Nop())
	assert.Equal(t, DefaultAuthorityHost, c.authorityHost)
	assert.Equal(t, PowerBIResource, c.resource)
}

func TestAcquireToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tenant-1/oauth2/token", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "client-1", r.PostForm.Get("client_id"))
		assert.Equal(t, "secret-1", r.PostForm.Get("client_secret"))
		assert.Equal(t, PowerBIResource, r.PostForm.Get("resource"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token_type":"Bearer","expires_in":"3599","access_token":"abc"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, PowerBIResource, srv.Client(), zerolog.Nop())
	token, err := c.AcquireToken(context.Background(), testCreds)
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
}

func TestAcquireTokenIsNeverCached(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if n == 1 {
			w.Write([]byte(`{"token_type":"Bearer","expires_in":3599,"access_token":"first"}`))
			return
		}
		w.Write([]byte(`{"token_type":"Bearer","expires_in":3599,"access_token":"second"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", srv.Client(), zerolog.Nop())

	first, err := c.AcquireToken(context.Background(), testCreds)
	require.NoError(t, err)
	second, err := c.AcquireToken(context.Background(), testCreds)
	require.NoError(t, err)

	assert.Equal(t, "first", first)
	assert.Equal(t, "second", second)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAcquireTokenMissingAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token_type":"Bearer","expires_in":3599}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", srv.Client(), zerolog.Nop())
	token, err := c.AcquireToken(context.Background(), testCreds)

	require.Error(t, err)
	assert.Empty(t, token)
	assert.ErrorIs(t, err, ErrAuthentication)

	var authErr *AuthenticationError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "tenant-1", authErr.TenantID)
}

func TestAcquireTokenDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_client","error_description":"AADSTS7000215: Invalid client secret provided."}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", srv.Client(), zerolog.Nop())
	_, err := c.AcquireToken(context.Background(), testCreds)

	require.Error(t, err)
	var authErr *AuthenticationError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
	assert.Contains(t, err.Error(), "status 401")
}

func TestAcquireTokenTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(url, "", &http.Client{}, zerolog.Nop())
	_, err := c.AcquireToken(context.Background(), testCreds)

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAuthentication)
	assert.Contains(t, err.Error(), "failed to request token")
}
