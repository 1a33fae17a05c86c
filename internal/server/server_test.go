package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvcrn/pbi-refresh/internal/auth"
	"github.com/dvcrn/pbi-refresh/internal/credentials"
	"github.com/dvcrn/pbi-refresh/internal/powerbi"
	"github.com/dvcrn/pbi-refresh/internal/trigger"
)

const testAdminKey = "admin-key"

func validStore() credentials.MapStore {
	return credentials.MapStore{
		credentials.SecretClientSecret: "secret-1",
		credentials.SecretClientID:     "client-1",
		credentials.SecretTenantID:     "tenant-1",
	}
}

type upstreams struct {
	idp        *httptest.Server
	api        *httptest.Server
	tokenCalls atomic.Int32
	apiCalls   atomic.Int32
	lastPath   atomic.Value
}

func newUpstreams(t *testing.T, idpStatus, apiStatus int) *upstreams {
	t.Helper()
	u := &upstreams{}
	u.idp = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(idpStatus)
		if idpStatus == http.StatusOK {
			w.Write([]byte(`{"token_type":"Bearer","expires_in":3599,"access_token":"abc"}`))
			return
		}
		w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	u.api = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.apiCalls.Add(1)
		u.lastPath.Store(r.URL.Path)
		w.Header().Set("RequestId", "req-1")
		w.WriteHeader(apiStatus)
	}))
	t.Cleanup(u.idp.Close)
	t.Cleanup(u.api.Close)
	return u
}

func (u *upstreams) trigger() *trigger.Trigger {
	return trigger.New(
		auth.NewClient(u.idp.URL, "", u.idp.Client(), zerolog.Nop()),
		powerbi.NewClient(u.api.URL+"/v1.0", u.api.Client(), zerolog.Nop()),
		zerolog.Nop(),
	)
}

func newTestServer(u *upstreams, store credentials.SecretStore) *Server {
	return New(zerolog.Nop(), u.trigger(), store, testAdminKey)
}

func do(s *Server, method, path string, headers map[string]string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

var bearer = map[string]string{"Authorization": "Bearer " + testAdminKey}

func TestHealth(t *testing.T) {
	s := newTestServer(newUpstreams(t, http.StatusOK, http.StatusAccepted), validStore())

	rec := do(s, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(s, http.MethodPost, "/health", nil, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestNotFound(t *testing.T) {
	s := newTestServer(newUpstreams(t, http.StatusOK, http.StatusAccepted), validStore())
	rec := do(s, http.MethodGet, "/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminKeyRequired(t *testing.T) {
	u := newUpstreams(t, http.StatusOK, http.StatusAccepted)
	s := newTestServer(u, validStore())
	path := "/v1/groups/ws1/datasets/ds1/refreshes"

	t.Run("missing", func(t *testing.T) {
		rec := do(s, http.MethodPost, path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
	t.Run("wrong key", func(t *testing.T) {
		rec := do(s, http.MethodPost, path, map[string]string{"X-API-Key": "nope"}, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
	t.Run("malformed authorization", func(t *testing.T) {
		rec := do(s, http.MethodPost, path, map[string]string{"Authorization": testAdminKey}, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
	t.Run("x-api-key accepted", func(t *testing.T) {
		rec := do(s, http.MethodPost, path, map[string]string{"X-API-Key": testAdminKey}, "")
		assert.Equal(t, http.StatusAccepted, rec.Code)
	})
	t.Run("unconfigured", func(t *testing.T) {
		unconfigured := New(zerolog.Nop(), u.trigger(), validStore(), "")
		rec := do(unconfigured, http.MethodPost, path, bearer, "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	assert.Equal(t, int32(1), u.apiCalls.Load())
}

func TestDatasetRefresh(t *testing.T) {
	u := newUpstreams(t, http.StatusOK, http.StatusAccepted)
	s := newTestServer(u, validStore())

	rec := do(s, http.MethodPost, "/v1/groups/ws1/datasets/ds1/refreshes", bearer, "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp refreshResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.TriggerID)
	assert.Equal(t, "dataset", resp.Kind)
	assert.Equal(t, "ws1", resp.WorkspaceID)
	assert.Equal(t, "ds1", resp.ResourceID)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.True(t, resp.Succeeded)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, "/v1.0/myorg/groups/ws1/datasets/ds1/refreshes", u.lastPath.Load())
}

func TestDataflowRefresh(t *testing.T) {
	u := newUpstreams(t, http.StatusOK, http.StatusOK)
	s := newTestServer(u, validStore())

	rec := do(s, http.MethodPost, "/v1/groups/ws1/dataflows/df1/refreshes", bearer, "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp refreshResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "dataflow", resp.Kind)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/v1.0/myorg/groups/ws1/dataflows/df1/refreshes", u.lastPath.Load())
}

func TestRefreshMethodNotAllowed(t *testing.T) {
	u := newUpstreams(t, http.StatusOK, http.StatusAccepted)
	s := newTestServer(u, validStore())

	rec := do(s, http.MethodGet, "/v1/groups/ws1/datasets/ds1/refreshes", bearer, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, int32(0), u.tokenCalls.Load())
}

func TestRefreshUpstreamRejection(t *testing.T) {
	u := newUpstreams(t, http.StatusOK, http.StatusNotFound)
	s := newTestServer(u, validStore())

	rec := do(s, http.MethodPost, "/v1/groups/ws1/datasets/ds1/refreshes", bearer, "")
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp refreshResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, resp.Succeeded)
	assert.NotEmpty(t, resp.Error)
}

func TestRefreshAuthenticationFailure(t *testing.T) {
	u := newUpstreams(t, http.StatusUnauthorized, http.StatusAccepted)
	s := newTestServer(u, validStore())

	rec := do(s, http.MethodPost, "/v1/groups/ws1/datasets/ds1/refreshes", bearer, "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, int32(0), u.apiCalls.Load())
}

func TestRefreshMissingSecret(t *testing.T) {
	u := newUpstreams(t, http.StatusOK, http.StatusAccepted)
	store := validStore()
	delete(store, credentials.SecretClientID)
	s := newTestServer(u, store)

	rec := do(s, http.MethodPost, "/v1/groups/ws1/datasets/ds1/refreshes", bearer, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), credentials.SecretClientID)
	assert.Equal(t, int32(0), u.tokenCalls.Load())
	assert.Equal(t, int32(0), u.apiCalls.Load())
}

func TestRefreshInvalidTarget(t *testing.T) {
	u := newUpstreams(t, http.StatusOK, http.StatusAccepted)
	s := newTestServer(u, validStore())

	rec := do(s, http.MethodPost, "/v1/groups/ws%3F1/datasets/ds1/refreshes", bearer, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, int32(0), u.tokenCalls.Load())
}

func TestRefreshTransportFailure(t *testing.T) {
	u := newUpstreams(t, http.StatusOK, http.StatusAccepted)
	u.api.Close()
	s := newTestServer(u, validStore())

	rec := do(s, http.MethodPost, "/v1/groups/ws1/datasets/ds1/refreshes", bearer, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusForError(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusForError(powerbi.ErrInvalidTarget))
	assert.Equal(t, http.StatusBadGateway, statusForError(&auth.AuthenticationError{Err: errors.New("bad")}))
	assert.Equal(t, http.StatusServiceUnavailable, statusForError(context.DeadlineExceeded))
	assert.Equal(t, http.StatusInternalServerError,
		statusForError(&credentials.ResolveError{Name: credentials.SecretTenantID, Err: errors.New("unreachable")}))
}

type brokenStore struct{}

func (brokenStore) GetSecret(context.Context, string) (string, error) {
	return "", errors.New("connection refused")
}

func TestRefreshSecretBackendFailure(t *testing.T) {
	u := newUpstreams(t, http.StatusOK, http.StatusAccepted)
	s := newTestServer(u, brokenStore{})

	rec := do(s, http.MethodPost, "/v1/groups/ws1/dataflows/df1/refreshes", bearer, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
	assert.Equal(t, int32(0), u.tokenCalls.Load())
}

func TestRefreshInvalidTargetBeforeSecretLookup(t *testing.T) {
	u := newUpstreams(t, http.StatusOK, http.StatusAccepted)
	s := newTestServer(u, brokenStore{})

	rec := do(s, http.MethodPost, "/v1/groups/ws%231/datasets/ds1/refreshes", bearer, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSecretsAdmin(t *testing.T) {
	u := newUpstreams(t, http.StatusOK, http.StatusAccepted)
	store := credentials.MapStore{}
	s := newTestServer(u, store)

	rec := do(s, http.MethodGet, "/admin/secrets/status", bearer, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status secretsStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.HasCredentials)
	assert.False(t, status.Secrets[credentials.SecretTenantID].Present)

	for name, value := range validStore() {
		body, _ := json.Marshal(setSecretRequest{Name: name, Value: value})
		rec = do(s, http.MethodPost, "/admin/secrets", bearer, string(body))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec = do(s, http.MethodGet, "/admin/secrets/status", bearer, "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.HasCredentials)
	assert.Equal(t, secretStatus{Present: true, Length: len("tenant-1")}, status.Secrets[credentials.SecretTenantID])
	assert.NotContains(t, rec.Body.String(), "secret-1")

	rec = do(s, http.MethodPost, "/admin/secrets", bearer, `{"name":"OTHER","value":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(s, http.MethodPost, "/admin/secrets", bearer, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type readOnlyStore struct{ secrets credentials.MapStore }

func (r readOnlyStore) GetSecret(ctx context.Context, name string) (string, error) {
	return r.secrets.GetSecret(ctx, name)
}

func TestSecretsAdminReadOnlyStore(t *testing.T) {
	u := newUpstreams(t, http.StatusOK, http.StatusAccepted)
	s := New(zerolog.Nop(), u.trigger(), readOnlyStore{validStore()}, testAdminKey)

	rec := do(s, http.MethodPost, "/admin/secrets", bearer, `{"name":"POWER_BI_TENANT_ID","value":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
