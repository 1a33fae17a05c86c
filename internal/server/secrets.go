package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/dvcrn/pbi-refresh/internal/credentials"
)

// secretsHandler handles POST /admin/secrets for writing one service
// principal secret into a writable store.
func (s *Server) secretsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	writable, ok := s.store.(credentials.WritableSecretStore)
	if !ok {
		s.logger.Error().Msg("Secret store does not support writes")
		s.writeError(w, http.StatusBadRequest, errors.New("secret store is read-only"))
		return
	}

	var req setSecretRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Error().Err(err).Msg("Failed to parse request body")
		s.writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if !slices.Contains(credentials.Names(), req.Name) {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("unknown secret name %q", req.Name))
		return
	}
	if req.Value == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("missing required field: value"))
		return
	}

	if err := writable.SetSecret(r.Context(), req.Name, req.Value); err != nil {
		s.logger.Error().Err(err).Str("name", req.Name).Msg("Failed to store secret")
		s.writeError(w, http.StatusInternalServerError, errors.New("failed to store secret"))
		return
	}

	s.logger.Info().Str("name", req.Name).Int("length", len(req.Value)).Msg("Secret updated")
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// secretsStatusHandler handles GET /admin/secrets/status. Values never leave
// the server; only presence and length are reported.
func (s *Server) secretsStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	resp := secretsStatusResponse{
		HasCredentials: true,
		Secrets:        make(map[string]secretStatus, len(credentials.Names())),
	}
	for _, name := range credentials.Names() {
		v, err := s.store.GetSecret(r.Context(), name)
		if err != nil {
			resp.HasCredentials = false
			resp.Secrets[name] = secretStatus{Error: err.Error()}
			continue
		}
		resp.Secrets[name] = secretStatus{Present: true, Length: len(v)}
	}

	s.writeJSON(w, http.StatusOK, resp)
}
