package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvcrn/pbi-refresh/internal/auth"
	"github.com/dvcrn/pbi-refresh/internal/credentials"
	"github.com/dvcrn/pbi-refresh/internal/powerbi"
	"github.com/dvcrn/pbi-refresh/internal/trigger"
)

type Server struct {
	trigger  *trigger.Trigger
	store    credentials.SecretStore
	adminKey string
	mux      *http.ServeMux
	logger   zerolog.Logger
}

// New creates the trigger server. Credentials are read from store on every
// refresh request, so secrets rotated in the store take effect immediately.
func New(logger zerolog.Logger, t *trigger.Trigger, store credentials.SecretStore, adminKey string) *Server {
	s := &Server{
		trigger:  t,
		store:    store,
		adminKey: adminKey,
		mux:      http.NewServeMux(),
		logger:   logger,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/v1/groups/{workspaceID}/datasets/{datasetID}/refreshes", s.adminMiddleware(s.datasetRefreshHandler))
	s.mux.HandleFunc("/v1/groups/{workspaceID}/dataflows/{dataflowID}/refreshes", s.adminMiddleware(s.dataflowRefreshHandler))
	s.mux.HandleFunc("/health", s.healthHandler)
	s.mux.HandleFunc("/admin/secrets", s.adminMiddleware(s.secretsHandler))
	s.mux.HandleFunc("/admin/secrets/status", s.adminMiddleware(s.secretsStatusHandler))
	s.mux.HandleFunc("/", s.notFoundHandler)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.loggingMiddleware(s.mux).ServeHTTP(w, r)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.logger.Info().
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Str("remote_addr", r.RemoteAddr).
			Str("user_agent", r.UserAgent()).
			Msg("Incoming request")
		next.ServeHTTP(w, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Dur("duration", time.Since(start)).
			Msg("Finished request")
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok"}`))
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	s.logger.Warn().
		Str("method", r.Method).
		Str("uri", r.RequestURI).
		Str("remote_addr", r.RemoteAddr).
		Str("user_agent", r.UserAgent()).
		Msg("Unhandled route")
	http.NotFound(w, r)
}

func (s *Server) datasetRefreshHandler(w http.ResponseWriter, r *http.Request) {
	s.refresh(w, r, powerbi.DatasetTarget(r.PathValue("workspaceID"), r.PathValue("datasetID")))
}

func (s *Server) dataflowRefreshHandler(w http.ResponseWriter, r *http.Request) {
	s.refresh(w, r, powerbi.DataflowTarget(r.PathValue("workspaceID"), r.PathValue("dataflowID")))
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request, target powerbi.Target) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	result, err := trigger.RefreshFromStore(r.Context(), s.trigger, s.store, target)
	if result != nil {
		status := http.StatusAccepted
		if !result.Succeeded() {
			status = http.StatusBadGateway
		}
		s.writeJSON(w, status, newRefreshResponse(result, err))
		return
	}

	status := statusForError(err)
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("Failed to resolve Power BI credentials")
	}
	s.writeError(w, status, err)
}

// statusForError maps failures that produced no upstream answer
func statusForError(err error) int {
	var resolveErr *credentials.ResolveError
	switch {
	case errors.Is(err, powerbi.ErrInvalidTarget):
		return http.StatusBadRequest
	case errors.As(err, &resolveErr):
		return http.StatusInternalServerError
	case errors.Is(err, auth.ErrAuthentication):
		return http.StatusBadGateway
	default:
		return http.StatusServiceUnavailable
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}
