package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// adminMiddleware guards refresh and secret routes with the admin key, taken
// from either 'Authorization: Bearer <key>' or 'X-API-Key: <key>'.
// An unset key disables the guarded routes entirely.
func (s *Server) adminMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.adminKey == "" {
			s.logger.Error().Msg("ADMIN_API_KEY not configured, refusing admin request")
			http.Error(w, "Admin API not configured", http.StatusInternalServerError)
			return
		}

		provided, ok := adminKeyFromRequest(r)
		if !ok {
			s.rejectAdmin(w, r, "Missing or malformed admin credentials")
			return
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(s.adminKey)) != 1 {
			s.rejectAdmin(w, r, "Invalid admin API key provided")
			return
		}

		s.logger.Debug().
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Msg("Admin request authorized")

		next(w, r)
	}
}

// adminKeyFromRequest prefers the Authorization header when present
func adminKeyFromRequest(r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", false
		}
		return parts[1], true
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key, true
	}
	return "", false
}

func (s *Server) rejectAdmin(w http.ResponseWriter, r *http.Request, reason string) {
	s.logger.Warn().
		Str("method", r.Method).
		Str("uri", r.RequestURI).
		Str("remote_addr", r.RemoteAddr).
		Msg(reason)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}
