package auth

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// NewBearerTokenMiddleware rejects requests that do not carry token in an
// Authorization: Bearer header. An empty token disables the check.
func NewBearerTokenMiddleware(token, realm string) func(http.Handler) http.Handler {
	if token == "" {
		slog.Warn("Admin API authentication disabled, no token configured")
		return anonymousMiddleware
	}
	want := []byte(token)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeError(w, realm, http.StatusUnauthorized, "invalid_request", "missing bearer token")
				return
			}
			if !strings.HasPrefix(header, bearerPrefix) {
				writeError(w, realm, http.StatusUnauthorized, "invalid_request", "authorization header must use the Bearer scheme")
				return
			}
			got := []byte(strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				slog.Warn("Admin API request rejected",
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path)
				writeError(w, realm, http.StatusUnauthorized, "invalid_token", "invalid bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func anonymousMiddleware(next http.Handler) http.Handler {
	return next
}

// sanitizeHeaderValue removes characters that could enable header injection attacks.
func sanitizeHeaderValue(s string) string {
	if !strings.ContainsAny(s, "\r\n\"") {
		return s
	}
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	// Escape quotes for use in quoted-string (RFC 7230)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// writeError writes a JSON error with an RFC 6750 WWW-Authenticate header.
func writeError(w http.ResponseWriter, realm string, status int, errCode, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm="%s", error="%s", error_description="%s"`,
		sanitizeHeaderValue(realm), errCode, sanitizeHeaderValue(description)))
	w.WriteHeader(status)

	resp := struct {
		Error string `json:"error"`
	}{
		Error: description,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}

// WrapWithPublicPaths wraps an auth middleware to bypass authentication for public paths.
func WrapWithPublicPaths(
	authMw func(http.Handler) http.Handler,
	publicPaths []string,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		// Wrap once at build time, not per request
		authWrappedNext := authMw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsPublicPath(r.URL.Path, publicPaths) {
				next.ServeHTTP(w, r)
				return
			}
			authWrappedNext.ServeHTTP(w, r)
		})
	}
}
