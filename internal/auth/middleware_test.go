package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestBearerTokenMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		token      string
		header     string
		wantStatus int
		wantError  string
	}{
		{name: "valid token", token: "s3cret", header: "Bearer s3cret", wantStatus: http.StatusOK},
		{name: "missing header", token: "s3cret", wantStatus: http.StatusUnauthorized, wantError: "invalid_request"},
		{name: "basic scheme", token: "s3cret", header: "Basic czNjcmV0", wantStatus: http.StatusUnauthorized, wantError: "invalid_request"},
		{name: "wrong token", token: "s3cret", header: "Bearer nope", wantStatus: http.StatusUnauthorized, wantError: "invalid_token"},
		{name: "disabled", token: "", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			handler := NewBearerTokenMiddleware(tt.token, "skill-sync")(okHandler())

			req := httptest.NewRequest(http.MethodGet, "/v1/repositories/pending", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantError != "" {
				assert.Contains(t, rr.Header().Get("WWW-Authenticate"), `error="`+tt.wantError+`"`)
				assert.Contains(t, rr.Header().Get("WWW-Authenticate"), `realm="skill-sync"`)
			}
		})
	}
}

func TestWrapWithPublicPaths(t *testing.T) {
	t.Parallel()

	handler := WrapWithPublicPaths(NewBearerTokenMiddleware("s3cret", "skill-sync"), DefaultPublicPaths)(okHandler())

	tests := []struct {
		path       string
		wantStatus int
	}{
		{path: "/health", wantStatus: http.StatusOK},
		{path: "/readiness", wantStatus: http.StatusOK},
		{path: "/v1/repositories/pending", wantStatus: http.StatusUnauthorized},
		{path: "/health/../v1/repositories/pending", wantStatus: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))
		assert.Equal(t, tt.wantStatus, rr.Code, tt.path)
	}
}

func TestSanitizeHeaderValue(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "plain", sanitizeHeaderValue("plain"))
	assert.Equal(t, "ab", sanitizeHeaderValue("a\r\nb"))
	assert.Equal(t, `say \"hi\"`, sanitizeHeaderValue(`say "hi"`))
}
