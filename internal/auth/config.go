// Package auth guards the admin API with a static bearer token.
package auth

import (
	"path"
	"strings"
)

// DefaultPublicPaths are reachable without a token so probes keep working.
var DefaultPublicPaths = []string{"/health", "/readiness", "/version"}

// IsPublicPath checks if a path should bypass authentication.
// It performs secure path matching by:
// 1. Rejecting paths with encoded path separators to prevent double-encoding attacks
// 2. Normalizing the path to prevent traversal attacks (e.g., /health/../v1/repositories)
// 3. Using segment-aware matching so /health matches /health/check but NOT /healthcheck
func IsPublicPath(requestPath string, publicPaths []string) bool {
	// %2f = /, %2e = .
	lowerPath := strings.ToLower(requestPath)
	if strings.Contains(lowerPath, "%2f") || strings.Contains(lowerPath, "%2e") {
		return false
	}

	cleanPath := path.Clean(requestPath)
	if !strings.HasPrefix(cleanPath, "/") {
		cleanPath = "/" + cleanPath
	}

	for _, publicPath := range publicPaths {
		cleanPublicPath := path.Clean(publicPath)
		if !strings.HasPrefix(cleanPublicPath, "/") {
			cleanPublicPath = "/" + cleanPublicPath
		}

		// Root makes everything public
		if cleanPublicPath == "/" {
			return true
		}
		if cleanPath == cleanPublicPath {
			return true
		}
		// Segment boundary: /health matches /health/check but not /healthcheck
		if strings.HasPrefix(cleanPath, cleanPublicPath+"/") {
			return true
		}
	}
	return false
}
