package admin

import (
	"net"
	"net/http"
	"strings"
)

// isLocalhost checks if the request originates from a loopback address.
// X-Forwarded-For is intentionally NOT trusted (an attacker could spoof it).
func isLocalhost(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return host == "127.0.0.1" || host == "::1" || host == "localhost"
}

// authMiddleware enforces API access control. Localhost requests bypass
// auth. Remote requests must present `Authorization: Bearer <key>` matching
// a configured admin key hash; with no keys configured, remote access is
// rejected outright.
func (h *APIHandler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isLocalhost(r) {
			next.ServeHTTP(w, r)
			return
		}
		if h.keyVerifier == nil || h.keyVerifier.Empty() {
			h.respondError(w, http.StatusForbidden, "remote access requires configured admin keys")
			return
		}
		rawKey, ok := bearerToken(r)
		if !ok {
			h.respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if err := h.keyVerifier.Verify(rawKey); err != nil {
			h.respondError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the token from an Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
