// Package auth guards the admin back office. Authentication is a single
// static bearer token compared in constant time; there is no user model or
// session state.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/meridian-research/audience/internal/pkg/httputil"
)

// Manager validates admin requests against the configured token.
type Manager struct {
	token string
}

// NewManager creates a Manager. An empty token disables all admin access.
func NewManager(token string) *Manager {
	return &Manager{token: token}
}

// IsAuthenticated reports whether the request carries the admin token.
func (m *Manager) IsAuthenticated(r *http.Request) bool {
	if m.token == "" {
		return false
	}
	header := r.Header.Get("Authorization")
	supplied, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(m.token)) == 1
}

// Middleware rejects unauthenticated requests with a 401.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.IsAuthenticated(r) {
			httputil.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
