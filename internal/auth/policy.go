package auth

import (
	"net/http"
	"strings"
)

// Policy maps requests to required roles.
type Policy struct {
	exemptPrefixes []string
}

// NewPolicy constructs the default console policy.
func NewPolicy() Policy {
	return Policy{
		exemptPrefixes: []string{
			"/healthz",
			"/metrics",
			// Signed separately by the ops HMAC middleware.
			"/internal/",
		},
	}
}

// IsExempt reports whether the request skips authentication entirely.
// Progress streams are exempt because EventSource cannot set headers;
// run IDs are unguessable UUIDs handed out to the authenticated starter.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	path := r.URL.Path
	for _, prefix := range p.exemptPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	if strings.HasPrefix(path, "/api/v1/onboarding/runs/") && strings.HasSuffix(path, "/stream") {
		return true
	}
	return false
}

// RequiredRole returns the role the request needs, or false for unmapped routes.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	if r == nil {
		return "", false
	}
	path := r.URL.Path
	if !strings.HasPrefix(path, "/api/") {
		return "", false
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		return RoleViewer, true
	case http.MethodDelete:
		return RoleAdmin, true
	default:
		return RoleEngineer, true
	}
}
