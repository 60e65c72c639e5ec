package auth

import (
	"net/http"
	"strings"
)

// Middleware authenticates console requests and gates them by role. Routes
// the policy leaves unmapped pass through untouched, which keeps health,
// metrics and the ops surface on their own auth schemes.
type Middleware struct {
	secret []byte
	policy Policy
}

// NewMiddleware constructs an auth middleware.
func NewMiddleware(secret []byte, policy Policy) *Middleware {
	return &Middleware{secret: secret, policy: policy}
}

// Wrap applies authentication and the role gate to next.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}
		required, gated := m.policy.RequiredRole(r)
		if !gated {
			next.ServeHTTP(w, r)
			return
		}

		claims, role, err := m.authenticate(r)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !RoleAtLeast(role, required) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		ctx := WithIdentity(r.Context(), claims.OrganizationID, role, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticate verifies the bearer token and resolves the console role. A
// token with an unknown role still authenticates; it just satisfies no gate.
func (m *Middleware) authenticate(r *http.Request) (Claims, Role, error) {
	claims, err := ParseJWT(bearerToken(r), m.secret)
	if err != nil {
		return Claims{}, "", err
	}
	role, _ := ParseRole(claims.Role)
	return claims, role, nil
}

func bearerToken(r *http.Request) string {
	if r == nil {
		return ""
	}
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
