package auth

import "context"

type contextKey string

const (
	organizationKey contextKey = "auth.organization"
	roleKey         contextKey = "auth.role"
	subjectKey      contextKey = "auth.subject"
)

// WithIdentity stamps the authenticated identity onto the context.
func WithIdentity(ctx context.Context, organizationID string, role Role, subject string) context.Context {
	ctx = context.WithValue(ctx, organizationKey, organizationID)
	ctx = context.WithValue(ctx, roleKey, role)
	return context.WithValue(ctx, subjectKey, subject)
}

// OrganizationFromContext returns the caller's organization, if any.
func OrganizationFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if org, ok := ctx.Value(organizationKey).(string); ok {
		return org
	}
	return ""
}

// RoleFromContext returns the caller's role, if any.
func RoleFromContext(ctx context.Context) Role {
	if ctx == nil {
		return ""
	}
	if role, ok := ctx.Value(roleKey).(Role); ok {
		return role
	}
	return ""
}

// SubjectFromContext returns the caller's subject, if any.
func SubjectFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if subject, ok := ctx.Value(subjectKey).(string); ok {
		return subject
	}
	return ""
}
