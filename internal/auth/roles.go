package auth

// Role is a console role carried in the JWT. Viewers read dashboards and
// reports, engineers onboard devices and commit rules, admins additionally
// delete resources.
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleEngineer Role = "engineer"
	RoleAdmin    Role = "admin"
)

var roleRank = map[Role]int{
	RoleViewer:   1,
	RoleEngineer: 2,
	RoleAdmin:    3,
}

// ParseRole maps a claim value onto a known console role.
func ParseRole(value string) (Role, bool) {
	role := Role(value)
	_, ok := roleRank[role]
	if !ok {
		return "", false
	}
	return role, true
}

// RoleAtLeast reports whether role satisfies the required role. Unknown
// roles rank below viewer and satisfy nothing.
func RoleAtLeast(role, required Role) bool {
	return roleRank[role] >= roleRank[required]
}
