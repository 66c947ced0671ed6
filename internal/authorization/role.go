package authorization

import "strings"

// Role is the closed set of privilege levels a user can hold.
type Role string

const (
	RoleSuperAdmin  Role = "super_admin"
	RoleTenantAdmin Role = "tenant_admin"
	RoleUser        Role = "user"
)

// ParseRole maps a stored or submitted value onto a Role.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if !role.Valid() {
		return "", ErrInvalidRole
	}
	return role, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleTenantAdmin, RoleUser:
		return true
	default:
		return false
	}
}

// TenantScoped reports whether holders of r belong to exactly one tenant.
func (r Role) TenantScoped() bool {
	switch r {
	case RoleSuperAdmin:
		return false
	case RoleTenantAdmin, RoleUser:
		return true
	default:
		return true
	}
}

func (r Role) subject() string {
	return "role:" + string(r)
}

func (r Role) String() string {
	return string(r)
}
