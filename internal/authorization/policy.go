package authorization

import "github.com/bwmarrin/snowflake"

// ScopeTenant returns the tenant every User/Project/Task query of c must be filtered by.
// super_admin has no tenant and is refused on tenant-scoped resources.
func ScopeTenant(c Caller) (snowflake.ID, error) {
	switch c.Role {
	case RoleTenantAdmin, RoleUser:
		if c.TenantID == nil || *c.TenantID == 0 {
			return 0, ErrForbidden
		}
		return *c.TenantID, nil
	case RoleSuperAdmin:
		return 0, ErrNoTenantScope
	default:
		return 0, ErrForbidden
	}
}

// CanViewTenant allows super_admin on any tenant and everyone else on their own.
func CanViewTenant(c Caller, tenantID snowflake.ID) error {
	switch c.Role {
	case RoleSuperAdmin:
		return nil
	case RoleTenantAdmin, RoleUser:
		if c.BelongsTo(tenantID) {
			return nil
		}
		return ErrForbidden
	default:
		return ErrForbidden
	}
}

// TenantField names a mutable tenant attribute.
type TenantField string

const (
	TenantFieldName             TenantField = "name"
	TenantFieldStatus           TenantField = "status"
	TenantFieldSubscriptionPlan TenantField = "subscriptionPlan"
	TenantFieldMaxUsers         TenantField = "maxUsers"
	TenantFieldMaxProjects      TenantField = "maxProjects"
)

var allTenantFields = []TenantField{
	TenantFieldName,
	TenantFieldStatus,
	TenantFieldSubscriptionPlan,
	TenantFieldMaxUsers,
	TenantFieldMaxProjects,
}

// TenantUpdateFields returns the fields c is allowed to change on tenantID.
// Fields outside the returned set are ignored by the caller, not rejected.
func TenantUpdateFields(c Caller, tenantID snowflake.ID) ([]TenantField, error) {
	switch c.Role {
	case RoleSuperAdmin:
		return append([]TenantField(nil), allTenantFields...), nil
	case RoleTenantAdmin:
		if !c.BelongsTo(tenantID) {
			return nil, ErrForbidden
		}
		return []TenantField{TenantFieldName}, nil
	case RoleUser:
		return nil, ErrForbidden
	default:
		return nil, ErrForbidden
	}
}

// CanManageUsers gates user creation, listing and deletion.
func CanManageUsers(c Caller) error {
	switch c.Role {
	case RoleTenantAdmin:
		return nil
	case RoleSuperAdmin:
		return ErrNoTenantScope
	case RoleUser:
		return ErrForbidden
	default:
		return ErrForbidden
	}
}

// CanDeleteUser applies CanManageUsers plus the self-deletion guard.
func CanDeleteUser(c Caller, targetID snowflake.ID) error {
	if err := CanManageUsers(c); err != nil {
		return err
	}
	if c.UserID == targetID {
		return ErrSelfDeletion
	}
	return nil
}

// CanUpdateUser decides whether c may edit targetID, and whether the edit may include a role change.
func CanUpdateUser(c Caller, targetID snowflake.ID, changesRole bool) error {
	switch c.Role {
	case RoleTenantAdmin:
		return nil
	case RoleUser:
		if c.UserID != targetID || changesRole {
			return ErrForbidden
		}
		return nil
	case RoleSuperAdmin:
		return ErrNoTenantScope
	default:
		return ErrForbidden
	}
}

// AssignableRole reports whether a tenant member may be given r.
func AssignableRole(r Role) bool {
	switch r {
	case RoleTenantAdmin, RoleUser:
		return true
	case RoleSuperAdmin:
		return false
	default:
		return false
	}
}
