package authorization

import "github.com/bwmarrin/snowflake"

// Caller is the identity of an authenticated request, rebuilt from the stored user row on every call.
type Caller struct {
	UserID   snowflake.ID
	Role     Role
	TenantID *snowflake.ID
}

func (c Caller) IsSuperAdmin() bool {
	return c.Role == RoleSuperAdmin
}

// Tenant returns the caller's tenant id, or 0 when the caller has none.
func (c Caller) Tenant() snowflake.ID {
	if c.TenantID == nil {
		return 0
	}
	return *c.TenantID
}

func (c Caller) BelongsTo(tenantID snowflake.ID) bool {
	return c.TenantID != nil && *c.TenantID == tenantID
}
