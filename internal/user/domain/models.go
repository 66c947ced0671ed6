package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskhub/internal/authorization"
)

// User belongs to exactly one tenant unless it is a super_admin, whose TenantID is nil.
// (email, tenant_id) is unique, so one address can join several tenants.
type User struct {
	ID           snowflake.ID       `gorm:"primaryKey" json:"id"`
	FullName     string             `gorm:"type:varchar(255);not null" json:"fullName"`
	Email        string             `gorm:"type:varchar(255);not null;uniqueIndex:ux_users_email_tenant,priority:1" json:"email"`
	PasswordHash string             `gorm:"type:text;not null" json:"-"`
	Role         authorization.Role `gorm:"type:varchar(32);not null" json:"role"`
	TenantID     *snowflake.ID      `gorm:"uniqueIndex:ux_users_email_tenant,priority:2;index:idx_users_tenant_id" json:"tenantId"`
	CreatedAt    time.Time          `gorm:"not null" json:"createdAt"`
	UpdatedAt    time.Time          `gorm:"not null" json:"updatedAt"`
}

// Caller is the authorization identity derived from the stored row.
func (u User) Caller() authorization.Caller {
	return authorization.Caller{
		UserID:   u.ID,
		Role:     u.Role,
		TenantID: u.TenantID,
	}
}

// Ref is the compact form embedded in projects and tasks.
type Ref struct {
	ID       snowflake.ID `json:"id"`
	FullName string       `json:"fullName"`
}
