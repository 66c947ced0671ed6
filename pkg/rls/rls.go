// Package rls binds a postgres transaction to a single tenant so the
// row level security policies on tenant-owned tables apply to it.
package rls

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskhub/pkg/db"
	"gorm.io/gorm"
)

// Setting is the session variable read by the tenant isolation policies.
const Setting = "app.current_tenant_id"

// WithTenant scopes tx to tenantID until the transaction ends. Dialects
// without row level security are left untouched.
func WithTenant(tx *gorm.DB, tenantID snowflake.ID) error {
	if tx == nil || tx.Dialector == nil || tx.Dialector.Name() != db.TypePostgres {
		return nil
	}
	return tx.Exec("SELECT set_config(?, ?, true)", Setting, tenantID.String()).Error
}
