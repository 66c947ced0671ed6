package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskhub/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListTenantFilter struct {
	Status           Status
	SubscriptionPlan Plan
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, tenant *Tenant) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Tenant, error)
	// FindByIDForUpdate row-locks the tenant on stores that support it.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Tenant, error)
	FindBySubdomain(ctx context.Context, db *gorm.DB, subdomain string) (*Tenant, error)
	List(ctx context.Context, db *gorm.DB, filter ListTenantFilter, page pagination.Page) ([]*Tenant, int64, error)
	Update(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error
}
