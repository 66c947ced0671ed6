package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskhub/internal/tenant/domain"
	"github.com/smallbiznis/taskhub/pkg/db"
	"github.com/smallbiznis/taskhub/pkg/db/option"
	"github.com/smallbiznis/taskhub/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, tenant *domain.Tenant) error {
	return conn.WithContext(ctx).Create(tenant).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Tenant, error) {
	return first(conn.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindByIDForUpdate(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Tenant, error) {
	stmt := conn.WithContext(ctx)
	if db.SupportsRowLocks(conn) {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return first(stmt.Where("id = ?", id))
}

func (r *repo) FindBySubdomain(ctx context.Context, conn *gorm.DB, subdomain string) (*domain.Tenant, error) {
	return first(conn.WithContext(ctx).Where("subdomain = ?", subdomain))
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter domain.ListTenantFilter, page pagination.Page) ([]*domain.Tenant, int64, error) {
	filters := []option.QueryOption{}
	if filter.Status != "" {
		filters = append(filters, option.ApplyOperator(option.Condition{
			Field:    "status",
			Operator: option.EQ,
			Value:    string(filter.Status),
		}))
	}
	if filter.SubscriptionPlan != "" {
		filters = append(filters, option.ApplyOperator(option.Condition{
			Field:    "subscription_plan",
			Operator: option.EQ,
			Value:    string(filter.SubscriptionPlan),
		}))
	}

	var total int64
	if err := option.ApplyAll(conn.WithContext(ctx).Model(&domain.Tenant{}), filters...).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tenants []*domain.Tenant
	stmt := option.ApplyAll(conn.WithContext(ctx).Model(&domain.Tenant{}), filters...)
	stmt = option.ApplyAll(stmt,
		option.WithSortBy(option.QuerySortBy{Default: "created_at"}),
		option.ApplyPagination(page),
	)
	if err := stmt.Find(&tenants).Error; err != nil {
		return nil, 0, err
	}
	return tenants, total, nil
}

func (r *repo) Update(ctx context.Context, conn *gorm.DB, id snowflake.ID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return conn.WithContext(ctx).
		Model(&domain.Tenant{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func first(stmt *gorm.DB) (*domain.Tenant, error) {
	var tenant domain.Tenant
	err := stmt.Take(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}
