package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskhub/internal/authorization"
	"github.com/smallbiznis/taskhub/internal/user/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return db.WithContext(ctx).Create(user).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.User, error) {
	return first(db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id))
}

func (r *repo) FindByIDGlobal(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	return first(db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, email string) (*domain.User, error) {
	return first(db.WithContext(ctx).Where("tenant_id = ? AND email = ?", tenantID, email))
}

func (r *repo) FindSuperAdmin(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	return first(db.WithContext(ctx).Where("role = ? AND tenant_id IS NULL AND email = ?", authorization.RoleSuperAdmin, email))
}

// ListByEmail searches every tenant; it backs login, which resolves the tenant afterwards.
func (r *repo) ListByEmail(ctx context.Context, db *gorm.DB, email string) ([]*domain.User, error) {
	var users []*domain.User
	err := db.WithContext(ctx).
		Where("email = ?", email).
		Order("created_at asc, id asc").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]*domain.User, error) {
	var users []*domain.User
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at desc, id desc").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repo) ListRefs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (map[snowflake.ID]domain.Ref, error) {
	refs := make(map[snowflake.ID]domain.Ref, len(ids))
	if len(ids) == 0 {
		return refs, nil
	}
	var rows []domain.Ref
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Select("id, full_name").
		Where("id IN ?", ids).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		refs[row.ID] = row
	}
	return refs, nil
}

func (r *repo) Count(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error
	return count, err
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Model(&domain.User{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(fields).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) error {
	return db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&domain.User{}).Error
}

func first(stmt *gorm.DB) (*domain.User, error) {
	var user domain.User
	err := stmt.Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
