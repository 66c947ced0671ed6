package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, user *User) error
	FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*User, error)
	FindByIDGlobal(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindByEmail(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, email string) (*User, error)
	ListByEmail(ctx context.Context, db *gorm.DB, email string) ([]*User, error)
	List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]*User, error)
	ListRefs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (map[snowflake.ID]Ref, error)
	Count(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) (int64, error)
	Update(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, fields map[string]any) error
	Delete(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) error
	FindSuperAdmin(ctx context.Context, db *gorm.DB, email string) (*User, error)
}
