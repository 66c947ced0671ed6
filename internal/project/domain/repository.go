package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, project *Project) error
	FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*Project, error)
	List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]*Project, error)
	Update(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, fields map[string]any) error
	Delete(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) error
}
