package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListTaskFilter struct {
	ProjectID snowflake.ID
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, task *Task) error
	FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*Task, error)
	List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, filter ListTaskFilter) ([]*Task, error)
	Update(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, fields map[string]any) error
	Delete(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) error
	DeleteByProject(ctx context.Context, db *gorm.DB, tenantID, projectID snowflake.ID) error
	ClearAssignee(ctx context.Context, db *gorm.DB, tenantID, userID snowflake.ID) error
}
