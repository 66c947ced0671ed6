package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskhub/internal/task/domain"
	"github.com/smallbiznis/taskhub/pkg/db/option"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, task *domain.Task) error {
	return db.WithContext(ctx).Create(task).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Task, error) {
	var task domain.Task
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Take(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, filter domain.ListTaskFilter) ([]*domain.Task, error) {
	opts := []option.QueryOption{
		option.ApplyOperator(option.Condition{Field: "tenant_id", Operator: option.EQ, Value: tenantID}),
	}
	if filter.ProjectID != 0 {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "project_id", Operator: option.EQ, Value: filter.ProjectID}))
	}
	opts = append(opts, option.WithSortBy(option.QuerySortBy{Default: "created_at"}))

	var tasks []*domain.Task
	if err := option.ApplyAll(db.WithContext(ctx).Model(&domain.Task{}), opts...).Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Model(&domain.Task{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(fields).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) error {
	return db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&domain.Task{}).Error
}

func (r *repo) DeleteByProject(ctx context.Context, db *gorm.DB, tenantID, projectID snowflake.ID) error {
	return db.WithContext(ctx).
		Where("tenant_id = ? AND project_id = ?", tenantID, projectID).
		Delete(&domain.Task{}).Error
}

// ClearAssignee unassigns every task held by a user that is being removed.
func (r *repo) ClearAssignee(ctx context.Context, db *gorm.DB, tenantID, userID snowflake.ID) error {
	return db.WithContext(ctx).
		Model(&domain.Task{}).
		Where("tenant_id = ? AND assigned_to = ?", tenantID, userID).
		Update("assigned_to", nil).Error
}
