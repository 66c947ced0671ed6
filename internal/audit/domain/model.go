package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Action string

const (
	ActionRegisterTenant      Action = "REGISTER_TENANT"
	ActionRegisterUser        Action = "REGISTER_USER"
	ActionLogin               Action = "LOGIN"
	ActionLoginFailed         Action = "LOGIN_FAILED"
	ActionLogout              Action = "LOGOUT"
	ActionUpdateTenant        Action = "UPDATE_TENANT"
	ActionCreateUser          Action = "CREATE_USER"
	ActionUpdateUser          Action = "UPDATE_USER"
	ActionDeleteUser          Action = "DELETE_USER"
	ActionCreateProject       Action = "CREATE_PROJECT"
	ActionUpdateProject       Action = "UPDATE_PROJECT"
	ActionDeleteProject       Action = "DELETE_PROJECT"
	ActionCreateTask          Action = "CREATE_TASK"
	ActionUpdateTask          Action = "UPDATE_TASK"
	ActionUpdateTaskStatus    Action = "UPDATE_TASK_STATUS"
	ActionDeleteTask          Action = "DELETE_TASK"
	ActionAuthorizationDenied Action = "AUTHORIZATION_DENIED"
)

const (
	EntityTenant        = "Tenant"
	EntityUser          = "User"
	EntityProject       = "Project"
	EntityTask          = "Task"
	EntityAuthorization = "Authorization"
)

// AuditLog is append-only: no code path updates or deletes a row.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	Action     string            `gorm:"type:varchar(64);not null;index" json:"action"`
	EntityType string            `gorm:"type:varchar(64);not null" json:"entityType"`
	EntityID   *string           `gorm:"type:varchar(64)" json:"entityId,omitempty"`
	TenantID   *snowflake.ID     `gorm:"index" json:"tenantId,omitempty"`
	UserID     *snowflake.ID     `json:"userId,omitempty"`
	IPAddress  *string           `gorm:"type:varchar(64)" json:"ipAddress,omitempty"`
	UserAgent  *string           `gorm:"type:text" json:"userAgent,omitempty"`
	Details    datatypes.JSONMap `json:"details,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;index" json:"timestamp"`
}

// ListFilter narrows a repository listing. A nil TenantID means every tenant.
type ListFilter struct {
	TenantID   *snowflake.ID
	Action     string
	EntityType string
	AfterID    snowflake.ID
	Limit      int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLog, error)
}
