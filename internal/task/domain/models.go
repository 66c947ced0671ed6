package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	userdomain "github.com/smallbiznis/taskhub/internal/user/domain"
)

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	default:
		return false
	}
}

// Task always carries its project's tenant.
type Task struct {
	ID         snowflake.ID    `gorm:"primaryKey" json:"id"`
	Title      string          `gorm:"type:varchar(255);not null" json:"title"`
	Status     Status          `gorm:"type:varchar(16);not null;default:todo" json:"status"`
	ProjectID  snowflake.ID    `gorm:"not null;index" json:"projectId"`
	TenantID   snowflake.ID    `gorm:"not null;index" json:"tenantId"`
	AssignedTo *snowflake.ID   `gorm:"index" json:"assignedTo"`
	Assignee   *userdomain.Ref `gorm:"-" json:"assignee,omitempty"`
	CreatedAt  time.Time       `gorm:"not null" json:"createdAt"`
	UpdatedAt  time.Time       `gorm:"not null" json:"updatedAt"`
}
