package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	userdomain "github.com/smallbiznis/taskhub/internal/user/domain"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusArchived  Status = "archived"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusArchived, StatusCompleted:
		return true
	default:
		return false
	}
}

// Project shares its tenant with its creator.
type Project struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	Description string          `gorm:"type:text;not null;default:''" json:"description"`
	Status      Status          `gorm:"type:varchar(16);not null;default:active" json:"status"`
	TenantID    snowflake.ID    `gorm:"not null;index" json:"tenantId"`
	CreatedByID snowflake.ID    `gorm:"not null" json:"createdById"`
	CreatedBy   *userdomain.Ref `gorm:"-" json:"createdBy,omitempty"`
	CreatedAt   time.Time       `gorm:"not null;index" json:"createdAt"`
	UpdatedAt   time.Time       `gorm:"not null" json:"updatedAt"`
}
