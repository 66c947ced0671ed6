package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended:
		return true
	default:
		return false
	}
}

type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanPro, PlanEnterprise:
		return true
	default:
		return false
	}
}

// Tenant is never hard-deleted.
type Tenant struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	Name             string       `gorm:"type:varchar(255);not null" json:"name"`
	Subdomain        string       `gorm:"type:varchar(63);not null;uniqueIndex:ux_tenants_subdomain" json:"subdomain"`
	Status           Status       `gorm:"type:varchar(16);not null;default:active;index" json:"status"`
	SubscriptionPlan Plan         `gorm:"type:varchar(32);not null;default:free" json:"subscriptionPlan"`
	MaxUsers         int          `gorm:"not null" json:"maxUsers"`
	MaxProjects      int          `gorm:"not null" json:"maxProjects"`
	CreatedAt        time.Time    `gorm:"not null;index" json:"createdAt"`
	UpdatedAt        time.Time    `gorm:"not null" json:"updatedAt"`
}

func (t Tenant) Suspended() bool {
	return t.Status == StatusSuspended
}
