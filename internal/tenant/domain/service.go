package domain

import (
	"context"
	"errors"

	userdomain "github.com/smallbiznis/taskhub/internal/user/domain"
	"github.com/smallbiznis/taskhub/pkg/db/pagination"
)

type RegisterTenantRequest struct {
	TenantName    string `json:"tenantName"`
	Subdomain     string `json:"subdomain"`
	AdminFullName string `json:"adminFullName"`
	AdminEmail    string `json:"adminEmail"`
	AdminPassword string `json:"adminPassword"`
}

type RegisterTenantResponse struct {
	Tenant Tenant          `json:"tenant"`
	Admin  userdomain.User `json:"admin"`
}

type ListTenantRequest struct {
	pagination.Page
	Status           string `form:"status"`
	SubscriptionPlan string `form:"subscriptionPlan"`
}

type ListTenantResponse struct {
	Tenants     []Tenant `json:"tenants"`
	Total       int64    `json:"total"`
	CurrentPage int      `json:"currentPage"`
	TotalPages  int      `json:"totalPages"`
	Limit       int      `json:"limit"`
}

// UpdateTenantRequest holds optional fields; which ones apply depends on the caller's role.
type UpdateTenantRequest struct {
	Name             *string `json:"name"`
	Status           *string `json:"status"`
	SubscriptionPlan *string `json:"subscriptionPlan"`
	MaxUsers         *int    `json:"maxUsers"`
	MaxProjects      *int    `json:"maxProjects"`
}

type Service interface {
	Register(ctx context.Context, req RegisterTenantRequest) (RegisterTenantResponse, error)
	ResolveBySubdomain(ctx context.Context, subdomain string) (Tenant, error)
	GetByID(ctx context.Context, id string) (Tenant, error)
	List(ctx context.Context, req ListTenantRequest) (ListTenantResponse, error)
	Update(ctx context.Context, id string, req UpdateTenantRequest) (Tenant, error)
}

var (
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidSubdomain = errors.New("invalid_subdomain")
	ErrSubdomainTaken   = errors.New("subdomain_taken")
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidStatus    = errors.New("invalid_status")
	ErrInvalidPlan      = errors.New("invalid_plan")
	ErrInvalidLimit     = errors.New("invalid_limit")
	ErrNotFound         = errors.New("not_found")
	ErrSuspended        = errors.New("tenant_suspended")
)
