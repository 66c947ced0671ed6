// Package domain holds the credential issuer contract.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskhub/internal/authorization"
	tenantdomain "github.com/smallbiznis/taskhub/internal/tenant/domain"
	userdomain "github.com/smallbiznis/taskhub/internal/user/domain"
)

type LoginRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	TenantSubdomain string `json:"tenantSubdomain"`
}

type LoginResponse struct {
	ID        snowflake.ID         `json:"id"`
	FullName  string               `json:"fullName"`
	Email     string               `json:"email"`
	Role      authorization.Role   `json:"role"`
	Tenant    *tenantdomain.Tenant `json:"tenant"`
	Token     string               `json:"token"`
	ExpiresAt time.Time            `json:"expiresAt"`
}

// RegisterRequest adds a user-role member to an existing tenant.
type RegisterRequest struct {
	FullName        string `json:"fullName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	TenantSubdomain string `json:"tenantSubdomain"`
}

type RegisterResponse struct {
	ID        snowflake.ID       `json:"id"`
	FullName  string             `json:"fullName"`
	Email     string             `json:"email"`
	Role      authorization.Role `json:"role"`
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expiresAt"`
}

// Principal is the stored user behind a credential, with its tenant when it has one.
type Principal struct {
	User   userdomain.User      `json:"user"`
	Tenant *tenantdomain.Tenant `json:"tenant"`
}

func (p Principal) Caller() authorization.Caller {
	return p.User.Caller()
}

type Service interface {
	Login(ctx context.Context, req LoginRequest) (LoginResponse, error)
	Register(ctx context.Context, req RegisterRequest) (RegisterResponse, error)
	// Authenticate re-reads the user and tenant rows; nothing but the user id is taken from the token.
	Authenticate(ctx context.Context, rawToken string) (Principal, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (Principal, error)
}
