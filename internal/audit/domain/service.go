package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskhub/pkg/db/pagination"
)

// Entry describes one audited action. TenantID and UserID fall back to the request caller when nil.
type Entry struct {
	Action     Action
	EntityType string
	EntityID   string
	TenantID   *snowflake.ID
	UserID     *snowflake.ID
	Details    map[string]any
}

type ListAuditLogRequest struct {
	pagination.Pagination
	Action     string `form:"action"`
	EntityType string `form:"entityType"`
	TenantID   string `form:"tenantId"`
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"auditLogs"`
}

type Service interface {
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidAction    = errors.New("invalid_action")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrInvalidTenant    = errors.New("invalid_tenant")
)
