package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/taskhub/internal/audit/domain"
	"github.com/smallbiznis/taskhub/internal/audit/masking"
	"github.com/smallbiznis/taskhub/internal/auditcontext"
	"github.com/smallbiznis/taskhub/internal/authorization"
	"github.com/smallbiznis/taskhub/internal/clock"
	"github.com/smallbiznis/taskhub/internal/observability/metrics"
	"github.com/smallbiznis/taskhub/internal/tenantcontext"
	"github.com/smallbiznis/taskhub/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 250
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    auditdomain.Repository
	Clock   clock.Clock      `optional:"true"`
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    auditdomain.Repository
	clock   clock.Clock
	metrics *metrics.Metrics
}

func NewService(p Params) auditdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("audit.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		clock:   clk,
		metrics: p.Metrics,
	}
}

// Record appends one audit row. Failures are logged and counted; callers treat them as non-fatal.
func (s *Service) Record(ctx context.Context, entry auditdomain.Entry) error {
	action := strings.TrimSpace(string(entry.Action))
	if action == "" {
		return auditdomain.ErrInvalidAction
	}

	entityType := strings.TrimSpace(entry.EntityType)
	if entityType == "" {
		entityType = "unknown"
	}

	tenantID, userID := entry.TenantID, entry.UserID
	if caller, ok := tenantcontext.CallerFromContext(ctx); ok {
		if tenantID == nil && caller.TenantID != nil {
			id := *caller.TenantID
			tenantID = &id
		}
		if userID == nil {
			id := caller.UserID
			userID = &id
		}
	}

	details := masking.MaskDetails(entry.Details)
	if requestID := auditcontext.RequestIDFromContext(ctx); requestID != "" {
		if details == nil {
			details = map[string]any{}
		}
		details["requestId"] = requestID
	}

	row := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		Action:     action,
		EntityType: entityType,
		EntityID:   normalize(entry.EntityID),
		TenantID:   nonZero(tenantID),
		UserID:     nonZero(userID),
		IPAddress:  normalize(auditcontext.IPAddressFromContext(ctx)),
		UserAgent:  normalize(auditcontext.UserAgentFromContext(ctx)),
		CreatedAt:  s.clock.Now(),
	}
	if details != nil {
		row.Details = datatypes.JSONMap(details)
	}

	if err := s.repo.Insert(ctx, s.db, &row); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		s.metrics.RecordAuditFailure(ctx, action)
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	caller, err := tenantcontext.MustCaller(ctx)
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	var tenantFilter *snowflake.ID
	switch caller.Role {
	case authorization.RoleSuperAdmin:
		if raw := strings.TrimSpace(req.TenantID); raw != "" {
			id, err := snowflake.ParseString(raw)
			if err != nil || id == 0 {
				return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidTenant
			}
			tenantFilter = &id
		}
	case authorization.RoleTenantAdmin:
		id, err := authorization.ScopeTenant(caller)
		if err != nil {
			return auditdomain.ListAuditLogResponse{}, err
		}
		tenantFilter = &id
	case authorization.RoleUser:
		return auditdomain.ListAuditLogResponse{}, authorization.ErrForbidden
	default:
		return auditdomain.ListAuditLogResponse{}, authorization.ErrForbidden
	}

	var afterID snowflake.ID
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
		}
		afterID = id
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		TenantID:   tenantFilter,
		Action:     req.Action,
		EntityType: req.EntityType,
		AfterID:    afterID,
		Limit:      pageSize,
	})
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, int32(pageSize), func(item *auditdomain.AuditLog) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > pageSize {
		items = items[:pageSize]
	}

	logs := make([]auditdomain.AuditLog, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		logs = append(logs, *item)
	}

	resp := auditdomain.ListAuditLogResponse{AuditLogs: logs}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func normalize(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func nonZero(id *snowflake.ID) *snowflake.ID {
	if id == nil || *id == 0 {
		return nil
	}
	return id
}
