// Package quota enforces the per-tenant user and project caps.
package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskhub/internal/observability/metrics"
	projectdomain "github.com/smallbiznis/taskhub/internal/project/domain"
	tenantdomain "github.com/smallbiznis/taskhub/internal/tenant/domain"
	userdomain "github.com/smallbiznis/taskhub/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrLimitReached = errors.New("limit_reached")

type Resource string

const (
	ResourceUsers    Resource = "users"
	ResourceProjects Resource = "projects"
)

// LimitError reports which cap was hit; its message is shown to callers verbatim.
type LimitError struct {
	Resource Resource
	Max      int
}

func (e *LimitError) Error() string {
	switch e.Resource {
	case ResourceUsers:
		return fmt.Sprintf("User limit reached for plan (%d max)", e.Max)
	case ResourceProjects:
		return fmt.Sprintf("Project limit reached for plan (%d max)", e.Max)
	default:
		return fmt.Sprintf("Limit reached for plan (%d max)", e.Max)
	}
}

func (e *LimitError) Is(target error) bool {
	return target == ErrLimitReached
}

type Params struct {
	fx.In

	Log        *zap.Logger
	TenantRepo tenantdomain.Repository
	UserRepo   userdomain.Repository
	Metrics    *metrics.Metrics `optional:"true"`
}

type Enforcer struct {
	log        *zap.Logger
	tenantRepo tenantdomain.Repository
	userRepo   userdomain.Repository
	metrics    *metrics.Metrics
}

func New(p Params) *Enforcer {
	return &Enforcer{
		log:        p.Log.Named("quota"),
		tenantRepo: p.TenantRepo,
		userRepo:   p.UserRepo,
		metrics:    p.Metrics,
	}
}

// CheckUserQuota must run inside the transaction that inserts the user. It locks the tenant row
// first, so concurrent creators for the same tenant are serialised until commit.
func (e *Enforcer) CheckUserQuota(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID) error {
	tenant, err := e.lockTenant(ctx, tx, tenantID)
	if err != nil {
		return err
	}
	count, err := e.userRepo.Count(ctx, tx, tenantID)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	return e.compare(ctx, tenant, ResourceUsers, count, tenant.MaxUsers)
}

// CheckProjectQuota is CheckUserQuota for projects.
func (e *Enforcer) CheckProjectQuota(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID) error {
	tenant, err := e.lockTenant(ctx, tx, tenantID)
	if err != nil {
		return err
	}
	var count int64
	if err := tx.WithContext(ctx).
		Model(&projectdomain.Project{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("count projects: %w", err)
	}
	return e.compare(ctx, tenant, ResourceProjects, count, tenant.MaxProjects)
}

func (e *Enforcer) lockTenant(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID) (*tenantdomain.Tenant, error) {
	tenant, err := e.tenantRepo.FindByIDForUpdate(ctx, tx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load tenant: %w", err)
	}
	if tenant == nil {
		return nil, tenantdomain.ErrNotFound
	}
	return tenant, nil
}

func (e *Enforcer) compare(ctx context.Context, tenant *tenantdomain.Tenant, resource Resource, count int64, max int) error {
	if count < int64(max) {
		return nil
	}
	e.log.Info("quota reached",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("resource", string(resource)),
		zap.Int64("count", count),
		zap.Int("max", max),
	)
	e.metrics.RecordQuotaDenied(ctx, string(resource), string(tenant.SubscriptionPlan))
	return &LimitError{Resource: resource, Max: max}
}
