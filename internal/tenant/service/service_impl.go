package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	auditdomain "github.com/smallbiznis/taskhub/internal/audit/domain"
	"github.com/smallbiznis/taskhub/internal/auth/password"
	"github.com/smallbiznis/taskhub/internal/authorization"
	"github.com/smallbiznis/taskhub/internal/clock"
	"github.com/smallbiznis/taskhub/internal/config"
	"github.com/smallbiznis/taskhub/internal/tenant/domain"
	"github.com/smallbiznis/taskhub/internal/tenantcontext"
	userdomain "github.com/smallbiznis/taskhub/internal/user/domain"
	"github.com/smallbiznis/taskhub/pkg/db"
	"github.com/smallbiznis/taskhub/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxSubdomainLength = 63

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	UserRepo userdomain.Repository
	Plans    *config.PlanCatalogHolder
	AuditSvc auditdomain.Service
	Clock    clock.Clock
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	userRepo userdomain.Repository
	plans    *config.PlanCatalogHolder
	auditSvc auditdomain.Service
	clock    clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("tenant.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		userRepo: p.UserRepo,
		plans:    p.Plans,
		auditSvc: p.AuditSvc,
		clock:    p.Clock,
	}
}

// Register creates a tenant on the default plan together with its first tenant_admin.
// Both rows commit together or not at all.
func (s *Service) Register(ctx context.Context, req domain.RegisterTenantRequest) (domain.RegisterTenantResponse, error) {
	name := strings.TrimSpace(req.TenantName)
	if name == "" {
		return domain.RegisterTenantResponse{}, domain.ErrInvalidName
	}
	subdomain, err := normalizeSubdomain(req.Subdomain)
	if err != nil {
		return domain.RegisterTenantResponse{}, err
	}
	fullName, email, err := userdomain.ValidateNewAccount(req.AdminFullName, req.AdminEmail, req.AdminPassword)
	if err != nil {
		return domain.RegisterTenantResponse{}, err
	}

	hash, err := password.Hash(req.AdminPassword)
	if err != nil {
		return domain.RegisterTenantResponse{}, err
	}

	plan := s.plans.Get().DefaultPlan()
	now := s.clock.Now()
	tenant := domain.Tenant{
		ID:               s.genID.Generate(),
		Name:             name,
		Subdomain:        subdomain,
		Status:           domain.StatusActive,
		SubscriptionPlan: domain.Plan(plan.Name),
		MaxUsers:         plan.MaxUsers,
		MaxProjects:      plan.MaxProjects,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	tenantID := tenant.ID
	admin := userdomain.User{
		ID:           s.genID.Generate(),
		FullName:     fullName,
		Email:        email,
		PasswordHash: hash,
		Role:         authorization.RoleTenantAdmin,
		TenantID:     &tenantID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindBySubdomain(ctx, tx, subdomain)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrSubdomainTaken
		}
		if err := s.repo.Insert(ctx, tx, &tenant); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrSubdomainTaken
			}
			return err
		}
		return s.userRepo.Insert(ctx, tx, &admin)
	})
	if err != nil {
		return domain.RegisterTenantResponse{}, err
	}

	adminID := admin.ID
	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		Action:     auditdomain.ActionRegisterTenant,
		EntityType: auditdomain.EntityTenant,
		EntityID:   tenant.ID.String(),
		TenantID:   &tenantID,
		UserID:     &adminID,
		Details: map[string]any{
			"subdomain":        subdomain,
			"subscriptionPlan": plan.Name,
		},
	})

	s.log.Info("tenant registered",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("subdomain", subdomain),
	)

	return domain.RegisterTenantResponse{Tenant: tenant, Admin: admin}, nil
}

// ResolveBySubdomain matches the subdomain exactly.
func (s *Service) ResolveBySubdomain(ctx context.Context, subdomain string) (domain.Tenant, error) {
	subdomain = strings.TrimSpace(subdomain)
	if subdomain == "" {
		return domain.Tenant{}, domain.ErrNotFound
	}
	tenant, err := s.repo.FindBySubdomain(ctx, s.db, subdomain)
	if err != nil {
		return domain.Tenant{}, err
	}
	if tenant == nil {
		return domain.Tenant{}, domain.ErrNotFound
	}
	return *tenant, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Tenant, error) {
	caller, err := tenantcontext.MustCaller(ctx)
	if err != nil {
		return domain.Tenant{}, err
	}
	tenantID, err := parseID(id)
	if err != nil {
		return domain.Tenant{}, err
	}
	if err := authorization.CanViewTenant(caller, tenantID); err != nil {
		return domain.Tenant{}, err
	}

	tenant, err := s.repo.FindByID(ctx, s.db, tenantID)
	if err != nil {
		return domain.Tenant{}, err
	}
	if tenant == nil {
		return domain.Tenant{}, domain.ErrNotFound
	}
	return *tenant, nil
}

func (s *Service) List(ctx context.Context, req domain.ListTenantRequest) (domain.ListTenantResponse, error) {
	caller, err := tenantcontext.MustCaller(ctx)
	if err != nil {
		return domain.ListTenantResponse{}, err
	}
	if !caller.IsSuperAdmin() {
		return domain.ListTenantResponse{}, authorization.ErrForbidden
	}

	filter := domain.ListTenantFilter{}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status := domain.Status(raw)
		if !status.Valid() {
			return domain.ListTenantResponse{}, domain.ErrInvalidStatus
		}
		filter.Status = status
	}
	if raw := strings.TrimSpace(req.SubscriptionPlan); raw != "" {
		plan := domain.Plan(raw)
		if !plan.Valid() {
			return domain.ListTenantResponse{}, domain.ErrInvalidPlan
		}
		filter.SubscriptionPlan = plan
	}

	page := req.Page.Normalize()
	items, total, err := s.repo.List(ctx, s.db, filter, page)
	if err != nil {
		return domain.ListTenantResponse{}, err
	}

	tenants := make([]domain.Tenant, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		tenants = append(tenants, *item)
	}

	return domain.ListTenantResponse{
		Tenants:     tenants,
		Total:       total,
		CurrentPage: page.Page,
		TotalPages:  pagination.TotalPages(total, page.Limit),
		Limit:       page.Limit,
	}, nil
}

// Update applies the subset of req the caller's role may change. Other fields are ignored.
func (s *Service) Update(ctx context.Context, id string, req domain.UpdateTenantRequest) (domain.Tenant, error) {
	caller, err := tenantcontext.MustCaller(ctx)
	if err != nil {
		return domain.Tenant{}, err
	}
	tenantID, err := parseID(id)
	if err != nil {
		return domain.Tenant{}, err
	}

	allowed, err := authorization.TenantUpdateFields(caller, tenantID)
	if err != nil {
		return domain.Tenant{}, err
	}
	permitted := make(map[authorization.TenantField]bool, len(allowed))
	for _, field := range allowed {
		permitted[field] = true
	}

	fields, details, err := s.buildUpdate(permitted, req)
	if err != nil {
		return domain.Tenant{}, err
	}

	var updated *domain.Tenant
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByID(ctx, tx, tenantID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		if len(fields) > 0 {
			fields["updated_at"] = s.clock.Now()
			if err := s.repo.Update(ctx, tx, tenantID, fields); err != nil {
				return err
			}
		}
		updated, err = s.repo.FindByID(ctx, tx, tenantID)
		return err
	})
	if err != nil {
		return domain.Tenant{}, err
	}
	if updated == nil {
		return domain.Tenant{}, domain.ErrNotFound
	}

	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		Action:     auditdomain.ActionUpdateTenant,
		EntityType: auditdomain.EntityTenant,
		EntityID:   tenantID.String(),
		TenantID:   &tenantID,
		Details:    details,
	})

	return *updated, nil
}

func (s *Service) buildUpdate(permitted map[authorization.TenantField]bool, req domain.UpdateTenantRequest) (map[string]any, map[string]any, error) {
	fields := map[string]any{}
	details := map[string]any{}

	if permitted[authorization.TenantFieldName] && req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, nil, domain.ErrInvalidName
		}
		fields["name"] = name
		details["name"] = name
	}
	if permitted[authorization.TenantFieldStatus] && req.Status != nil {
		status := domain.Status(strings.TrimSpace(*req.Status))
		if !status.Valid() {
			return nil, nil, domain.ErrInvalidStatus
		}
		fields["status"] = string(status)
		details["status"] = string(status)
	}
	if permitted[authorization.TenantFieldSubscriptionPlan] && req.SubscriptionPlan != nil {
		plan := domain.Plan(strings.TrimSpace(*req.SubscriptionPlan))
		if !plan.Valid() {
			return nil, nil, domain.ErrInvalidPlan
		}
		fields["subscription_plan"] = string(plan)
		details["subscriptionPlan"] = string(plan)

		// limits follow the plan unless the request sets them explicitly
		if limits, ok := s.plans.Get().Lookup(string(plan)); ok {
			fields["max_users"] = limits.MaxUsers
			fields["max_projects"] = limits.MaxProjects
			details["maxUsers"] = limits.MaxUsers
			details["maxProjects"] = limits.MaxProjects
		}
	}
	if permitted[authorization.TenantFieldMaxUsers] && req.MaxUsers != nil {
		if *req.MaxUsers < 0 {
			return nil, nil, domain.ErrInvalidLimit
		}
		fields["max_users"] = *req.MaxUsers
		details["maxUsers"] = *req.MaxUsers
	}
	if permitted[authorization.TenantFieldMaxProjects] && req.MaxProjects != nil {
		if *req.MaxProjects < 0 {
			return nil, nil, domain.ErrInvalidLimit
		}
		fields["max_projects"] = *req.MaxProjects
		details["maxProjects"] = *req.MaxProjects
	}
	return fields, details, nil
}

// normalizeSubdomain accepts only values that are already a slug.
func normalizeSubdomain(raw string) (string, error) {
	subdomain := strings.TrimSpace(raw)
	if subdomain == "" || len(subdomain) > maxSubdomainLength {
		return "", domain.ErrInvalidSubdomain
	}
	if slug.Make(subdomain) != subdomain {
		return "", domain.ErrInvalidSubdomain
	}
	return subdomain, nil
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
