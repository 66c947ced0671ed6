package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/taskhub/internal/audit/domain"
	"github.com/smallbiznis/taskhub/internal/authorization"
	"github.com/smallbiznis/taskhub/internal/clock"
	"github.com/smallbiznis/taskhub/internal/project/domain"
	"github.com/smallbiznis/taskhub/internal/quota"
	taskdomain "github.com/smallbiznis/taskhub/internal/task/domain"
	"github.com/smallbiznis/taskhub/internal/tenantcontext"
	userdomain "github.com/smallbiznis/taskhub/internal/user/domain"
	"github.com/smallbiznis/taskhub/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	UserRepo userdomain.Repository
	TaskRepo taskdomain.Repository
	Quota    *quota.Enforcer
	AuditSvc auditdomain.Service
	Clock    clock.Clock
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	userRepo userdomain.Repository
	taskRepo taskdomain.Repository
	quota    *quota.Enforcer
	auditSvc auditdomain.Service
	clock    clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("project.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		userRepo: p.UserRepo,
		taskRepo: p.TaskRepo,
		quota:    p.Quota,
		auditSvc: p.AuditSvc,
		clock:    p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateProjectRequest) (domain.Project, error) {
	caller, tenantID, err := scope(ctx)
	if err != nil {
		return domain.Project{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Project{}, domain.ErrInvalidName
	}
	status := domain.StatusActive
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status = domain.Status(raw)
		if !status.Valid() {
			return domain.Project{}, domain.ErrInvalidStatus
		}
	}

	now := s.clock.Now()
	project := domain.Project{
		ID:          s.genID.Generate(),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Status:      status,
		TenantID:    tenantID,
		CreatedByID: caller.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, tenantID); err != nil {
			return err
		}
		if err := s.quota.CheckProjectQuota(ctx, tx, tenantID); err != nil {
			return err
		}
		return s.repo.Insert(ctx, tx, &project)
	})
	if err != nil {
		return domain.Project{}, err
	}

	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		Action:     auditdomain.ActionCreateProject,
		EntityType: auditdomain.EntityProject,
		EntityID:   project.ID.String(),
		TenantID:   &tenantID,
		Details: map[string]any{
			"name": project.Name,
		},
	})

	if err := s.attachCreators(ctx, []*domain.Project{&project}); err != nil {
		return domain.Project{}, err
	}
	return project, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Project, error) {
	_, tenantID, err := scope(ctx)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.List(ctx, s.db, tenantID)
	if err != nil {
		return nil, err
	}
	if err := s.attachCreators(ctx, items); err != nil {
		return nil, err
	}

	projects := make([]domain.Project, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		projects = append(projects, *item)
	}
	return projects, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Project, error) {
	_, tenantID, err := scope(ctx)
	if err != nil {
		return domain.Project{}, err
	}
	projectID, err := parseID(id)
	if err != nil {
		return domain.Project{}, err
	}

	project, err := s.repo.FindByID(ctx, s.db, tenantID, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	if project == nil {
		return domain.Project{}, domain.ErrNotFound
	}
	if err := s.attachCreators(ctx, []*domain.Project{project}); err != nil {
		return domain.Project{}, err
	}
	return *project, nil
}

func (s *Service) Update(ctx context.Context, id string, req domain.UpdateProjectRequest) (domain.Project, error) {
	_, tenantID, err := scope(ctx)
	if err != nil {
		return domain.Project{}, err
	}
	projectID, err := parseID(id)
	if err != nil {
		return domain.Project{}, err
	}

	fields := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Project{}, domain.ErrInvalidName
		}
		fields["name"] = name
	}
	if req.Description != nil {
		fields["description"] = strings.TrimSpace(*req.Description)
	}
	if req.Status != nil {
		status := domain.Status(strings.TrimSpace(*req.Status))
		if !status.Valid() {
			return domain.Project{}, domain.ErrInvalidStatus
		}
		fields["status"] = string(status)
	}

	var updated *domain.Project
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, tenantID); err != nil {
			return err
		}
		current, err := s.repo.FindByID(ctx, tx, tenantID, projectID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		if len(fields) > 0 {
			fields["updated_at"] = s.clock.Now()
			if err := s.repo.Update(ctx, tx, tenantID, projectID, fields); err != nil {
				return err
			}
		}
		updated, err = s.repo.FindByID(ctx, tx, tenantID, projectID)
		return err
	})
	if err != nil {
		return domain.Project{}, err
	}
	if updated == nil {
		return domain.Project{}, domain.ErrNotFound
	}

	details := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == "updated_at" {
			continue
		}
		details[k] = v
	}
	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		Action:     auditdomain.ActionUpdateProject,
		EntityType: auditdomain.EntityProject,
		EntityID:   projectID.String(),
		TenantID:   &tenantID,
		Details:    details,
	})

	if err := s.attachCreators(ctx, []*domain.Project{updated}); err != nil {
		return domain.Project{}, err
	}
	return *updated, nil
}

// Delete removes the project and its tasks together.
func (s *Service) Delete(ctx context.Context, id string) error {
	_, tenantID, err := scope(ctx)
	if err != nil {
		return err
	}
	projectID, err := parseID(id)
	if err != nil {
		return err
	}

	var name string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, tenantID); err != nil {
			return err
		}
		current, err := s.repo.FindByID(ctx, tx, tenantID, projectID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		name = current.Name
		if err := s.taskRepo.DeleteByProject(ctx, tx, tenantID, projectID); err != nil {
			return err
		}
		return s.repo.Delete(ctx, tx, tenantID, projectID)
	})
	if err != nil {
		return err
	}

	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		Action:     auditdomain.ActionDeleteProject,
		EntityType: auditdomain.EntityProject,
		EntityID:   projectID.String(),
		TenantID:   &tenantID,
		Details: map[string]any{
			"name": name,
		},
	})
	return nil
}

func (s *Service) attachCreators(ctx context.Context, projects []*domain.Project) error {
	ids := make([]snowflake.ID, 0, len(projects))
	for _, p := range projects {
		if p != nil {
			ids = append(ids, p.CreatedByID)
		}
	}
	refs, err := s.userRepo.ListRefs(ctx, s.db, ids)
	if err != nil {
		return err
	}
	for _, p := range projects {
		if p == nil {
			continue
		}
		if ref, ok := refs[p.CreatedByID]; ok {
			ref := ref
			p.CreatedBy = &ref
		}
	}
	return nil
}

func scope(ctx context.Context) (authorization.Caller, snowflake.ID, error) {
	caller, err := tenantcontext.MustCaller(ctx)
	if err != nil {
		return authorization.Caller{}, 0, err
	}
	tenantID, err := authorization.ScopeTenant(caller)
	if err != nil {
		return authorization.Caller{}, 0, err
	}
	return caller, tenantID, nil
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
