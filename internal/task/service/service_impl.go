package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/taskhub/internal/audit/domain"
	"github.com/smallbiznis/taskhub/internal/authorization"
	"github.com/smallbiznis/taskhub/internal/clock"
	projectdomain "github.com/smallbiznis/taskhub/internal/project/domain"
	"github.com/smallbiznis/taskhub/internal/task/domain"
	"github.com/smallbiznis/taskhub/internal/tenantcontext"
	userdomain "github.com/smallbiznis/taskhub/internal/user/domain"
	"github.com/smallbiznis/taskhub/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        domain.Repository
	ProjectRepo projectdomain.Repository
	UserRepo    userdomain.Repository
	AuditSvc    auditdomain.Service
	Clock       clock.Clock
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	projectRepo projectdomain.Repository
	userRepo    userdomain.Repository
	auditSvc    auditdomain.Service
	clock       clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("task.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		projectRepo: p.ProjectRepo,
		userRepo:    p.UserRepo,
		auditSvc:    p.AuditSvc,
		clock:       p.Clock,
	}
}

// Create files a task under a project of the caller's tenant. The task inherits the project's tenant.
func (s *Service) Create(ctx context.Context, req domain.CreateTaskRequest) (domain.Task, error) {
	tenantID, err := scope(ctx)
	if err != nil {
		return domain.Task{}, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return domain.Task{}, domain.ErrInvalidTitle
	}
	projectID, err := snowflake.ParseString(strings.TrimSpace(req.ProjectID))
	if err != nil || projectID == 0 {
		return domain.Task{}, domain.ErrInvalidProject
	}
	status := domain.StatusTodo
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status = domain.Status(raw)
		if !status.Valid() {
			return domain.Task{}, domain.ErrInvalidStatus
		}
	}

	now := s.clock.Now()
	task := domain.Task{
		ID:        s.genID.Generate(),
		Title:     title,
		Status:    status,
		ProjectID: projectID,
		TenantID:  tenantID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, tenantID); err != nil {
			return err
		}
		project, err := s.projectRepo.FindByID(ctx, tx, tenantID, projectID)
		if err != nil {
			return err
		}
		if project == nil {
			return domain.ErrProjectNotFound
		}
		if req.AssignedTo != nil && strings.TrimSpace(*req.AssignedTo) != "" {
			assignee, err := s.resolveAssignee(ctx, tx, tenantID, *req.AssignedTo)
			if err != nil {
				return err
			}
			task.AssignedTo = &assignee
		}
		return s.repo.Insert(ctx, tx, &task)
	})
	if err != nil {
		return domain.Task{}, err
	}

	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		Action:     auditdomain.ActionCreateTask,
		EntityType: auditdomain.EntityTask,
		EntityID:   task.ID.String(),
		TenantID:   &tenantID,
		Details: map[string]any{
			"title":     task.Title,
			"projectId": task.ProjectID.String(),
		},
	})

	if err := s.attachAssignees(ctx, []*domain.Task{&task}); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

func (s *Service) List(ctx context.Context, req domain.ListTaskRequest) ([]domain.Task, error) {
	tenantID, err := scope(ctx)
	if err != nil {
		return nil, err
	}

	filter := domain.ListTaskFilter{}
	if raw := strings.TrimSpace(req.ProjectID); raw != "" {
		projectID, err := snowflake.ParseString(raw)
		if err != nil || projectID == 0 {
			return nil, domain.ErrInvalidProject
		}
		filter.ProjectID = projectID
	}

	items, err := s.repo.List(ctx, s.db, tenantID, filter)
	if err != nil {
		return nil, err
	}
	if err := s.attachAssignees(ctx, items); err != nil {
		return nil, err
	}

	tasks := make([]domain.Task, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		tasks = append(tasks, *item)
	}
	return tasks, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Task, error) {
	tenantID, err := scope(ctx)
	if err != nil {
		return domain.Task{}, err
	}
	taskID, err := parseID(id)
	if err != nil {
		return domain.Task{}, err
	}

	task, err := s.repo.FindByID(ctx, s.db, tenantID, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if task == nil {
		return domain.Task{}, domain.ErrNotFound
	}
	if err := s.attachAssignees(ctx, []*domain.Task{task}); err != nil {
		return domain.Task{}, err
	}
	return *task, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id string, req domain.UpdateTaskStatusRequest) (domain.Task, error) {
	tenantID, err := scope(ctx)
	if err != nil {
		return domain.Task{}, err
	}
	taskID, err := parseID(id)
	if err != nil {
		return domain.Task{}, err
	}
	status := domain.Status(strings.TrimSpace(req.Status))
	if !status.Valid() {
		return domain.Task{}, domain.ErrInvalidStatus
	}

	updated, err := s.apply(ctx, tenantID, taskID, func(tx *gorm.DB, current *domain.Task) (map[string]any, error) {
		return map[string]any{"status": string(status)}, nil
	})
	if err != nil {
		return domain.Task{}, err
	}

	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		Action:     auditdomain.ActionUpdateTaskStatus,
		EntityType: auditdomain.EntityTask,
		EntityID:   taskID.String(),
		TenantID:   &tenantID,
		Details: map[string]any{
			"status": string(status),
		},
	})
	return *updated, nil
}

func (s *Service) Update(ctx context.Context, id string, req domain.UpdateTaskRequest) (domain.Task, error) {
	tenantID, err := scope(ctx)
	if err != nil {
		return domain.Task{}, err
	}
	taskID, err := parseID(id)
	if err != nil {
		return domain.Task{}, err
	}

	fields := map[string]any{}
	details := map[string]any{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return domain.Task{}, domain.ErrInvalidTitle
		}
		fields["title"] = title
		details["title"] = title
	}
	if req.Status != nil {
		status := domain.Status(strings.TrimSpace(*req.Status))
		if !status.Valid() {
			return domain.Task{}, domain.ErrInvalidStatus
		}
		fields["status"] = string(status)
		details["status"] = string(status)
	}

	updated, err := s.apply(ctx, tenantID, taskID, func(tx *gorm.DB, current *domain.Task) (map[string]any, error) {
		if !req.AssignedTo.Set {
			return fields, nil
		}
		raw := strings.TrimSpace(req.AssignedTo.ID)
		if raw == "" {
			fields["assigned_to"] = nil
			details["assignedTo"] = nil
			return fields, nil
		}
		assignee, err := s.resolveAssignee(ctx, tx, tenantID, raw)
		if err != nil {
			return nil, err
		}
		fields["assigned_to"] = assignee
		details["assignedTo"] = assignee.String()
		return fields, nil
	})
	if err != nil {
		return domain.Task{}, err
	}

	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		Action:     auditdomain.ActionUpdateTask,
		EntityType: auditdomain.EntityTask,
		EntityID:   taskID.String(),
		TenantID:   &tenantID,
		Details:    details,
	})
	return *updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	tenantID, err := scope(ctx)
	if err != nil {
		return err
	}
	taskID, err := parseID(id)
	if err != nil {
		return err
	}

	var title string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, tenantID); err != nil {
			return err
		}
		current, err := s.repo.FindByID(ctx, tx, tenantID, taskID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		title = current.Title
		return s.repo.Delete(ctx, tx, tenantID, taskID)
	})
	if err != nil {
		return err
	}

	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		Action:     auditdomain.ActionDeleteTask,
		EntityType: auditdomain.EntityTask,
		EntityID:   taskID.String(),
		TenantID:   &tenantID,
		Details: map[string]any{
			"title": title,
		},
	})
	return nil
}

// apply loads the task in a transaction, writes the fields build returns and reloads it.
func (s *Service) apply(ctx context.Context, tenantID, taskID snowflake.ID, build func(tx *gorm.DB, current *domain.Task) (map[string]any, error)) (*domain.Task, error) {
	var updated *domain.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, tenantID); err != nil {
			return err
		}
		current, err := s.repo.FindByID(ctx, tx, tenantID, taskID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		fields, err := build(tx, current)
		if err != nil {
			return err
		}
		if len(fields) > 0 {
			fields["updated_at"] = s.clock.Now()
			if err := s.repo.Update(ctx, tx, tenantID, taskID, fields); err != nil {
				return err
			}
		}
		updated, err = s.repo.FindByID(ctx, tx, tenantID, taskID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, domain.ErrNotFound
	}
	if err := s.attachAssignees(ctx, []*domain.Task{updated}); err != nil {
		return nil, err
	}
	return updated, nil
}

// resolveAssignee accepts only users of the same tenant.
func (s *Service) resolveAssignee(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, raw string) (snowflake.ID, error) {
	userID, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || userID == 0 {
		return 0, domain.ErrInvalidAssignee
	}
	user, err := s.userRepo.FindByID(ctx, tx, tenantID, userID)
	if err != nil {
		return 0, err
	}
	if user == nil {
		return 0, domain.ErrInvalidAssignee
	}
	return user.ID, nil
}

func (s *Service) attachAssignees(ctx context.Context, tasks []*domain.Task) error {
	ids := make([]snowflake.ID, 0, len(tasks))
	for _, t := range tasks {
		if t != nil && t.AssignedTo != nil {
			ids = append(ids, *t.AssignedTo)
		}
	}
	refs, err := s.userRepo.ListRefs(ctx, s.db, ids)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		if t == nil || t.AssignedTo == nil {
			continue
		}
		if ref, ok := refs[*t.AssignedTo]; ok {
			ref := ref
			t.Assignee = &ref
		}
	}
	return nil
}

func scope(ctx context.Context) (snowflake.ID, error) {
	caller, err := tenantcontext.MustCaller(ctx)
	if err != nil {
		return 0, err
	}
	return authorization.ScopeTenant(caller)
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
