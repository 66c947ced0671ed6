package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/taskhub/internal/audit/domain"
	"github.com/smallbiznis/taskhub/internal/auth/password"
	"github.com/smallbiznis/taskhub/internal/authorization"
	"github.com/smallbiznis/taskhub/internal/clock"
	"github.com/smallbiznis/taskhub/internal/quota"
	taskdomain "github.com/smallbiznis/taskhub/internal/task/domain"
	"github.com/smallbiznis/taskhub/internal/tenantcontext"
	"github.com/smallbiznis/taskhub/internal/user/domain"
	"github.com/smallbiznis/taskhub/pkg/db"
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
	taskRepo taskdomain.Repository
	quota    *quota.Enforcer
	auditSvc auditdomain.Service
	clock    clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("user.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		taskRepo: p.TaskRepo,
		quota:    p.Quota,
		auditSvc: p.AuditSvc,
		clock:    p.Clock,
	}
}

// Create adds a member to the caller's tenant. The quota check and the insert share a transaction.
func (s *Service) Create(ctx context.Context, req domain.CreateUserRequest) (domain.User, error) {
	caller, err := tenantcontext.MustCaller(ctx)
	if err != nil {
		return domain.User{}, err
	}
	if err := authorization.CanManageUsers(caller); err != nil {
		return domain.User{}, err
	}
	tenantID, err := authorization.ScopeTenant(caller)
	if err != nil {
		return domain.User{}, err
	}

	fullName, email, err := domain.ValidateNewAccount(req.FullName, req.Email, req.Password)
	if err != nil {
		return domain.User{}, err
	}
	role, err := parseMemberRole(req.Role)
	if err != nil {
		return domain.User{}, err
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return domain.User{}, err
	}

	now := s.clock.Now()
	user := domain.User{
		ID:           s.genID.Generate(),
		FullName:     fullName,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		TenantID:     &tenantID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, tenantID); err != nil {
			return err
		}
		if err := s.quota.CheckUserQuota(ctx, tx, tenantID); err != nil {
			return err
		}
		existing, err := s.repo.FindByEmail(ctx, tx, tenantID, email)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrEmailTaken
		}
		if err := s.repo.Insert(ctx, tx, &user); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrEmailTaken
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}

	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		Action:     auditdomain.ActionCreateUser,
		EntityType: auditdomain.EntityUser,
		EntityID:   user.ID.String(),
		TenantID:   &tenantID,
		Details: map[string]any{
			"email": user.Email,
			"role":  string(user.Role),
		},
	})

	return user, nil
}

func (s *Service) List(ctx context.Context) ([]domain.User, error) {
	caller, err := tenantcontext.MustCaller(ctx)
	if err != nil {
		return nil, err
	}
	if err := authorization.CanManageUsers(caller); err != nil {
		return nil, err
	}
	tenantID, err := authorization.ScopeTenant(caller)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.List(ctx, s.db, tenantID)
	if err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		users = append(users, *item)
	}
	return users, nil
}

// Update lets tenant_admin edit any member, and a user edit their own full name.
func (s *Service) Update(ctx context.Context, id string, req domain.UpdateUserRequest) (domain.User, error) {
	caller, err := tenantcontext.MustCaller(ctx)
	if err != nil {
		return domain.User{}, err
	}
	tenantID, err := authorization.ScopeTenant(caller)
	if err != nil {
		return domain.User{}, err
	}
	userID, err := parseID(id)
	if err != nil {
		return domain.User{}, err
	}
	if err := authorization.CanUpdateUser(caller, userID, req.Role != nil); err != nil {
		return domain.User{}, err
	}

	fields := map[string]any{}
	details := map[string]any{}
	if req.FullName != nil {
		fullName := strings.TrimSpace(*req.FullName)
		if fullName == "" {
			return domain.User{}, domain.ErrInvalidFullName
		}
		fields["full_name"] = fullName
		details["fullName"] = fullName
	}
	if req.Role != nil {
		role, err := parseMemberRole(*req.Role)
		if err != nil {
			return domain.User{}, err
		}
		fields["role"] = string(role)
		details["role"] = string(role)
	}

	var updated *domain.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, tenantID); err != nil {
			return err
		}
		current, err := s.repo.FindByID(ctx, tx, tenantID, userID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		if len(fields) > 0 {
			fields["updated_at"] = s.clock.Now()
			if err := s.repo.Update(ctx, tx, tenantID, userID, fields); err != nil {
				return err
			}
		}
		updated, err = s.repo.FindByID(ctx, tx, tenantID, userID)
		return err
	})
	if err != nil {
		return domain.User{}, err
	}
	if updated == nil {
		return domain.User{}, domain.ErrNotFound
	}

	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		Action:     auditdomain.ActionUpdateUser,
		EntityType: auditdomain.EntityUser,
		EntityID:   userID.String(),
		TenantID:   &tenantID,
		Details:    details,
	})

	return *updated, nil
}

// Delete removes a member and unassigns their tasks in the same transaction.
func (s *Service) Delete(ctx context.Context, id string) error {
	caller, err := tenantcontext.MustCaller(ctx)
	if err != nil {
		return err
	}
	userID, err := parseID(id)
	if err != nil {
		return err
	}
	if err := authorization.CanDeleteUser(caller, userID); err != nil {
		return err
	}
	tenantID, err := authorization.ScopeTenant(caller)
	if err != nil {
		return err
	}

	var deleted *domain.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, tenantID); err != nil {
			return err
		}
		current, err := s.repo.FindByID(ctx, tx, tenantID, userID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		if err := s.taskRepo.ClearAssignee(ctx, tx, tenantID, userID); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, tx, tenantID, userID); err != nil {
			return err
		}
		deleted = current
		return nil
	})
	if err != nil {
		return err
	}

	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		Action:     auditdomain.ActionDeleteUser,
		EntityType: auditdomain.EntityUser,
		EntityID:   userID.String(),
		TenantID:   &tenantID,
		Details: map[string]any{
			"email": deleted.Email,
		},
	})

	s.log.Info("user deleted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("user_id", userID.String()),
	)
	return nil
}

// parseMemberRole defaults to user and refuses super_admin.
func parseMemberRole(raw string) (authorization.Role, error) {
	if strings.TrimSpace(raw) == "" {
		return authorization.RoleUser, nil
	}
	role, err := authorization.ParseRole(raw)
	if err != nil || !authorization.AssignableRole(role) {
		return "", domain.ErrInvalidRole
	}
	return role, nil
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
