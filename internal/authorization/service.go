package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/taskhub/internal/audit/domain"
	"github.com/smallbiznis/taskhub/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectTenant   = "tenant"
	ObjectUser     = "user"
	ObjectProject  = "project"
	ObjectTask     = "task"
	ObjectAuditLog = "audit_log"
)

const (
	ActionTenantList   = "tenant.list"
	ActionTenantView   = "tenant.view"
	ActionTenantUpdate = "tenant.update"

	ActionUserList   = "user.list"
	ActionUserCreate = "user.create"
	ActionUserUpdate = "user.update"
	ActionUserDelete = "user.delete"

	ActionProjectView   = "project.view"
	ActionProjectCreate = "project.create"
	ActionProjectUpdate = "project.update"
	ActionProjectDelete = "project.delete"

	ActionTaskView   = "task.view"
	ActionTaskCreate = "task.create"
	ActionTaskUpdate = "task.update"
	ActionTaskDelete = "task.delete"

	ActionAuditLogView = "audit_log.view"
)

// Service checks a caller's role against the capability table.
// Row-level tenant checks are done by the resource services with the predicates in policy.go.
type Service interface {
	Authorize(ctx context.Context, caller Caller, object, action string) error
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
	Metrics  *metrics.Metrics    `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
	metrics  *metrics.Metrics
}

// NewEnforcer loads the capability table from the casbin_rule table and rewrites it to match
// the built-in rows exactly.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	return newEnforcer(adapter)
}

// NewMemoryEnforcer returns an enforcer holding only the built-in rows.
func NewMemoryEnforcer() (*casbin.SyncedEnforcer, error) {
	return newEnforcer(nil)
}

func newEnforcer(adapter persist.Adapter) (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}

	var enforcer *casbin.SyncedEnforcer
	if adapter == nil {
		enforcer, err = casbin.NewSyncedEnforcer(m)
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m, adapter)
	}
	if err != nil {
		return nil, err
	}

	if adapter != nil {
		enforcer.EnableAutoSave(true)
		if err := enforcer.LoadPolicy(); err != nil {
			return nil, err
		}
	}
	if err := syncPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, caller Caller, object, action string) error {
	if caller.UserID == 0 {
		return ErrUnauthenticated
	}
	if !caller.Role.Valid() {
		s.denied(ctx, caller, object, action)
		return ErrForbidden
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	allowed, err := s.enforcer.Enforce(caller.Role.subject(), object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.denied(ctx, caller, object, action)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) denied(ctx context.Context, caller Caller, object, action string) {
	s.log.Debug("authorization denied",
		zap.String("role", caller.Role.String()),
		zap.String("object", object),
		zap.String("action", action),
	)
	s.metrics.RecordAuthorizationDenied(ctx, caller.Role.String(), object, action)
	if s.auditSvc == nil {
		return
	}
	userID := caller.UserID
	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		Action:     auditdomain.ActionAuthorizationDenied,
		EntityType: auditdomain.EntityAuthorization,
		EntityID:   object,
		TenantID:   caller.TenantID,
		UserID:     &userID,
		Details: map[string]any{
			"object": object,
			"action": action,
			"role":   caller.Role.String(),
		},
	})
}

// builtinPolicies lists every capability explicitly; roles never inherit from each other.
func builtinPolicies() [][]string {
	super := RoleSuperAdmin.subject()
	admin := RoleTenantAdmin.subject()
	member := RoleUser.subject()

	return [][]string{
		{super, ObjectTenant, ActionTenantList},
		{super, ObjectTenant, ActionTenantView},
		{super, ObjectTenant, ActionTenantUpdate},
		{super, ObjectAuditLog, ActionAuditLogView},

		{admin, ObjectTenant, ActionTenantView},
		{admin, ObjectTenant, ActionTenantUpdate},
		{admin, ObjectUser, ActionUserList},
		{admin, ObjectUser, ActionUserCreate},
		{admin, ObjectUser, ActionUserUpdate},
		{admin, ObjectUser, ActionUserDelete},
		{admin, ObjectProject, ActionProjectView},
		{admin, ObjectProject, ActionProjectCreate},
		{admin, ObjectProject, ActionProjectUpdate},
		{admin, ObjectProject, ActionProjectDelete},
		{admin, ObjectTask, ActionTaskView},
		{admin, ObjectTask, ActionTaskCreate},
		{admin, ObjectTask, ActionTaskUpdate},
		{admin, ObjectTask, ActionTaskDelete},
		{admin, ObjectAuditLog, ActionAuditLogView},

		// members keep full project/task parity with admins
		{member, ObjectTenant, ActionTenantView},
		{member, ObjectUser, ActionUserUpdate},
		{member, ObjectProject, ActionProjectView},
		{member, ObjectProject, ActionProjectCreate},
		{member, ObjectProject, ActionProjectUpdate},
		{member, ObjectProject, ActionProjectDelete},
		{member, ObjectTask, ActionTaskView},
		{member, ObjectTask, ActionTaskCreate},
		{member, ObjectTask, ActionTaskUpdate},
		{member, ObjectTask, ActionTaskDelete},
	}
}

// syncPolicies removes stored rows that are no longer built in and adds the missing ones.
func syncPolicies(enforcer *casbin.SyncedEnforcer) error {
	want := builtinPolicies()
	wanted := make(map[string]bool, len(want))
	for _, rule := range want {
		wanted[policyKey(rule)] = true
	}

	current, err := enforcer.GetPolicy()
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(current))
	var stale [][]string
	for _, rule := range current {
		key := policyKey(rule)
		have[key] = true
		if !wanted[key] {
			stale = append(stale, rule)
		}
	}

	var missing [][]string
	for _, rule := range want {
		if !have[policyKey(rule)] {
			missing = append(missing, rule)
		}
	}

	if len(stale) > 0 {
		if _, err := enforcer.RemovePolicies(stale); err != nil {
			return err
		}
	}
	if len(missing) > 0 {
		if _, err := enforcer.AddPolicies(missing); err != nil {
			return err
		}
	}
	return nil
}

func policyKey(rule []string) string {
	return strings.Join(rule, "\x00")
}
