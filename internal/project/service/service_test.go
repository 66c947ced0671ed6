package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/taskhub/internal/audit/domain"
	auditrepository "github.com/smallbiznis/taskhub/internal/audit/repository"
	auditservice "github.com/smallbiznis/taskhub/internal/audit/service"
	"github.com/smallbiznis/taskhub/internal/authorization"
	"github.com/smallbiznis/taskhub/internal/clock"
	"github.com/smallbiznis/taskhub/internal/project/domain"
	"github.com/smallbiznis/taskhub/internal/project/repository"
	"github.com/smallbiznis/taskhub/internal/quota"
	taskdomain "github.com/smallbiznis/taskhub/internal/task/domain"
	taskrepository "github.com/smallbiznis/taskhub/internal/task/repository"
	tenantdomain "github.com/smallbiznis/taskhub/internal/tenant/domain"
	tenantrepository "github.com/smallbiznis/taskhub/internal/tenant/repository"
	"github.com/smallbiznis/taskhub/internal/tenantcontext"
	userdomain "github.com/smallbiznis/taskhub/internal/user/domain"
	userrepository "github.com/smallbiznis/taskhub/internal/user/repository"
	"github.com/smallbiznis/taskhub/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fixture struct {
	svc   domain.Service
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&tenantdomain.Tenant{},
		&userdomain.User{},
		&domain.Project{},
		&taskdomain.Task{},
		&auditdomain.AuditLog{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	userRepo := userrepository.Provide()

	svc := New(Params{
		DB:       conn,
		Log:      log,
		GenID:    node,
		Repo:     repository.Provide(),
		UserRepo: userRepo,
		TaskRepo: taskrepository.Provide(),
		Quota: quota.New(quota.Params{
			Log:        log,
			TenantRepo: tenantrepository.Provide(),
			UserRepo:   userRepo,
		}),
		AuditSvc: auditservice.NewService(auditservice.Params{
			DB:    conn,
			Log:   log,
			GenID: node,
			Repo:  auditrepository.Provide(),
			Clock: clk,
		}),
		Clock: clk,
	})
	return &fixture{svc: svc, db: conn, node: node, clock: clk}
}

func (f *fixture) tenant(t *testing.T, subdomain string, maxProjects int) snowflake.ID {
	t.Helper()
	now := f.clock.Now()
	tenant := tenantdomain.Tenant{
		ID:               f.node.Generate(),
		Name:             subdomain,
		Subdomain:        subdomain,
		Status:           tenantdomain.StatusActive,
		SubscriptionPlan: tenantdomain.PlanFree,
		MaxUsers:         5,
		MaxProjects:      maxProjects,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, f.db.Create(&tenant).Error)
	return tenant.ID
}

func (f *fixture) member(t *testing.T, tenantID snowflake.ID, name string, role authorization.Role) userdomain.User {
	t.Helper()
	now := f.clock.Now()
	tid := tenantID
	user := userdomain.User{
		ID:           f.node.Generate(),
		FullName:     name,
		Email:        name + "@example.com",
		PasswordHash: "x",
		Role:         role,
		TenantID:     &tid,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, f.db.Create(&user).Error)
	return user
}

func asUser(u userdomain.User) context.Context {
	return tenantcontext.WithCaller(context.Background(), u.Caller())
}

func TestCreateSetsCreatorAndDefaults(t *testing.T) {
	f := newFixture(t)
	acme := f.tenant(t, "acme", 3)
	alice := f.member(t, acme, "alice", authorization.RoleUser)

	project, err := f.svc.Create(asUser(alice), domain.CreateProjectRequest{Name: "  Launch  "})
	require.NoError(t, err)
	assert.Equal(t, "Launch", project.Name)
	assert.Equal(t, domain.StatusActive, project.Status)
	assert.Equal(t, acme, project.TenantID)
	assert.Equal(t, alice.ID, project.CreatedByID)
	require.NotNil(t, project.CreatedBy)
	assert.Equal(t, "alice", project.CreatedBy.FullName)

	_, err = f.svc.Create(asUser(alice), domain.CreateProjectRequest{Name: "x", Status: "paused"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = f.svc.Create(asUser(alice), domain.CreateProjectRequest{Name: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)
}

func TestCreateQuotaLeavesCountUnchanged(t *testing.T) {
	f := newFixture(t)
	acme := f.tenant(t, "acme", 3)
	admin := f.member(t, acme, "admin", authorization.RoleTenantAdmin)
	ctx := asUser(admin)

	for _, name := range []string{"P1", "P2", "P3"} {
		_, err := f.svc.Create(ctx, domain.CreateProjectRequest{Name: name})
		require.NoError(t, err)
	}

	_, err := f.svc.Create(ctx, domain.CreateProjectRequest{Name: "P4"})
	require.ErrorIs(t, err, quota.ErrLimitReached)
	assert.Equal(t, "Project limit reached for plan (3 max)", err.Error())

	projects, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 3)
	for _, p := range projects {
		assert.Equal(t, acme, p.TenantID)
	}
}

func TestSuperAdminHasNoProjectScope(t *testing.T) {
	f := newFixture(t)
	root := tenantcontext.WithCaller(context.Background(), authorization.Caller{UserID: 1, Role: authorization.RoleSuperAdmin})

	_, err := f.svc.Create(root, domain.CreateProjectRequest{Name: "P1"})
	assert.ErrorIs(t, err, authorization.ErrNoTenantScope)

	_, err = f.svc.Create(context.Background(), domain.CreateProjectRequest{Name: "P1"})
	assert.ErrorIs(t, err, authorization.ErrUnauthenticated)
}

func TestCrossTenantAccessIsNotFound(t *testing.T) {
	f := newFixture(t)
	acme := f.tenant(t, "acme", 3)
	globex := f.tenant(t, "globex", 3)
	alice := f.member(t, acme, "alice", authorization.RoleTenantAdmin)
	gina := f.member(t, globex, "gina", authorization.RoleTenantAdmin)

	project, err := f.svc.Create(asUser(gina), domain.CreateProjectRequest{Name: "Secret"})
	require.NoError(t, err)

	_, err = f.svc.GetByID(asUser(alice), project.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	name := "Hijacked"
	_, err = f.svc.Update(asUser(alice), project.ID.String(), domain.UpdateProjectRequest{Name: &name})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = f.svc.Delete(asUser(alice), project.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	listed, err := f.svc.List(asUser(alice))
	require.NoError(t, err)
	assert.Empty(t, listed)

	got, err := f.svc.GetByID(asUser(gina), project.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Secret", got.Name)
}

func TestUpdateAppliesFields(t *testing.T) {
	f := newFixture(t)
	acme := f.tenant(t, "acme", 3)
	alice := f.member(t, acme, "alice", authorization.RoleUser)

	project, err := f.svc.Create(asUser(alice), domain.CreateProjectRequest{Name: "Launch", Description: "v1"})
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	status := "completed"
	desc := "v2"
	updated, err := f.svc.Update(asUser(alice), project.ID.String(), domain.UpdateProjectRequest{Status: &status, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, updated.Status)
	assert.Equal(t, "v2", updated.Description)
	assert.Equal(t, "Launch", updated.Name)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	bad := "paused"
	_, err = f.svc.Update(asUser(alice), project.ID.String(), domain.UpdateProjectRequest{Status: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestDeleteRemovesTasks(t *testing.T) {
	f := newFixture(t)
	acme := f.tenant(t, "acme", 3)
	alice := f.member(t, acme, "alice", authorization.RoleUser)

	project, err := f.svc.Create(asUser(alice), domain.CreateProjectRequest{Name: "Launch"})
	require.NoError(t, err)

	task := taskdomain.Task{
		ID:        f.node.Generate(),
		Title:     "ship",
		Status:    taskdomain.StatusTodo,
		ProjectID: project.ID,
		TenantID:  acme,
		CreatedAt: f.clock.Now(),
		UpdatedAt: f.clock.Now(),
	}
	require.NoError(t, f.db.Create(&task).Error)

	require.NoError(t, f.svc.Delete(asUser(alice), project.ID.String()))

	var tasks int64
	require.NoError(t, f.db.Model(&taskdomain.Task{}).Where("project_id = ?", project.ID).Count(&tasks).Error)
	assert.Zero(t, tasks)

	var actions []string
	require.NoError(t, f.db.Model(&auditdomain.AuditLog{}).Order("id asc").Pluck("action", &actions).Error)
	assert.Equal(t, []string{"CREATE_PROJECT", "DELETE_PROJECT"}, actions)
}
