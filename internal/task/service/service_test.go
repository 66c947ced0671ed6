package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/taskhub/internal/audit/domain"
	auditrepository "github.com/smallbiznis/taskhub/internal/audit/repository"
	auditservice "github.com/smallbiznis/taskhub/internal/audit/service"
	"github.com/smallbiznis/taskhub/internal/authorization"
	"github.com/smallbiznis/taskhub/internal/clock"
	projectdomain "github.com/smallbiznis/taskhub/internal/project/domain"
	projectrepository "github.com/smallbiznis/taskhub/internal/project/repository"
	"github.com/smallbiznis/taskhub/internal/task/domain"
	"github.com/smallbiznis/taskhub/internal/task/repository"
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
		&userdomain.User{},
		&projectdomain.Project{},
		&domain.Task{},
		&auditdomain.AuditLog{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	svc := New(Params{
		DB:          conn,
		Log:         log,
		GenID:       node,
		Repo:        repository.Provide(),
		ProjectRepo: projectrepository.Provide(),
		UserRepo:    userrepository.Provide(),
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

func (f *fixture) member(t *testing.T, tenantID snowflake.ID, name string) userdomain.User {
	t.Helper()
	tid := tenantID
	user := userdomain.User{
		ID:           f.node.Generate(),
		FullName:     name,
		Email:        name + "@example.com",
		PasswordHash: "x",
		Role:         authorization.RoleUser,
		TenantID:     &tid,
		CreatedAt:    f.clock.Now(),
		UpdatedAt:    f.clock.Now(),
	}
	require.NoError(t, f.db.Create(&user).Error)
	return user
}

func (f *fixture) project(t *testing.T, owner userdomain.User) projectdomain.Project {
	t.Helper()
	project := projectdomain.Project{
		ID:          f.node.Generate(),
		Name:        "Launch",
		Status:      projectdomain.StatusActive,
		TenantID:    *owner.TenantID,
		CreatedByID: owner.ID,
		CreatedAt:   f.clock.Now(),
		UpdatedAt:   f.clock.Now(),
	}
	require.NoError(t, f.db.Create(&project).Error)
	return project
}

func asUser(u userdomain.User) context.Context {
	return tenantcontext.WithCaller(context.Background(), u.Caller())
}

func strPtr(s string) *string {
	return &s
}

const (
	acme   = snowflake.ID(1001)
	globex = snowflake.ID(2002)
)

func TestCreateDefaultsAndAssignee(t *testing.T) {
	f := newFixture(t)
	alice := f.member(t, acme, "alice")
	bob := f.member(t, acme, "bob")
	project := f.project(t, alice)

	task, err := f.svc.Create(asUser(alice), domain.CreateTaskRequest{
		Title:      "Write brief",
		ProjectID:  project.ID.String(),
		AssignedTo: strPtr(bob.ID.String()),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTodo, task.Status)
	assert.Equal(t, acme, task.TenantID)
	require.NotNil(t, task.AssignedTo)
	assert.Equal(t, bob.ID, *task.AssignedTo)
	require.NotNil(t, task.Assignee)
	assert.Equal(t, "bob", task.Assignee.FullName)
}

func TestCreateRejectsForeignProjectAndAssignee(t *testing.T) {
	f := newFixture(t)
	alice := f.member(t, acme, "alice")
	gina := f.member(t, globex, "gina")
	own := f.project(t, alice)
	foreign := f.project(t, gina)

	_, err := f.svc.Create(asUser(alice), domain.CreateTaskRequest{Title: "t", ProjectID: foreign.ID.String()})
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)

	_, err = f.svc.Create(asUser(alice), domain.CreateTaskRequest{
		Title:      "t",
		ProjectID:  own.ID.String(),
		AssignedTo: strPtr(gina.ID.String()),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAssignee)

	_, err = f.svc.Create(asUser(alice), domain.CreateTaskRequest{Title: "t", ProjectID: "abc"})
	assert.ErrorIs(t, err, domain.ErrInvalidProject)

	_, err = f.svc.Create(asUser(alice), domain.CreateTaskRequest{Title: "t", ProjectID: own.ID.String(), Status: "blocked"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	var count int64
	require.NoError(t, f.db.Model(&domain.Task{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestListNeverLeaksOtherTenants(t *testing.T) {
	f := newFixture(t)
	alice := f.member(t, acme, "alice")
	gina := f.member(t, globex, "gina")
	p1 := f.project(t, alice)
	p2 := f.project(t, alice)
	foreign := f.project(t, gina)

	for _, p := range []projectdomain.Project{p1, p1, p2} {
		_, err := f.svc.Create(asUser(alice), domain.CreateTaskRequest{Title: "t", ProjectID: p.ID.String()})
		require.NoError(t, err)
	}
	foreignTask, err := f.svc.Create(asUser(gina), domain.CreateTaskRequest{Title: "secret", ProjectID: foreign.ID.String()})
	require.NoError(t, err)

	all, err := f.svc.List(asUser(alice), domain.ListTaskRequest{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	for _, task := range all {
		assert.Equal(t, acme, task.TenantID)
	}

	filtered, err := f.svc.List(asUser(alice), domain.ListTaskRequest{ProjectID: p1.ID.String()})
	require.NoError(t, err)
	assert.Len(t, filtered, 2)

	probe, err := f.svc.List(asUser(alice), domain.ListTaskRequest{ProjectID: foreign.ID.String()})
	require.NoError(t, err)
	assert.Empty(t, probe)

	_, err = f.svc.GetByID(asUser(alice), foreignTask.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.UpdateStatus(asUser(alice), foreignTask.ID.String(), domain.UpdateTaskStatusRequest{Status: "done"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, f.svc.Delete(asUser(alice), foreignTask.ID.String()), domain.ErrNotFound)
}

func TestUpdateStatusAudits(t *testing.T) {
	f := newFixture(t)
	alice := f.member(t, acme, "alice")
	project := f.project(t, alice)

	task, err := f.svc.Create(asUser(alice), domain.CreateTaskRequest{Title: "t", ProjectID: project.ID.String()})
	require.NoError(t, err)

	updated, err := f.svc.UpdateStatus(asUser(alice), task.ID.String(), domain.UpdateTaskStatusRequest{Status: "in_progress"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, updated.Status)

	_, err = f.svc.UpdateStatus(asUser(alice), task.ID.String(), domain.UpdateTaskStatusRequest{Status: "paused"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	var entry auditdomain.AuditLog
	require.NoError(t, f.db.Where("action = ?", auditdomain.ActionUpdateTaskStatus).First(&entry).Error)
	assert.Equal(t, "in_progress", entry.Details["status"])
	require.NotNil(t, entry.EntityID)
	assert.Equal(t, task.ID.String(), *entry.EntityID)
}

func TestUpdateAssignAndUnassign(t *testing.T) {
	f := newFixture(t)
	alice := f.member(t, acme, "alice")
	bob := f.member(t, acme, "bob")
	gina := f.member(t, globex, "gina")
	project := f.project(t, alice)

	task, err := f.svc.Create(asUser(alice), domain.CreateTaskRequest{Title: "t", ProjectID: project.ID.String()})
	require.NoError(t, err)
	assert.Nil(t, task.AssignedTo)

	assigned, err := f.svc.Update(asUser(alice), task.ID.String(), domain.UpdateTaskRequest{
		Title:      strPtr("renamed"),
		AssignedTo: domain.AssignTo(bob.ID.String()),
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", assigned.Title)
	require.NotNil(t, assigned.Assignee)
	assert.Equal(t, bob.ID, assigned.Assignee.ID)

	_, err = f.svc.Update(asUser(alice), task.ID.String(), domain.UpdateTaskRequest{AssignedTo: domain.AssignTo(gina.ID.String())})
	assert.ErrorIs(t, err, domain.ErrInvalidAssignee)

	cleared, err := f.svc.Update(asUser(alice), task.ID.String(), domain.UpdateTaskRequest{AssignedTo: domain.AssignTo("")})
	require.NoError(t, err)
	assert.Nil(t, cleared.AssignedTo)
	assert.Nil(t, cleared.Assignee)

	_, err = f.svc.Update(asUser(alice), task.ID.String(), domain.UpdateTaskRequest{AssignedTo: domain.AssignTo(bob.ID.String())})
	require.NoError(t, err)

	var nulled domain.UpdateTaskRequest
	require.NoError(t, json.Unmarshal([]byte(`{"assignedTo":null}`), &nulled))
	cleared, err = f.svc.Update(asUser(alice), task.ID.String(), nulled)
	require.NoError(t, err)
	assert.Nil(t, cleared.AssignedTo)

	_, err = f.svc.Update(asUser(alice), task.ID.String(), domain.UpdateTaskRequest{AssignedTo: domain.AssignTo(bob.ID.String())})
	require.NoError(t, err)

	var renamed domain.UpdateTaskRequest
	require.NoError(t, json.Unmarshal([]byte(`{"title":"again"}`), &renamed))
	kept, err := f.svc.Update(asUser(alice), task.ID.String(), renamed)
	require.NoError(t, err)
	require.NotNil(t, kept.AssignedTo)
	assert.Equal(t, bob.ID, *kept.AssignedTo)
}

func TestDeleteTask(t *testing.T) {
	f := newFixture(t)
	alice := f.member(t, acme, "alice")
	project := f.project(t, alice)

	task, err := f.svc.Create(asUser(alice), domain.CreateTaskRequest{Title: "t", ProjectID: project.ID.String()})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(asUser(alice), task.ID.String()))

	_, err = f.svc.GetByID(asUser(alice), task.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
