package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/taskhub/internal/audit/domain"
	auditrepository "github.com/smallbiznis/taskhub/internal/audit/repository"
	auditservice "github.com/smallbiznis/taskhub/internal/audit/service"
	"github.com/smallbiznis/taskhub/internal/auth/domain"
	"github.com/smallbiznis/taskhub/internal/auth/password"
	"github.com/smallbiznis/taskhub/internal/auth/token"
	"github.com/smallbiznis/taskhub/internal/authorization"
	"github.com/smallbiznis/taskhub/internal/clock"
	"github.com/smallbiznis/taskhub/internal/config"
	"github.com/smallbiznis/taskhub/internal/quota"
	tenantdomain "github.com/smallbiznis/taskhub/internal/tenant/domain"
	tenantrepository "github.com/smallbiznis/taskhub/internal/tenant/repository"
	tenantservice "github.com/smallbiznis/taskhub/internal/tenant/service"
	"github.com/smallbiznis/taskhub/internal/tenantcontext"
	userdomain "github.com/smallbiznis/taskhub/internal/user/domain"
	userrepository "github.com/smallbiznis/taskhub/internal/user/repository"
	"github.com/smallbiznis/taskhub/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

const secret = "correct-horse"

type fixture struct {
	svc    domain.Service
	db     *gorm.DB
	node   *snowflake.Node
	clock  *clock.FakeClock
	tokens *token.Issuer
	hash   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&tenantdomain.Tenant{},
		&userdomain.User{},
		&auditdomain.AuditLog{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	tokens, err := token.NewIssuer(config.Config{Auth: config.AuthConfig{
		JWTSecret: "test-secret",
		TokenTTL:  30 * 24 * time.Hour,
		Issuer:    "taskhub",
	}}, clk)
	require.NoError(t, err)

	userRepo := userrepository.Provide()
	tenantRepo := tenantrepository.Provide()
	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    conn,
		Log:   log,
		GenID: node,
		Repo:  auditrepository.Provide(),
		Clock: clk,
	})

	svc := New(Params{
		DB:         conn,
		Log:        log,
		GenID:      node,
		UserRepo:   userRepo,
		TenantRepo: tenantRepo,
		TenantSvc: tenantservice.New(tenantservice.Params{
			DB:       conn,
			Log:      log,
			GenID:    node,
			Repo:     tenantRepo,
			UserRepo: userRepo,
			Plans:    config.NewStaticPlanCatalogHolder(config.DefaultPlanCatalog()),
			AuditSvc: auditSvc,
			Clock:    clk,
		}),
		Quota: quota.New(quota.Params{
			Log:        log,
			TenantRepo: tenantRepo,
			UserRepo:   userRepo,
		}),
		Tokens:   tokens,
		AuditSvc: auditSvc,
		Clock:    clk,
	})

	hash, err := password.Hash(secret)
	require.NoError(t, err)

	return &fixture{svc: svc, db: conn, node: node, clock: clk, tokens: tokens, hash: hash}
}

func (f *fixture) tenant(t *testing.T, subdomain string, status tenantdomain.Status) tenantdomain.Tenant {
	t.Helper()
	tenant := tenantdomain.Tenant{
		ID:               f.node.Generate(),
		Name:             subdomain,
		Subdomain:        subdomain,
		Status:           status,
		SubscriptionPlan: tenantdomain.PlanFree,
		MaxUsers:         5,
		MaxProjects:      3,
		CreatedAt:        f.clock.Now(),
		UpdatedAt:        f.clock.Now(),
	}
	require.NoError(t, f.db.Create(&tenant).Error)
	return tenant
}

func (f *fixture) user(t *testing.T, email string, role authorization.Role, tenantID *snowflake.ID) userdomain.User {
	t.Helper()
	user := userdomain.User{
		ID:           f.node.Generate(),
		FullName:     email,
		Email:        email,
		PasswordHash: f.hash,
		Role:         role,
		TenantID:     tenantID,
		CreatedAt:    f.clock.Now(),
		UpdatedAt:    f.clock.Now(),
	}
	require.NoError(t, f.db.Create(&user).Error)
	return user
}

func idPtr(id snowflake.ID) *snowflake.ID {
	return &id
}

func (f *fixture) actions(t *testing.T) []string {
	t.Helper()
	var actions []string
	require.NoError(t, f.db.Model(&auditdomain.AuditLog{}).Order("id asc").Pluck("action", &actions).Error)
	return actions
}

func TestLoginSucceedsWithSubdomain(t *testing.T) {
	f := newFixture(t)
	acme := f.tenant(t, "acme", tenantdomain.StatusActive)
	admin := f.user(t, "a@acme.com", authorization.RoleTenantAdmin, idPtr(acme.ID))

	resp, err := f.svc.Login(context.Background(), domain.LoginRequest{
		Email:           "A@acme.com",
		Password:        secret,
		TenantSubdomain: "acme",
	})
	require.NoError(t, err)
	assert.Equal(t, admin.ID, resp.ID)
	assert.Equal(t, authorization.RoleTenantAdmin, resp.Role)
	require.NotNil(t, resp.Tenant)
	assert.Equal(t, acme.ID, resp.Tenant.ID)
	assert.Equal(t, f.clock.Now().Add(30*24*time.Hour), resp.ExpiresAt)

	userID, err := f.tokens.Parse(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, userID)

	assert.Equal(t, []string{"LOGIN"}, f.actions(t))
}

func TestLoginFailureReasons(t *testing.T) {
	f := newFixture(t)
	acme := f.tenant(t, "acme", tenantdomain.StatusActive)
	f.tenant(t, "globex", tenantdomain.StatusActive)
	f.user(t, "a@acme.com", authorization.RoleUser, idPtr(acme.ID))

	cases := []struct {
		name string
		req  domain.LoginRequest
		want error
	}{
		{"missing password", domain.LoginRequest{Email: "a@acme.com"}, domain.ErrMissingCredentials},
		{"unknown email", domain.LoginRequest{Email: "x@acme.com", Password: secret, TenantSubdomain: "acme"}, domain.ErrInvalidCredentials},
		{"wrong password", domain.LoginRequest{Email: "a@acme.com", Password: "nope-nope", TenantSubdomain: "acme"}, domain.ErrInvalidCredentials},
		{"no subdomain", domain.LoginRequest{Email: "a@acme.com", Password: secret}, domain.ErrSubdomainRequired},
		{"unknown subdomain", domain.LoginRequest{Email: "a@acme.com", Password: secret, TenantSubdomain: "nowhere"}, domain.ErrWorkspaceNotFound},
		{"other workspace", domain.LoginRequest{Email: "a@acme.com", Password: secret, TenantSubdomain: "globex"}, domain.ErrWrongWorkspace},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Login(context.Background(), tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	// only the bad password against an existing account is audited
	assert.Equal(t, []string{"LOGIN_FAILED"}, f.actions(t))
}

func TestLoginPrefersWorkspaceAccountOverSuperAdmin(t *testing.T) {
	f := newFixture(t)
	acme := f.tenant(t, "acme", tenantdomain.StatusActive)
	root := f.user(t, "ops@example.com", authorization.RoleSuperAdmin, nil)

	memberHash, err := password.Hash("member-password")
	require.NoError(t, err)
	member := userdomain.User{
		ID:           f.node.Generate(),
		FullName:     "Ops Member",
		Email:        "ops@example.com",
		PasswordHash: memberHash,
		Role:         authorization.RoleUser,
		TenantID:     idPtr(acme.ID),
		CreatedAt:    f.clock.Now(),
		UpdatedAt:    f.clock.Now(),
	}
	require.NoError(t, f.db.Create(&member).Error)

	resp, err := f.svc.Login(context.Background(), domain.LoginRequest{
		Email:           "ops@example.com",
		Password:        "member-password",
		TenantSubdomain: "acme",
	})
	require.NoError(t, err)
	assert.Equal(t, member.ID, resp.ID)
	assert.Equal(t, authorization.RoleUser, resp.Role)
	require.NotNil(t, resp.Tenant)
	assert.Equal(t, acme.ID, resp.Tenant.ID)

	// without a matching workspace the email still means the super_admin
	resp, err = f.svc.Login(context.Background(), domain.LoginRequest{
		Email:    "ops@example.com",
		Password: secret,
	})
	require.NoError(t, err)
	assert.Equal(t, root.ID, resp.ID)

	assert.Equal(t, []string{"LOGIN", "LOGIN"}, f.actions(t))
}

func TestLoginSuperAdminIgnoresSubdomain(t *testing.T) {
	f := newFixture(t)
	suspended := f.tenant(t, "frozen", tenantdomain.StatusSuspended)
	root := f.user(t, "root@example.com", authorization.RoleSuperAdmin, nil)

	for _, sub := range []string{"", "frozen", "does-not-exist"} {
		resp, err := f.svc.Login(context.Background(), domain.LoginRequest{
			Email:           "root@example.com",
			Password:        secret,
			TenantSubdomain: sub,
		})
		require.NoError(t, err, sub)
		assert.Equal(t, root.ID, resp.ID)
		assert.Nil(t, resp.Tenant)
	}

	// a user-role account with the same password still needs its workspace
	f.user(t, "member@example.com", authorization.RoleUser, idPtr(suspended.ID))
	_, err := f.svc.Login(context.Background(), domain.LoginRequest{Email: "member@example.com", Password: secret})
	assert.ErrorIs(t, err, domain.ErrSubdomainRequired)
}

func TestLoginSuspendedTenant(t *testing.T) {
	f := newFixture(t)
	frozen := f.tenant(t, "frozen", tenantdomain.StatusSuspended)
	f.user(t, "a@frozen.com", authorization.RoleTenantAdmin, idPtr(frozen.ID))

	_, err := f.svc.Login(context.Background(), domain.LoginRequest{
		Email:           "a@frozen.com",
		Password:        secret,
		TenantSubdomain: "frozen",
	})
	assert.ErrorIs(t, err, tenantdomain.ErrSuspended)
}

func TestLoginPicksAccountOfRequestedWorkspace(t *testing.T) {
	f := newFixture(t)
	acme := f.tenant(t, "acme", tenantdomain.StatusActive)
	globex := f.tenant(t, "globex", tenantdomain.StatusActive)
	f.user(t, "sam@example.com", authorization.RoleUser, idPtr(acme.ID))
	f.clock.Advance(time.Minute)
	inGlobex := f.user(t, "sam@example.com", authorization.RoleUser, idPtr(globex.ID))

	resp, err := f.svc.Login(context.Background(), domain.LoginRequest{
		Email:           "sam@example.com",
		Password:        secret,
		TenantSubdomain: "globex",
	})
	require.NoError(t, err)
	assert.Equal(t, inGlobex.ID, resp.ID)
}

func TestAuthenticateReloadsState(t *testing.T) {
	f := newFixture(t)
	acme := f.tenant(t, "acme", tenantdomain.StatusActive)
	admin := f.user(t, "a@acme.com", authorization.RoleTenantAdmin, idPtr(acme.ID))

	raw, _, err := f.tokens.Issue(admin.ID)
	require.NoError(t, err)

	principal, err := f.svc.Authenticate(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, principal.User.ID)
	require.NotNil(t, principal.Tenant)
	assert.True(t, principal.Caller().BelongsTo(acme.ID))

	require.NoError(t, f.db.Model(&tenantdomain.Tenant{}).Where("id = ?", acme.ID).Update("status", "suspended").Error)
	_, err = f.svc.Authenticate(context.Background(), raw)
	assert.ErrorIs(t, err, tenantdomain.ErrSuspended)

	require.NoError(t, f.db.Delete(&userdomain.User{}, "id = ?", admin.ID).Error)
	_, err = f.svc.Authenticate(context.Background(), raw)
	assert.ErrorIs(t, err, authorization.ErrUnauthenticated)

	f.clock.Advance(31 * 24 * time.Hour)
	_, err = f.svc.Authenticate(context.Background(), raw)
	assert.ErrorIs(t, err, token.ErrExpiredToken)

	_, err = f.svc.Authenticate(context.Background(), "garbage")
	assert.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestRegisterAddsMember(t *testing.T) {
	f := newFixture(t)
	acme := f.tenant(t, "acme", tenantdomain.StatusActive)

	resp, err := f.svc.Register(context.Background(), domain.RegisterRequest{
		FullName:        "Sam",
		Email:           "sam@example.com",
		Password:        "password1",
		TenantSubdomain: "acme",
	})
	require.NoError(t, err)
	assert.Equal(t, authorization.RoleUser, resp.Role)
	assert.NotEmpty(t, resp.Token)

	var stored userdomain.User
	require.NoError(t, f.db.First(&stored, "id = ?", resp.ID).Error)
	require.NotNil(t, stored.TenantID)
	assert.Equal(t, acme.ID, *stored.TenantID)

	_, err = f.svc.Register(context.Background(), domain.RegisterRequest{
		FullName:        "Sam",
		Email:           "sam@example.com",
		Password:        "password1",
		TenantSubdomain: "acme",
	})
	assert.ErrorIs(t, err, userdomain.ErrEmailTaken)

	_, err = f.svc.Register(context.Background(), domain.RegisterRequest{
		FullName:        "Sam",
		Email:           "sam@example.com",
		Password:        "password1",
		TenantSubdomain: "missing",
	})
	assert.ErrorIs(t, err, domain.ErrWorkspaceNotFound)

	_, err = f.svc.Register(context.Background(), domain.RegisterRequest{
		FullName:        "Sam",
		Email:           "sam@example.com",
		Password:        "short",
		TenantSubdomain: "acme",
	})
	assert.ErrorIs(t, err, userdomain.ErrInvalidPassword)

	assert.Equal(t, []string{"REGISTER_USER"}, f.actions(t))
}

func TestRegisterRespectsQuota(t *testing.T) {
	f := newFixture(t)
	acme := f.tenant(t, "acme", tenantdomain.StatusActive)
	for i := 0; i < 5; i++ {
		f.user(t, string(rune('a'+i))+"@acme.com", authorization.RoleUser, idPtr(acme.ID))
	}

	_, err := f.svc.Register(context.Background(), domain.RegisterRequest{
		FullName:        "Late",
		Email:           "late@acme.com",
		Password:        "password1",
		TenantSubdomain: "acme",
	})
	assert.ErrorIs(t, err, quota.ErrLimitReached)
}

func TestLogoutAndMe(t *testing.T) {
	f := newFixture(t)
	acme := f.tenant(t, "acme", tenantdomain.StatusActive)
	admin := f.user(t, "a@acme.com", authorization.RoleTenantAdmin, idPtr(acme.ID))

	assert.ErrorIs(t, f.svc.Logout(context.Background()), authorization.ErrUnauthenticated)

	ctx := tenantcontext.WithCaller(context.Background(), admin.Caller())
	me, err := f.svc.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@acme.com", me.User.Email)
	require.NotNil(t, me.Tenant)
	assert.Equal(t, "acme", me.Tenant.Subdomain)

	require.NoError(t, f.svc.Logout(ctx))
	assert.Equal(t, []string{"LOGOUT"}, f.actions(t))
}
