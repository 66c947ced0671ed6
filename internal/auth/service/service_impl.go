package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/taskhub/internal/audit/domain"
	"github.com/smallbiznis/taskhub/internal/auth/domain"
	"github.com/smallbiznis/taskhub/internal/auth/password"
	"github.com/smallbiznis/taskhub/internal/auth/token"
	"github.com/smallbiznis/taskhub/internal/authorization"
	"github.com/smallbiznis/taskhub/internal/clock"
	"github.com/smallbiznis/taskhub/internal/observability/metrics"
	"github.com/smallbiznis/taskhub/internal/quota"
	tenantdomain "github.com/smallbiznis/taskhub/internal/tenant/domain"
	"github.com/smallbiznis/taskhub/internal/tenantcontext"
	userdomain "github.com/smallbiznis/taskhub/internal/user/domain"
	"github.com/smallbiznis/taskhub/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	outcomeSuccess            = "success"
	outcomeInvalidCredentials = "invalid_credentials"
	outcomeSubdomainRequired  = "subdomain_required"
	outcomeWorkspaceNotFound  = "workspace_not_found"
	outcomeWrongWorkspace     = "wrong_workspace"
	outcomeSuspended          = "tenant_suspended"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	UserRepo   userdomain.Repository
	TenantRepo tenantdomain.Repository
	TenantSvc  tenantdomain.Service
	Quota      *quota.Enforcer
	Tokens     *token.Issuer
	AuditSvc   auditdomain.Service
	Clock      clock.Clock
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	userRepo   userdomain.Repository
	tenantRepo tenantdomain.Repository
	tenantSvc  tenantdomain.Service
	quota      *quota.Enforcer
	tokens     *token.Issuer
	auditSvc   auditdomain.Service
	clock      clock.Clock
	metrics    *metrics.Metrics

	dummyOnce sync.Once
	dummyHash string
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("auth.service"),
		genID:      p.GenID,
		userRepo:   p.UserRepo,
		tenantRepo: p.TenantRepo,
		tenantSvc:  p.TenantSvc,
		quota:      p.Quota,
		tokens:     p.Tokens,
		auditSvc:   p.AuditSvc,
		clock:      p.Clock,
		metrics:    p.Metrics,
	}
}

// Login looks the email up across every tenant before checking the workspace, so a super_admin
// can sign in without one.
func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return domain.LoginResponse{}, domain.ErrMissingCredentials
	}
	subdomain := strings.TrimSpace(req.TenantSubdomain)

	workspace, err := s.resolveWorkspace(ctx, subdomain)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	candidates, err := s.userRepo.ListByEmail(ctx, s.db, email)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	user := pickCandidate(candidates, workspace)

	if user == nil {
		// keep the response time of unknown emails close to a real comparison
		password.Verify(req.Password, s.dummy())
		return domain.LoginResponse{}, s.deny(ctx, outcomeInvalidCredentials, domain.ErrInvalidCredentials)
	}
	if !password.Verify(req.Password, user.PasswordHash) {
		userID := user.ID
		_ = s.auditSvc.Record(ctx, auditdomain.Entry{
			Action:     auditdomain.ActionLoginFailed,
			EntityType: auditdomain.EntityUser,
			EntityID:   user.ID.String(),
			TenantID:   user.TenantID,
			UserID:     &userID,
			Details: map[string]any{
				"reason": "Invalid password",
			},
		})
		return domain.LoginResponse{}, s.deny(ctx, outcomeInvalidCredentials, domain.ErrInvalidCredentials)
	}

	var tenant *tenantdomain.Tenant
	switch user.Role {
	case authorization.RoleSuperAdmin:
		// any subdomain, or none, is accepted
	case authorization.RoleTenantAdmin, authorization.RoleUser:
		if subdomain == "" {
			return domain.LoginResponse{}, s.deny(ctx, outcomeSubdomainRequired, domain.ErrSubdomainRequired)
		}
		tenant = workspace
		if tenant == nil {
			return domain.LoginResponse{}, s.deny(ctx, outcomeWorkspaceNotFound, domain.ErrWorkspaceNotFound)
		}
		if !user.Caller().BelongsTo(tenant.ID) {
			return domain.LoginResponse{}, s.deny(ctx, outcomeWrongWorkspace, domain.ErrWrongWorkspace)
		}
		if tenant.Suspended() {
			return domain.LoginResponse{}, s.deny(ctx, outcomeSuspended, tenantdomain.ErrSuspended)
		}
	default:
		return domain.LoginResponse{}, s.deny(ctx, outcomeInvalidCredentials, domain.ErrInvalidCredentials)
	}

	raw, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	userID := user.ID
	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		Action:     auditdomain.ActionLogin,
		EntityType: auditdomain.EntityUser,
		EntityID:   user.ID.String(),
		TenantID:   user.TenantID,
		UserID:     &userID,
	})
	s.metrics.RecordLogin(ctx, outcomeSuccess)

	return domain.LoginResponse{
		ID:        user.ID,
		FullName:  user.FullName,
		Email:     user.Email,
		Role:      user.Role,
		Tenant:    tenant,
		Token:     raw,
		ExpiresAt: expiresAt,
	}, nil
}

// resolveWorkspace returns nil when no subdomain was given or no tenant owns it.
func (s *Service) resolveWorkspace(ctx context.Context, subdomain string) (*tenantdomain.Tenant, error) {
	if subdomain == "" {
		return nil, nil
	}
	tenant, err := s.tenantSvc.ResolveBySubdomain(ctx, subdomain)
	if errors.Is(err, tenantdomain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

// pickCandidate chooses which account an email refers to: the account of the requested
// workspace, then a super_admin, then the oldest account.
func pickCandidate(users []*userdomain.User, workspace *tenantdomain.Tenant) *userdomain.User {
	if len(users) == 0 {
		return nil
	}
	if workspace != nil {
		for _, u := range users {
			if u.Caller().BelongsTo(workspace.ID) {
				return u
			}
		}
	}
	for _, u := range users {
		if u.Role == authorization.RoleSuperAdmin {
			return u
		}
	}
	return users[0]
}

func (s *Service) deny(ctx context.Context, outcome string, err error) error {
	s.metrics.RecordLogin(ctx, outcome)
	s.log.Debug("login denied", zap.String("outcome", outcome))
	return err
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := password.Hash("taskhub-unknown-account")
		if err != nil {
			s.log.Warn("dummy hash", zap.Error(err))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// Register adds a user-role member to an existing, active tenant.
func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (domain.RegisterResponse, error) {
	fullName, email, err := userdomain.ValidateNewAccount(req.FullName, req.Email, req.Password)
	if err != nil {
		return domain.RegisterResponse{}, err
	}
	subdomain := strings.TrimSpace(req.TenantSubdomain)
	if subdomain == "" {
		return domain.RegisterResponse{}, tenantdomain.ErrInvalidSubdomain
	}

	tenant, err := s.tenantSvc.ResolveBySubdomain(ctx, subdomain)
	if errors.Is(err, tenantdomain.ErrNotFound) {
		return domain.RegisterResponse{}, domain.ErrWorkspaceNotFound
	}
	if err != nil {
		return domain.RegisterResponse{}, err
	}
	if tenant.Suspended() {
		return domain.RegisterResponse{}, tenantdomain.ErrSuspended
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return domain.RegisterResponse{}, err
	}

	now := s.clock.Now()
	tenantID := tenant.ID
	user := userdomain.User{
		ID:           s.genID.Generate(),
		FullName:     fullName,
		Email:        email,
		PasswordHash: hash,
		Role:         authorization.RoleUser,
		TenantID:     &tenantID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.quota.CheckUserQuota(ctx, tx, tenantID); err != nil {
			return err
		}
		existing, err := s.userRepo.FindByEmail(ctx, tx, tenantID, email)
		if err != nil {
			return err
		}
		if existing != nil {
			return userdomain.ErrEmailTaken
		}
		if err := s.userRepo.Insert(ctx, tx, &user); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return userdomain.ErrEmailTaken
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.RegisterResponse{}, err
	}

	raw, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return domain.RegisterResponse{}, err
	}

	userID := user.ID
	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		Action:     auditdomain.ActionRegisterUser,
		EntityType: auditdomain.EntityUser,
		EntityID:   user.ID.String(),
		TenantID:   &tenantID,
		UserID:     &userID,
		Details: map[string]any{
			"subdomain": subdomain,
		},
	})

	return domain.RegisterResponse{
		ID:        user.ID,
		FullName:  user.FullName,
		Email:     user.Email,
		Role:      user.Role,
		Token:     raw,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *Service) Authenticate(ctx context.Context, rawToken string) (domain.Principal, error) {
	userID, err := s.tokens.Parse(rawToken)
	if err != nil {
		return domain.Principal{}, err
	}
	return s.load(ctx, userID)
}

// load rebuilds the principal from storage. Accounts that vanished or whose tenant is suspended
// lose access immediately.
func (s *Service) load(ctx context.Context, userID snowflake.ID) (domain.Principal, error) {
	user, err := s.userRepo.FindByIDGlobal(ctx, s.db, userID)
	if err != nil {
		return domain.Principal{}, err
	}
	if user == nil || !user.Role.Valid() {
		return domain.Principal{}, authorization.ErrUnauthenticated
	}
	if !user.Role.TenantScoped() {
		return domain.Principal{User: *user}, nil
	}

	if user.TenantID == nil {
		return domain.Principal{}, authorization.ErrUnauthenticated
	}
	tenant, err := s.tenantRepo.FindByID(ctx, s.db, *user.TenantID)
	if err != nil {
		return domain.Principal{}, err
	}
	if tenant == nil {
		return domain.Principal{}, authorization.ErrUnauthenticated
	}
	if tenant.Suspended() {
		return domain.Principal{}, tenantdomain.ErrSuspended
	}
	return domain.Principal{User: *user, Tenant: tenant}, nil
}

// Logout only records the event; the credential itself is stateless and expires on its own.
func (s *Service) Logout(ctx context.Context) error {
	caller, err := tenantcontext.MustCaller(ctx)
	if err != nil {
		return err
	}
	userID := caller.UserID
	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		Action:     auditdomain.ActionLogout,
		EntityType: auditdomain.EntityUser,
		EntityID:   userID.String(),
		TenantID:   caller.TenantID,
		UserID:     &userID,
	})
	return nil
}

func (s *Service) Me(ctx context.Context) (domain.Principal, error) {
	caller, err := tenantcontext.MustCaller(ctx)
	if err != nil {
		return domain.Principal{}, err
	}
	return s.load(ctx, caller.UserID)
}
