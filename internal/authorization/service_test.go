package authorization

import (
	"context"
	"testing"

	auditdomain "github.com/smallbiznis/taskhub/internal/audit/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingAudit struct {
	entries []auditdomain.Entry
}

func (r *recordingAudit) Record(_ context.Context, entry auditdomain.Entry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *recordingAudit) List(context.Context, auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

func newTestService(t *testing.T) (Service, *recordingAudit) {
	t.Helper()
	enforcer, err := NewMemoryEnforcer()
	require.NoError(t, err)
	audit := &recordingAudit{}
	return NewService(Params{Log: zaptest.NewLogger(t), Enforcer: enforcer, AuditSvc: audit}), audit
}

func TestAuthorizeCapabilityTable(t *testing.T) {
	svc, _ := newTestService(t)
	admin := tenantCaller(RoleTenantAdmin, 2, 5)
	member := tenantCaller(RoleUser, 3, 5)

	tests := []struct {
		name    string
		caller  Caller
		object  string
		action  string
		allowed bool
	}{
		{"super admin lists tenants", superAdmin, ObjectTenant, ActionTenantList, true},
		{"super admin cannot create projects", superAdmin, ObjectProject, ActionProjectCreate, false},
		{"admin cannot list tenants", admin, ObjectTenant, ActionTenantList, false},
		{"admin creates users", admin, ObjectUser, ActionUserCreate, true},
		{"admin reads audit", admin, ObjectAuditLog, ActionAuditLogView, true},
		{"member deletes tasks", member, ObjectTask, ActionTaskDelete, true},
		{"member creates projects", member, ObjectProject, ActionProjectCreate, true},
		{"member cannot create users", member, ObjectUser, ActionUserCreate, false},
		{"member cannot list users", member, ObjectUser, ActionUserList, false},
		{"member cannot update tenant", member, ObjectTenant, ActionTenantUpdate, false},
		{"member cannot read audit", member, ObjectAuditLog, ActionAuditLogView, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Authorize(context.Background(), tt.caller, tt.object, tt.action)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrForbidden)
			}
		})
	}
}

func TestAuthorizeDeniedIsAudited(t *testing.T) {
	svc, audit := newTestService(t)
	member := tenantCaller(RoleUser, 3, 5)

	err := svc.Authorize(context.Background(), member, ObjectUser, ActionUserDelete)
	require.ErrorIs(t, err, ErrForbidden)

	require.Len(t, audit.entries, 1)
	entry := audit.entries[0]
	assert.Equal(t, auditdomain.ActionAuthorizationDenied, entry.Action)
	assert.Equal(t, ActionUserDelete, entry.Details["action"])
	assert.Equal(t, member.TenantID, entry.TenantID)
}

func TestAuthorizeRejectsAnonymousAndUnknownRoles(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Authorize(context.Background(), Caller{}, ObjectTask, ActionTaskView)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	err = svc.Authorize(context.Background(), Caller{UserID: 9, Role: "owner"}, ObjectTask, ActionTaskView)
	assert.ErrorIs(t, err, ErrForbidden)

	err = svc.Authorize(context.Background(), superAdmin, " ", ActionTaskView)
	assert.ErrorIs(t, err, ErrInvalidObject)
}
