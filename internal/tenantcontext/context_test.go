package tenantcontext

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskhub/internal/authorization"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallerRoundTrip(t *testing.T) {
	tenantID := snowflake.ID(7)
	ctx := WithCaller(context.Background(), authorization.Caller{
		UserID:   42,
		Role:     authorization.RoleUser,
		TenantID: &tenantID,
	})

	caller, err := MustCaller(ctx)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(42), caller.UserID)
	assert.Equal(t, tenantID, caller.Tenant())
}

func TestMissingCaller(t *testing.T) {
	_, ok := CallerFromContext(context.Background())
	assert.False(t, ok)

	_, err := MustCaller(WithCaller(context.Background(), authorization.Caller{}))
	assert.ErrorIs(t, err, authorization.ErrUnauthenticated)
}
