package rls

import (
	"testing"

	"github.com/smallbiznis/taskhub/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTenantIsNoopOutsidePostgres(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)

	assert.NoError(t, WithTenant(conn, 42))
	assert.NoError(t, WithTenant(nil, 42))
}
