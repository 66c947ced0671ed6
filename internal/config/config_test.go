package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestValidate(t *testing.T) {
	t.Run("production requires secret", func(t *testing.T) {
		cfg := Config{Environment: EnvProduction}
		assert.ErrorIs(t, cfg.Validate(), ErrMissingJWTSecret)
	})

	t.Run("development gets fallback secret", func(t *testing.T) {
		cfg := Config{Environment: EnvDevelopment}
		require.NoError(t, cfg.Validate())
		assert.NotEmpty(t, cfg.Auth.JWTSecret)
		assert.Equal(t, 30*24*time.Hour, cfg.Auth.TokenTTL)
	})
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("AUTH_TOKEN_TTL", "2h")
	t.Setenv("LOGIN_RATE_LIMIT_BURST", "3")
	t.Setenv("SUPERADMIN_EMAIL", " Root@Example.com ")

	cfg := Load()
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 3, cfg.LoginRateLimit.Burst)
	assert.Equal(t, "root@example.com", cfg.SuperAdmin.Email)
}

func TestPlanCatalogDefaultsWhenFileMissing(t *testing.T) {
	holder, err := newPlanCatalogHolder(zaptest.NewLogger(t), t.TempDir())
	require.NoError(t, err)

	catalog := holder.Get()
	free := catalog.DefaultPlan()
	assert.Equal(t, "free", free.Name)
	assert.Equal(t, 5, free.MaxUsers)
	assert.Equal(t, 3, free.MaxProjects)

	_, ok := catalog.Lookup("enterprise")
	assert.True(t, ok)
}

func TestPlanCatalogFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `subscription:
  default: starter
  plans:
    - name: starter
      maxUsers: 2
      maxProjects: 1
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plans.yml"), []byte(content), 0o600))

	holder, err := newPlanCatalogHolder(zaptest.NewLogger(t), dir)
	require.NoError(t, err)

	plan := holder.Get().DefaultPlan()
	assert.Equal(t, "starter", plan.Name)
	assert.Equal(t, 2, plan.MaxUsers)
	assert.Equal(t, 1, plan.MaxProjects)
}

func TestPlanCatalogRejectsUnknownDefault(t *testing.T) {
	dir := t.TempDir()
	content := `subscription:
  default: gold
  plans:
    - name: free
      maxUsers: 5
      maxProjects: 3
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plans.yml"), []byte(content), 0o600))

	_, err := newPlanCatalogHolder(zaptest.NewLogger(t), dir)
	assert.Error(t, err)
}
