package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskhub/internal/audit"
	"github.com/smallbiznis/taskhub/internal/auth"
	"github.com/smallbiznis/taskhub/internal/authorization"
	"github.com/smallbiznis/taskhub/internal/clock"
	"github.com/smallbiznis/taskhub/internal/config"
	"github.com/smallbiznis/taskhub/internal/migration"
	"github.com/smallbiznis/taskhub/internal/observability"
	"github.com/smallbiznis/taskhub/internal/project"
	"github.com/smallbiznis/taskhub/internal/quota"
	"github.com/smallbiznis/taskhub/internal/ratelimit"
	"github.com/smallbiznis/taskhub/internal/server"
	"github.com/smallbiznis/taskhub/internal/task"
	"github.com/smallbiznis/taskhub/internal/tenant"
	"github.com/smallbiznis/taskhub/internal/user"
	"github.com/smallbiznis/taskhub/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// schema and super_admin must exist before the first request
		migration.Module,

		authorization.Module,
		audit.Module,
		quota.Module,
		tenant.Module,
		user.Module,
		project.Module,
		task.Module,
		auth.Module,
		ratelimit.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
