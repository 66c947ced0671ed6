package migration

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskhub/internal/config"
	"github.com/smallbiznis/taskhub/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, genID *snowflake.Node, log *zap.Logger) error {
		if err := Migrate(conn); err != nil {
			return err
		}
		return seed.EnsureSuperAdmin(context.Background(), conn, genID, log, cfg.SuperAdmin)
	}),
)
