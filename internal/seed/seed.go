package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskhub/internal/auth/password"
	"github.com/smallbiznis/taskhub/internal/authorization"
	"github.com/smallbiznis/taskhub/internal/config"
	userdomain "github.com/smallbiznis/taskhub/internal/user/domain"
	userrepository "github.com/smallbiznis/taskhub/internal/user/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EnsureSuperAdmin creates the platform operator account once. An empty email or password
// disables seeding; an existing account is left untouched.
func EnsureSuperAdmin(ctx context.Context, db *gorm.DB, node *snowflake.Node, log *zap.Logger, cfg config.SuperAdminConfig) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Email == "" || cfg.Password == "" {
		log.Info("super admin seed skipped", zap.String("reason", "credentials not configured"))
		return nil
	}

	email := userdomain.NormalizeEmail(cfg.Email)
	if email == "" {
		return userdomain.ErrInvalidEmail
	}
	if len(cfg.Password) < userdomain.MinPasswordLength {
		return userdomain.ErrInvalidPassword
	}
	fullName := cfg.FullName
	if fullName == "" {
		fullName = "Platform Admin"
	}

	if node == nil {
		var err error
		node, err = snowflake.NewNode(1)
		if err != nil {
			return err
		}
	}

	repo := userrepository.Provide()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := repo.FindSuperAdmin(ctx, tx, email)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}

		hashed, err := password.Hash(cfg.Password)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		admin := &userdomain.User{
			ID:           node.Generate(),
			FullName:     fullName,
			Email:        email,
			PasswordHash: hashed,
			Role:         authorization.RoleSuperAdmin,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := repo.Insert(ctx, tx, admin); err != nil {
			return err
		}
		log.Info("super admin seeded", zap.String("user_id", admin.ID.String()))
		return nil
	})
}
