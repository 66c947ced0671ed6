package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/taskhub/internal/audit/domain"
	projectdomain "github.com/smallbiznis/taskhub/internal/project/domain"
	taskdomain "github.com/smallbiznis/taskhub/internal/task/domain"
	tenantdomain "github.com/smallbiznis/taskhub/internal/tenant/domain"
	userdomain "github.com/smallbiznis/taskhub/internal/user/domain"
	"github.com/smallbiznis/taskhub/pkg/db"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "migrations"

// Migrate brings the schema up to date. Postgres runs the versioned SQL files; other dialects
// get the equivalent tables from the gorm models.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if conn.Dialector.Name() == db.TypePostgres {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}
	return AutoMigrate(conn)
}

// RunMigrations applies the embedded SQL migrations on a postgres handle.
func RunMigrations(sqlDB *sql.DB) error {
	if sqlDB == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// migrator.Close would close the shared *sql.DB

	return nil
}

// Models lists every persisted entity.
func Models() []any {
	return []any{
		&tenantdomain.Tenant{},
		&userdomain.User{},
		&projectdomain.Project{},
		&taskdomain.Task{},
		&auditdomain.AuditLog{},
	}
}

func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
