package rdb

import (
	"context"

	"stockdash/internal/domain/constants"
	"stockdash/internal/errors"
	"stockdash/internal/infra/persistence/migrations"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"
)

// Migrate applies the embedded migrations for driver.
func Migrate(ctx context.Context, db *gorm.DB, driver string) error {
	dialect, dir, err := migrationSource(driver)
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get sql.DB for migrations")
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(dialect); err != nil {
		return errors.Wrapf(err, "failed to set goose dialect %s", dialect)
	}

	if err := goose.UpContext(ctx, sqlDB, dir); err != nil {
		return errors.Wrapf(err, "failed to apply %s migrations", driver)
	}

	return nil
}

func migrationSource(driver string) (dialect, dir string, err error) {
	switch driver {
	case constants.DatabaseDriverPostgres:
		return "postgres", "postgres", nil
	case constants.DatabaseDriverMySQL:
		return "mysql", "mysql", nil
	case constants.DatabaseDriverSQLite:
		return "sqlite3", "sqlite", nil
	default:
		return "", "", errors.Errorf("no migrations for database driver: %s", driver)
	}
}
