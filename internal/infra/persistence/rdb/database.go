// Package rdb is the relational credential store: gorm repositories over PostgreSQL,
// MySQL or SQLite, selected by configuration.
package rdb

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"stockdash/config"
	"stockdash/internal/domain/constants"
	"stockdash/internal/domain/lifecycle"
	"stockdash/internal/errors"

	"github.com/glebarez/sqlite"
	mysqldriver "github.com/go-sql-driver/mysql"
	pgLib "github.com/slighter12/go-lib/database/postgres"
	"go.uber.org/fx"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	dbPoolMonitorInterval       = 5 * time.Second
	dbPoolWarnDurationThreshold = 50 * time.Millisecond
)

// Params defines the required parameters
type Params struct {
	fx.In
	fx.Lifecycle

	Config *config.Config
	Logger *slog.Logger
}

// New opens the configured relational database and registers ping, migration and
// pool monitoring on the fx lifecycle.
func New(params Params) (*gorm.DB, error) {
	driver := params.Config.Database.Driver

	db, err := Open(params.Config, params.Logger)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get %s sql.DB", driver)
	}

	monitorCtx, cancelMonitor := context.WithCancel(context.Background())

	params.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			ctx, cancel := context.WithTimeout(startCtx, lifecycle.DefaultTimeout)
			defer cancel()

			if err := sqlDB.PingContext(ctx); err != nil {
				return errors.Wrapf(err, "failed to ping %s", driver)
			}

			if params.Config.Database.Migrate {
				if err := Migrate(ctx, db, driver); err != nil {
					return err
				}
				params.Logger.Info("Credential store schema is up to date", slog.String("driver", driver))
			}

			go monitorDBPool(monitorCtx, params.Logger, driver, sqlDB, dbPoolMonitorInterval)

			return nil
		},
		OnStop: func(_ context.Context) error {
			cancelMonitor()

			return sqlDB.Close()
		},
	})

	return db, nil
}

// Open connects to the database named by cfg.Database.Driver without touching the schema.
func Open(cfg *config.Config, baseLogger *slog.Logger) (*gorm.DB, error) {
	gormLogger := newGormSlogLogger(baseLogger, cfg)

	switch cfg.Database.Driver {
	case constants.DatabaseDriverPostgres:
		if cfg.Postgres == nil {
			return nil, errors.New("postgres configuration is required for the postgres driver")
		}
		db, err := pgLib.New(cfg.Postgres)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create PostgreSQL client")
		}

		return db.Session(&gorm.Session{
			// Disable GORM's per-statement implicit transaction.
			// We keep explicit transactions via txManager.Execute for multi-step atomic operations.
			SkipDefaultTransaction: true,
			Logger:                 gormLogger,
		}), nil

	case constants.DatabaseDriverMySQL:
		dsn, err := mysqlDSN(cfg.Database.MySQL.DSN)
		if err != nil {
			return nil, err
		}
		db, err := gorm.Open(mysql.Open(dsn), newGormConfig(gormLogger))
		if err != nil {
			return nil, errors.Wrap(err, "failed to create MySQL client")
		}

		return db, nil

	case constants.DatabaseDriverSQLite:
		return OpenSQLite(cfg.Database.SQLite.Path, gormLogger)

	default:
		return nil, errors.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
}

// OpenSQLite opens a SQLite database file (or ":memory:") on a single connection,
// which serialises writers and keeps an in-memory database alive.
func OpenSQLite(path string, gormLogger logger.Interface) (*gorm.DB, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required for the sqlite driver")
	}

	db, err := gorm.Open(sqlite.Open(path), newGormConfig(gormLogger))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open SQLite database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get SQLite sql.DB")
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

func newGormConfig(gormLogger logger.Interface) *gorm.Config {
	return &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// mysqlDSN forces the driver options the repositories rely on: time.Time scanning
// and RowsAffected counting matched rows rather than changed rows.
func mysqlDSN(raw string) (string, error) {
	if raw == "" {
		return "", errors.New("mysql dsn is required for the mysql driver")
	}

	dsnCfg, err := mysqldriver.ParseDSN(raw)
	if err != nil {
		return "", errors.Wrap(err, "invalid mysql dsn")
	}
	dsnCfg.ParseTime = true
	dsnCfg.ClientFoundRows = true
	dsnCfg.Loc = time.UTC

	return dsnCfg.FormatDSN(), nil
}

func monitorDBPool(ctx context.Context, logger *slog.Logger, driver string, sqlDB *sql.DB, interval time.Duration) {
	if logger == nil || sqlDB == nil {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	prev := sqlDB.Stats()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := sqlDB.Stats()
			waitDelta := cur.WaitCount - prev.WaitCount
			waitDurationDelta := cur.WaitDuration - prev.WaitDuration

			if waitDelta > 0 {
				attrs := []slog.Attr{
					slog.String("driver", driver),
					slog.Int64("waitCountDelta", waitDelta),
					slog.Duration("waitDurationDelta", waitDurationDelta),
					slog.Duration("avgWait", waitDurationDelta/time.Duration(waitDelta)),
					slog.Int("maxOpenConns", cur.MaxOpenConnections),
					slog.Int("openConns", cur.OpenConnections),
					slog.Int("inUseConns", cur.InUse),
					slog.Int("idleConns", cur.Idle),
				}
				if waitDurationDelta >= dbPoolWarnDurationThreshold {
					logger.LogAttrs(ctx, slog.LevelWarn, "DB pool wait detected", attrs...)
				} else {
					logger.LogAttrs(ctx, slog.LevelDebug, "DB pool wait observed", attrs...)
				}
			}

			prev = cur
		}
	}
}
