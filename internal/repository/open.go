package repository

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stemsi/examkb/internal/config"
	"github.com/stemsi/examkb/internal/database"
	"github.com/stemsi/examkb/internal/migrations"
)

// OpenQuestionStore connects the store selected by cfg.DBDriver and applies
// pending migrations when cfg.AutoMigrate is set. The returned func releases
// every handle it opened.
func OpenQuestionStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (QuestionStore, func(), error) {
	switch cfg.DBDriver {
	case config.DriverSQLite:
		db, err := database.NewSQLiteDB(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		if cfg.AutoMigrate {
			if err := migrations.Up(db, migrations.DialectSQLite); err != nil {
				_ = db.Close()
				return nil, nil, err
			}
		}
		return NewSQLiteQuestionStore(db), func() { _ = db.Close() }, nil

	case config.DriverPostgres:
		if cfg.AutoMigrate {
			sqlDB, err := database.OpenPostgresSQL(ctx, cfg.DatabaseURL)
			if err != nil {
				return nil, nil, err
			}
			err = migrations.Up(sqlDB, migrations.DialectPostgres)
			_ = sqlDB.Close()
			if err != nil {
				return nil, nil, err
			}
		}
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return NewPostgresQuestionStore(pool), pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}
