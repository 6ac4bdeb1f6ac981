package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // registers "sqlite"

	"github.com/stemsi/examkb/internal/config"
)

var sqlitePragmas = []string{
	"PRAGMA foreign_keys = ON;",
	"PRAGMA journal_mode = WAL;",
	"PRAGMA synchronous = NORMAL;",
	"PRAGMA busy_timeout = 5000;",
	"PRAGMA temp_store = MEMORY;",
}

// NewSQLiteDB opens the SQLite database named by cfg.DatabaseURL.
func NewSQLiteDB(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*sql.DB, error) {
	db, err := OpenSQLite(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("path", sqlitePath(cfg.DatabaseURL)).
		Msg("SQLite opened")

	return db, nil
}

// OpenSQLite opens a single-connection SQLite pool with the write-friendly
// pragmas applied. Accepts a bare path or a sqlite:// URL.
func OpenSQLite(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", sqlitePath(dsn))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Single writer: one connection, kept forever so pragmas stick.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	for _, p := range sqlitePragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}

	return db, nil
}

func sqlitePath(dsn string) string {
	for _, prefix := range []string{"sqlite://", "sqlite3://"} {
		if strings.HasPrefix(dsn, prefix) {
			return strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}

// WithTx starts a transaction, runs fn, and commits if fn returns nil.
// If fn returns an error the transaction is rolled back and that error is
// returned unchanged.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(*sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if e := tx.Commit(); e != nil {
			err = fmt.Errorf("commit: %w", e)
		}
	}()
	err = fn(tx)
	return
}
