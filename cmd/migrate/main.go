package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stemsi/examkb/internal/config"
	"github.com/stemsi/examkb/internal/database"
	"github.com/stemsi/examkb/internal/migrations"
)

func main() {
	var driver, dbURL string
	flag.StringVar(&driver, "driver", "", "Database driver: sqlite or postgres (default from DB_DRIVER)")
	flag.StringVar(&dbURL, "url", "", "Database URL or SQLite path (default from DATABASE_URL)")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		return
	}

	// Load config
	cfg := config.Load()
	if driver == "" {
		driver = cfg.DBDriver
	}
	if dbURL == "" {
		dbURL = cfg.DatabaseURL
	}
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := open(context.Background(), driver, dbURL)
	if err != nil {
		log.Fatalf("Open database: %v", err)
	}
	defer db.Close()

	m, err := migrations.New(db, driver)
	if err != nil {
		log.Fatalf("Migration failed to initialize: %v", err)
	}

	command := args[0]
	switch command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("Up failed: %v", err)
		}
		fmt.Println("Migrated up successfully")
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("Down failed: %v", err)
		}
		fmt.Println("Migrated down successfully")
	case "steps":
		if len(args) < 2 {
			log.Fatal("steps requires a count argument")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatalf("Invalid step count: %v", err)
		}
		if err := m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("Steps failed: %v", err)
		}
		fmt.Printf("Migrated %d steps\n", n)
	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("Version: none")
			return
		}
		if err != nil {
			log.Fatalf("Version failed: %v", err)
		}
		fmt.Printf("Version: %d, Dirty: %t\n", version, dirty)
	case "force":
		if len(args) < 2 {
			log.Fatal("force requires version argument")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatalf("Invalid version: %v", err)
		}
		if err := m.Force(v); err != nil {
			log.Fatalf("Force failed: %v", err)
		}
		fmt.Printf("Forced version to %d\n", v)
	default:
		printUsage()
	}
}

func open(ctx context.Context, driver, dbURL string) (*sql.DB, error) {
	switch driver {
	case config.DriverSQLite:
		return database.OpenSQLite(ctx, dbURL)
	case config.DriverPostgres:
		return database.OpenPostgresSQL(ctx, dbURL)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

func printUsage() {
	fmt.Println("Usage: migrate [flags] <command>")
	fmt.Println("Commands: up, down, steps <n>, version, force <version>")
	fmt.Println("Flags:")
	flag.PrintDefaults()
}
