package database

import (
	"embed"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationDatabaseURL reads the database location straight from the
// environment so migrations can run without the rest of the config
func migrationDatabaseURL() string {
	return ConstructDatabaseURL(os.Getenv("DATABASE_URL"), os.Getenv("DATABASE_NAME"))
}

// MigrateUp runs all pending migrations
func MigrateUp() error {
	databaseURL := migrationDatabaseURL()
	log.Printf("Migration connecting to: %s", redactURL(databaseURL))

	return withMigrate(databaseURL, func(m *migrate.Migrate) error {
		err := m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			log.Println("No new migrations to apply")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		version, _, _ := m.Version()
		log.Printf("Successfully migrated to version %d", version)
		return nil
	})
}

// MigrateDown rolls back the specified number of migrations
func MigrateDown(stepsStr string) error {
	steps, err := strconv.Atoi(stepsStr)
	if err != nil {
		return fmt.Errorf("invalid steps value: %w", err)
	}

	return withMigrate(migrationDatabaseURL(), func(m *migrate.Migrate) error {
		err := m.Steps(-steps)
		if errors.Is(err, migrate.ErrNoChange) {
			log.Println("No migrations to rollback")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to rollback migrations: %w", err)
		}

		version, _, verr := m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			log.Println("Rolled back all migrations")
			return nil
		}
		log.Printf("Successfully rolled back to version %d", version)
		return nil
	})
}

// MigrateStatus shows the current migration status
func MigrateStatus() error {
	return withMigrate(migrationDatabaseURL(), func(m *migrate.Migrate) error {
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Println("No migrations have been applied yet")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get migration version: %w", err)
		}

		status := "clean"
		if dirty {
			status = "dirty"
		}
		log.Printf("Current migration version: %d (status: %s)", version, status)
		return nil
	})
}

// RunMigrationsWithURL runs all pending migrations against an explicit URL,
// used by test containers whose URL is only known at runtime
func RunMigrationsWithURL(databaseURL string) error {
	return withMigrate(databaseURL, func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		return nil
	})
}

func withMigrate(databaseURL string, fn func(m *migrate.Migrate) error) error {
	m, err := newMigrate(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	return fn(m)
}

func newMigrate(databaseURL string) (*migrate.Migrate, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	db := stdlib.OpenDB(*config.ConnConfig)

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	return migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
}

// redactURL hides the password portion of a connection string for logging
func redactURL(databaseURL string) string {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return "<unparseable database url>"
	}
	cc := config.ConnConfig
	return fmt.Sprintf("postgres://%s@%s:%d/%s", cc.User, cc.Host, cc.Port, cc.Database)
}
