package database

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// migrateDriver is the subset of *migrate.Migrate the Migrator uses.
type migrateDriver interface {
	Up() error
	Close() (error, error)
}

var newMigrate = func(sourceURL, databaseURL string) (migrateDriver, error) {
	return migrate.New(sourceURL, databaseURL)
}

// Migrator applies the SQL migrations shipped with the server to the
// database before it starts serving.
type Migrator struct {
	m migrateDriver
}

func NewMigrator(dsn, migrationsPath string) (*Migrator, error) {
	m, err := newMigrate("file://"+migrationsPath, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	return &Migrator{m: m}, nil
}

// Up applies all pending migrations. An already current database is not an
// error.
func (m *Migrator) Up() error {
	if err := m.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	if srcErr != nil {
		return srcErr
	}
	return dbErr
}
