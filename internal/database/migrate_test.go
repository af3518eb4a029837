package database

import (
	"errors"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4"
)

type fakeMigrateDriver struct {
	upErr    error
	closeSrc error
	closeDB  error
	upCalled bool
}

func (f *fakeMigrateDriver) Up() error {
	f.upCalled = true
	return f.upErr
}

func (f *fakeMigrateDriver) Close() (error, error) {
	return f.closeSrc, f.closeDB
}

func TestNewMigrator_SourcePath(t *testing.T) {
	orig := newMigrate
	t.Cleanup(func() { newMigrate = orig })

	var gotSource, gotDB string
	newMigrate = func(sourceURL, databaseURL string) (migrateDriver, error) {
		gotSource = sourceURL
		gotDB = databaseURL
		return &fakeMigrateDriver{}, nil
	}

	if _, err := NewMigrator("postgres://x", "migrations"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotSource != "file://migrations" {
		t.Fatalf("expected file source url, got %q", gotSource)
	}
	if gotDB != "postgres://x" {
		t.Fatalf("expected dsn passthrough, got %q", gotDB)
	}
}

func TestNewMigrator_Error(t *testing.T) {
	orig := newMigrate
	t.Cleanup(func() { newMigrate = orig })

	newErr := errors.New("no such driver")
	newMigrate = func(sourceURL, databaseURL string) (migrateDriver, error) {
		return nil, newErr
	}

	_, err := NewMigrator("postgres://x", "migrations")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, newErr) {
		t.Fatalf("expected error to wrap %v, got %v", newErr, err)
	}
	if !strings.Contains(err.Error(), "creating migrator") {
		t.Fatalf("expected creation context, got %q", err.Error())
	}
}

func TestMigratorUp_NoChangeIsNotError(t *testing.T) {
	m := &Migrator{m: &fakeMigrateDriver{upErr: migrate.ErrNoChange}}
	if err := m.Up(); err != nil {
		t.Fatalf("expected ErrNoChange to be swallowed, got %v", err)
	}
}

func TestMigratorUp_Error(t *testing.T) {
	upErr := errors.New("dirty database")
	m := &Migrator{m: &fakeMigrateDriver{upErr: upErr}}
	err := m.Up()
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, upErr) {
		t.Fatalf("expected error to wrap %v, got %v", upErr, err)
	}
}

func TestMigratorUp_Success(t *testing.T) {
	fake := &fakeMigrateDriver{}
	m := &Migrator{m: fake}
	if err := m.Up(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fake.upCalled {
		t.Fatal("expected Up to be called")
	}
}

func TestMigratorClose(t *testing.T) {
	srcErr := errors.New("source close failed")
	m := &Migrator{m: &fakeMigrateDriver{closeSrc: srcErr}}
	if err := m.Close(); !errors.Is(err, srcErr) {
		t.Fatalf("expected source error, got %v", err)
	}

	dbErr := errors.New("db close failed")
	m = &Migrator{m: &fakeMigrateDriver{closeDB: dbErr}}
	if err := m.Close(); !errors.Is(err, dbErr) {
		t.Fatalf("expected db error, got %v", err)
	}

	m = &Migrator{m: &fakeMigrateDriver{}}
	if err := m.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
}
