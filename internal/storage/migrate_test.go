package storage

import (
	"path/filepath"
	"testing"
)

func TestMigrationManager_Up(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "migration-test.db")

	mgr, err := NewMigrationManager(dbPath)
	if err != nil {
		t.Fatalf("Failed to create migration manager: %v", err)
	}
	if err := mgr.Up(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	// A second Up is a no-op.
	if err := mgr.Up(); err != nil {
		t.Fatalf("Second Up returned error: %v", err)
	}
	if err := mgr.Close(); err != nil {
		t.Fatalf("Failed to close migration manager: %v", err)
	}

	mgr2, err := NewMigrationManager(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen migration manager: %v", err)
	}
	defer mgr2.Close()

	version, dirty, err := mgr2.Version()
	if err != nil {
		t.Fatalf("Failed to get migration version: %v", err)
	}
	if dirty {
		t.Error("Database is in dirty state after migrations")
	}
	if version != 2 {
		t.Errorf("Expected migration version 2, got %d", version)
	}
}

func TestMigrationManager_Down(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "migration-down.db")

	mgr, err := NewMigrationManager(dbPath)
	if err != nil {
		t.Fatalf("Failed to create migration manager: %v", err)
	}
	defer mgr.Close()

	if err := mgr.Up(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	if err := mgr.Down(); err != nil {
		t.Fatalf("Failed to roll back: %v", err)
	}

	_, _, err = mgr.Version()
	if err != nil {
		t.Fatalf("Version after rollback returned error: %v", err)
	}
}
