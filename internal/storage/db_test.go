package storage

import (
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig("corpus.db")

	if config.Path != "corpus.db" {
		t.Errorf("expected path 'corpus.db', got '%s'", config.Path)
	}

	if config.MaxOpenConns != 4 {
		t.Errorf("expected MaxOpenConns 4, got %d", config.MaxOpenConns)
	}

	if config.MaxIdleConns != 2 {
		t.Errorf("expected MaxIdleConns 2, got %d", config.MaxIdleConns)
	}

	if config.ConnMaxLifetime != 5*time.Minute {
		t.Errorf("expected ConnMaxLifetime 5m, got %v", config.ConnMaxLifetime)
	}

	if config.BusyTimeout != 5*time.Second {
		t.Errorf("expected BusyTimeout 5s, got %v", config.BusyTimeout)
	}

	if config.JournalMode != "WAL" {
		t.Errorf("expected JournalMode 'WAL', got '%s'", config.JournalMode)
	}

	if !config.AutoMigrate {
		t.Error("expected AutoMigrate to default to true")
	}
}

func TestOpen(t *testing.T) {
	db, err := Open(DefaultConfig(filepath.Join(t.TempDir(), "corpus.db")))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		t.Errorf("failed to ping database: %v", err)
	}

	if db.Conn() == nil {
		t.Error("expected non-nil connection")
	}

	var n int
	if err := db.Conn().QueryRow("SELECT COUNT(*) FROM cubes").Scan(&n); err != nil {
		t.Fatalf("cubes table missing after auto-migrate: %v", err)
	}
	if n != 0 {
		t.Errorf("expected empty cubes table, got %d rows", n)
	}
}

func TestOpenWithNilConfig(t *testing.T) {
	_, err := Open(nil)
	if err == nil {
		t.Error("expected error with nil config")
	}
}

func TestOpenRejectsMemoryPath(t *testing.T) {
	_, err := Open(DefaultConfig(":memory:"))
	if err == nil {
		t.Error("expected error for in-memory path")
	}
}
