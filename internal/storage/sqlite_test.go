package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"finanzas/internal/storage"
	"finanzas/internal/storage/storagetest"
)

func newSQLite(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	s, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "data", "finanzas.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.DocumentStore {
		return newSQLite(t)
	})
}

func TestSQLiteMigrationsApplied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finanzas.db")
	s, err := storage.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	defer s.Close()

	v, dirty, err := storage.SchemaVersion(path)
	if err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if v != 2 || dirty {
		t.Fatalf("expected clean version 2, got %d (dirty=%v)", v, dirty)
	}
	// Reopening must be a no-op migration.
	if err := storage.RunMigrations(path); err != nil {
		t.Fatalf("rerun migrations: %v", err)
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finanzas.db")
	ctx := context.Background()

	s, err := storage.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	d, err := s.Insert(ctx, storage.Lottery, []byte(`{"bets":[]}`))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	_ = s.Close()

	s, err = storage.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.Get(ctx, storage.Lottery, d.ID)
	if err != nil || string(got.Data) != `{"bets":[]}` {
		t.Fatalf("unexpected document after reopen: %+v (err=%v)", got, err)
	}
	if !got.UpdatedAt.Equal(d.UpdatedAt) {
		t.Fatalf("timestamps must round-trip: %v vs %v", got.UpdatedAt, d.UpdatedAt)
	}
}
