package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"altarfunds/internal/core"
)

func corruptSchemaVersion(t *testing.T, dbPath string, version int, dirty bool) {
	t.Helper()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec("UPDATE schema_migrations SET version = ?, dirty = ?", version, dirty); err != nil {
		t.Fatalf("update schema_migrations: %v", err)
	}
}

func TestMigrations_FreshDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	store, err := NewCacheStore(dbPath)
	if err != nil {
		t.Fatalf("NewCacheStore() error = %v", err)
	}
	defer store.Close()

	// Schema is in place: all table reads succeed on an empty database.
	ctx := context.Background()
	if _, err := store.GetAllTransactions(ctx); err != nil {
		t.Errorf("GetAllTransactions() error = %v", err)
	}
	if _, err := store.GetAllCategories(ctx); err != nil {
		t.Errorf("GetAllCategories() error = %v", err)
	}
}

func TestMigrations_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	store, err := NewCacheStore(dbPath)
	if err != nil {
		t.Fatalf("NewCacheStore() error = %v", err)
	}
	tx := core.Transaction{ID: "tx_1", Category: "Tithe", Amount: core.Money{Cents: 100}, Status: core.StatusCompleted}
	if err := store.PutTransaction(ctx, tx); err != nil {
		t.Fatalf("PutTransaction() error = %v", err)
	}
	store.Close()

	reopened, err := NewCacheStore(dbPath)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	txs, err := reopened.GetAllTransactions(ctx)
	if err != nil {
		t.Fatalf("GetAllTransactions() error = %v", err)
	}
	if len(txs) != 1 {
		t.Errorf("transactions = %d after clean reopen, want 1", len(txs))
	}
}

func TestMigrations_UnknownVersionDropsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	store, err := NewCacheStore(dbPath)
	if err != nil {
		t.Fatalf("NewCacheStore() error = %v", err)
	}
	tx := core.Transaction{ID: "tx_1", Category: "Tithe", Amount: core.Money{Cents: 100}, Status: core.StatusCompleted}
	if err := store.PutTransaction(ctx, tx); err != nil {
		t.Fatalf("PutTransaction() error = %v", err)
	}
	store.Close()

	// A database written by a newer build comes back at a version this
	// build does not know.
	corruptSchemaVersion(t, dbPath, 99, false)

	reopened, err := NewCacheStore(dbPath)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	txs, err := reopened.GetAllTransactions(ctx)
	if err != nil {
		t.Fatalf("GetAllTransactions() error = %v", err)
	}
	if len(txs) != 0 {
		t.Errorf("transactions = %d after destructive upgrade, want 0", len(txs))
	}
}

func TestMigrations_DirtyStateDropsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	store, err := NewCacheStore(dbPath)
	if err != nil {
		t.Fatalf("NewCacheStore() error = %v", err)
	}
	if err := store.PutCategory(ctx, core.GivingCategory{ID: 1, Name: "Tithe"}); err != nil {
		t.Fatalf("PutCategory() error = %v", err)
	}
	store.Close()

	corruptSchemaVersion(t, dbPath, 1, true)

	reopened, err := NewCacheStore(dbPath)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	cats, err := reopened.GetAllCategories(ctx)
	if err != nil {
		t.Fatalf("GetAllCategories() error = %v", err)
	}
	if len(cats) != 0 {
		t.Errorf("categories = %d after dirty recovery, want 0", len(cats))
	}
}
