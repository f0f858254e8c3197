package gormstore_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/spigell/bewerbungs-agent/internal/storage/gormstore"
	"github.com/spigell/bewerbungs-agent/internal/storage/storagetest"
)

// The contract runs against a real database when BEWERBUNGS_TEST_DSN is set,
// e.g. BEWERBUNGS_TEST_DRIVER=postgres BEWERBUNGS_TEST_DSN=postgres://...
func TestStoreContract(t *testing.T) {
	dsn := os.Getenv("BEWERBUNGS_TEST_DSN")
	if dsn == "" {
		t.Skip("BEWERBUNGS_TEST_DSN not set")
	}

	store, err := gormstore.Open(gormstore.Config{
		Driver: os.Getenv("BEWERBUNGS_TEST_DRIVER"),
		DSN:    dsn,
	}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	storagetest.Run(t, store)
}

func TestOpenValidatesConfig(t *testing.T) {
	if _, err := gormstore.Open(gormstore.Config{Driver: "postgres"}, nil); err == nil {
		t.Fatalf("expected error for missing dsn")
	}

	_, err := gormstore.Open(gormstore.Config{Driver: "sqlite", DSN: "file::memory:"}, nil)
	if err == nil || !strings.Contains(err.Error(), "unsupported database driver") {
		t.Fatalf("expected unsupported driver error, got %v", err)
	}
}
