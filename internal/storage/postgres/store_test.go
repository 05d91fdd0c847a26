package postgres

import (
	"context"
	"os"
	"testing"

	"marketScope/internal/storage"
	"marketScope/internal/storage/storetest"
)

// Requires a disposable database: INDEXER_TEST_PG_DSN=postgres://... go test ./...
func TestStoreConformance(t *testing.T) {
	dsn := os.Getenv("INDEXER_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("INDEXER_TEST_PG_DSN not set")
	}

	storetest.Run(t, func(t *testing.T) storage.Store {
		ctx := context.Background()
		store, err := NewStore(ctx, dsn, 4)
		if err != nil {
			t.Fatalf("open store: %v", err)
		}
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("migrate: %v", err)
		}
		if err := store.Reset(ctx); err != nil {
			t.Fatalf("reset: %v", err)
		}
		return store
	})
}
