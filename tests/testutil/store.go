package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nhle/email-copilot/internal/store"
)

// NewTestStore returns an in-memory SQLiteStore with every migration
// applied. The store is closed when the test ends.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	return open(t, ":memory:")
}

// NewFileStore returns a store backed by a database file in a fresh temp
// dir, for tests that need WAL mode, several connections, or a reopen.
// The path is returned alongside.
func NewFileStore(t *testing.T) (*store.SQLiteStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "email-copilot.db")
	return open(t, path), path
}

// SeedDocument writes v as the JSON document under key.
func SeedDocument(t *testing.T, docs store.Documents, key string, v any) {
	t.Helper()
	require.NoError(t, store.PutJSON(context.Background(), docs, key, v), "seeding %s", key)
}

func open(t *testing.T, path string) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err, "opening test store")

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})
	return s
}
