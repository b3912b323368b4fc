// Package testutil builds real SQLite-backed collaborators for package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	sqlitestore "github.com/quipper/poc/sis/be/internal/docstore/sqlite"
	"github.com/quipper/poc/sis/be/internal/identity/local"
	"github.com/quipper/poc/sis/be/pkg/common/keys"
	"github.com/quipper/poc/sis/be/pkg/docstore"
	"github.com/quipper/poc/sis/be/pkg/repositories/users"
)

// NewStore opens a document store in a per-test directory.
func NewStore(t testing.TB) *sqlitestore.SQLiteStore {
	t.Helper()
	s, err := sqlitestore.NewSQLiteStore(filepath.Join(t.TempDir(), "docs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// NewProvider opens a local identity provider in a per-test directory.
func NewProvider(t testing.TB) *local.LocalProvider {
	t.Helper()
	ks, err := keys.Load(keys.Source{Kid: "test"})
	require.NoError(t, err)
	p, err := local.NewLocalProvider(filepath.Join(t.TempDir(), "identity.db"), ks, local.Config{
		ActionSecret:  "test-secret",
		ActionBaseURL: "http://localhost/auth/action",
		BcryptCost:    bcrypt.MinCost,
	})
	require.NoError(t, err)
	t.Cleanup(p.Disconnect)
	return p
}

// SeedUser writes a profile mirror directly, bypassing the identity provider.
func SeedUser(t testing.TB, store docstore.Store, id string, role users.Role) {
	t.Helper()
	err := store.Collection("users").Set(context.Background(), id, map[string]any{
		"id":        id,
		"email":     id + "@uni.test",
		"name":      id,
		"role":      string(role),
		"createdAt": docstore.ServerTimestamp,
	})
	require.NoError(t, err)
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
