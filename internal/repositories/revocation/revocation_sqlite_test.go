package revocation

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRevokeAndPurge(t *testing.T) {
	ctx := context.Background()
	r, err := NewSQLiteRepo(filepath.Join(t.TempDir(), "revocation.db"))
	require.NoError(t, err)
	defer r.Disconnect()

	now := time.Unix(1_700_000_000, 0)
	r.now = func() time.Time { return now }

	require.Error(t, r.Revoke(ctx, "", now))

	require.NoError(t, r.Revoke(ctx, "live", now.Add(time.Hour)))
	require.NoError(t, r.Revoke(ctx, "live", now.Add(time.Minute)))
	require.NoError(t, r.Revoke(ctx, "stale", now.Add(-time.Minute)))

	ok, err := r.IsRevoked(ctx, "live")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = r.IsRevoked(ctx, "stale")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = r.IsRevoked(ctx, "never")
	require.NoError(t, err)
	require.False(t, ok)

	n, err := r.Purge(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	// the later expiry wins on re-revoke
	now = now.Add(30 * time.Minute)
	ok, err = r.IsRevoked(ctx, "live")
	require.NoError(t, err)
	require.True(t, ok)
}
