package firestore

import (
	"context"
	"os"
	"testing"
	"time"

	gfs "cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/quipper/poc/sis/be/pkg/docstore"
)

func TestTranslateSentinels(t *testing.T) {
	require.Equal(t, gfs.ServerTimestamp, translate(docstore.ServerTimestamp))
	require.Equal(t, gfs.ArrayUnion("a", "b"), translate(docstore.ArrayUnion("a", "b")))
	require.Equal(t, gfs.ArrayRemove("a"), translate(docstore.ArrayRemove("a")))
	require.Equal(t, "plain", translate("plain"))
	require.Nil(t, translate(nil))
}

// Runs only against the emulator: FIRESTORE_EMULATOR_HOST=localhost:8080
func TestFirestoreStoreRoundTrip(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	s, err := NewFirestoreStore(ctx, "sis-test", "")
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Ping(ctx))

	c := s.Collection("groups_" + uuid.NewString()[:8])
	id := c.NewID()
	require.NoError(t, c.Set(ctx, id, map[string]any{"name": "G", "studentIds": []string{}, "lecturerId": nil, "createdAt": docstore.ServerTimestamp}))
	require.NoError(t, c.Update(ctx, id, []docstore.Update{
		{Path: "studentIds", Value: docstore.ArrayUnion("s1", "s1", "s2")},
		{Path: "updatedAt", Value: docstore.ServerTimestamp},
	}))
	require.NoError(t, c.Update(ctx, id, []docstore.Update{{Path: "studentIds", Value: docstore.ArrayRemove("s2")}}))

	snap, err := c.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, []any{"s1"}, snap.Data["studentIds"])
	require.IsType(t, time.Time{}, snap.Data["createdAt"])
	require.IsType(t, time.Time{}, snap.Data["updatedAt"])

	got, err := c.Where(ctx, docstore.Contains("studentIds", "s1"))
	require.NoError(t, err)
	require.Len(t, got, 1)

	missing, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	require.Nil(t, missing)
	require.ErrorIs(t, c.Update(ctx, "missing", []docstore.Update{{Path: "name", Value: "x"}}), docstore.ErrNotFound)

	require.NoError(t, c.Delete(ctx, id))
	require.NoError(t, c.Delete(ctx, id))
}
