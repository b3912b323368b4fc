package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quipper/poc/sis/be/pkg/docstore"
)

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "docs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetAbsentReturnsNil(t *testing.T) {
	s := newStore(t)
	snap, err := s.Collection("groups").Get(context.Background(), "nope")
	require.NoError(t, err)
	require.Nil(t, snap)
}

func TestSetGetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	c := newStore(t).Collection("groups")
	id := c.NewID()

	require.NoError(t, c.Set(ctx, id, map[string]any{
		"id": id, "name": "G1", "studentIds": []string{}, "createdAt": docstore.ServerTimestamp,
	}))
	snap, err := c.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "G1", snap.Data["name"])
	require.NotEmpty(t, snap.Data["createdAt"])

	require.NoError(t, c.Update(ctx, id, []docstore.Update{
		{Path: "name", Value: "G2"},
		{Path: "studentIds", Value: docstore.ArrayUnion("s1")},
	}))
	snap, err = c.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "G2", snap.Data["name"])
	require.Equal(t, []any{"s1"}, snap.Data["studentIds"])

	require.NoError(t, c.Delete(ctx, id))
	require.NoError(t, c.Delete(ctx, id))
	snap, err = c.Get(ctx, id)
	require.NoError(t, err)
	require.Nil(t, snap)
}

func TestUpdateMissingDocument(t *testing.T) {
	err := newStore(t).Collection("groups").Update(context.Background(), "x", []docstore.Update{{Path: "name", Value: "n"}})
	require.True(t, errors.Is(err, docstore.ErrNotFound))
}

func TestWhereFilters(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	grades := s.Collection("grades")
	groups := s.Collection("groups")

	require.NoError(t, grades.Set(ctx, "a", map[string]any{"studentId": "s1", "groupId": "g1"}))
	require.NoError(t, grades.Set(ctx, "b", map[string]any{"studentId": "s2", "groupId": "g1"}))
	require.NoError(t, grades.Set(ctx, "c", map[string]any{"studentId": "s1", "groupId": "g2"}))
	// other collections never leak into results
	require.NoError(t, groups.Set(ctx, "a", map[string]any{"studentId": "s1", "studentIds": []string{"s1", "s2"}, "lecturerId": nil}))
	require.NoError(t, groups.Set(ctx, "b", map[string]any{"studentIds": []string{"s2"}, "lecturerId": "l1"}))

	got, err := grades.Where(ctx, docstore.Eq("studentId", "s1"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "a", got[0].ID)
	require.Equal(t, "c", got[1].ID)

	got, err = groups.Where(ctx, docstore.Contains("studentIds", "s1"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "a", got[0].ID)

	got, err = groups.Where(ctx, docstore.Eq("lecturerId", nil))
	require.NoError(t, err)
	require.Len(t, got, 1)

	all, err := grades.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestConcurrentUnionKeepsEveryElement(t *testing.T) {
	ctx := context.Background()
	c := newStore(t).Collection("groups")
	require.NoError(t, c.Set(ctx, "g", map[string]any{"studentIds": []string{}}))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = c.Update(ctx, "g", []docstore.Update{{Path: "studentIds", Value: docstore.ArrayUnion(fmt.Sprintf("s%d", i))}})
		}(i)
	}
	wg.Wait()

	snap, err := c.Get(ctx, "g")
	require.NoError(t, err)
	require.Len(t, snap.Data["studentIds"], 10)
}
