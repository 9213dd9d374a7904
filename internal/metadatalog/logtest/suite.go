// Package logtest provides a conformance suite that every metadatalog.Log
// implementation must pass. Driver packages invoke Run from their own tests.
package logtest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemolab/mnemo/internal/metadatalog"
	"github.com/mnemolab/mnemo/internal/model"
)

// Factory returns a fresh, empty Log for each subtest.
type Factory func(t *testing.T) metadatalog.Log

// Run executes the conformance suite against the implementation produced by f.
func Run(t *testing.T, f Factory) {
	t.Run("AppendAndGet", func(t *testing.T) { testAppendAndGet(t, f(t)) })
	t.Run("DuplicateID", func(t *testing.T) { testDuplicateID(t, f(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, f(t)) })
	t.Run("SoftDelete", func(t *testing.T) { testSoftDelete(t, f(t)) })
	t.Run("SoftDeleteIdempotent", func(t *testing.T) { testSoftDeleteIdempotent(t, f(t)) })
	t.Run("ActiveIDsOrdering", func(t *testing.T) { testActiveIDsOrdering(t, f(t)) })
	t.Run("UserIsolation", func(t *testing.T) { testUserIsolation(t, f(t)) })
	t.Run("ListForUser", func(t *testing.T) { testListForUser(t, f(t)) })
	t.Run("Stats", func(t *testing.T) { testStats(t, f(t)) })
}

func newMemory(userID, content string) *model.Memory {
	return &model.Memory{
		ID:      uuid.NewString(),
		UserID:  userID,
		Content: content,
	}
}

func testAppendAndGet(t *testing.T, log metadatalog.Log) {
	ctx := context.Background()
	in := newMemory("user-1", "likes green tea")
	in.Metadata = map[string]interface{}{"source": "chat"}

	stored, err := log.Append(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, in.ID, stored.ID)
	assert.False(t, stored.IsDeleted)
	assert.False(t, stored.CreatedAt.IsZero())
	assert.Equal(t, stored.CreatedAt, stored.UpdatedAt)

	got, err := log.GetByID(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, "likes green tea", got.Content)
	assert.Equal(t, "user-1", got.UserID)
	assert.False(t, got.IsDeleted)
	assert.Equal(t, "chat", got.Metadata["source"])
}

func testDuplicateID(t *testing.T, log metadatalog.Log) {
	ctx := context.Background()
	m := newMemory("user-1", "first write")
	_, err := log.Append(ctx, m)
	require.NoError(t, err)

	dup := *m
	dup.Content = "second write"
	_, err = log.Append(ctx, &dup)
	require.ErrorIs(t, err, model.ErrDuplicateID)

	// The original row is untouched.
	got, err := log.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "first write", got.Content)
}

func testGetMissing(t *testing.T, log metadatalog.Log) {
	_, err := log.GetByID(context.Background(), uuid.NewString())
	require.ErrorIs(t, err, model.ErrNotFound)
}

func testSoftDelete(t *testing.T, log metadatalog.Log) {
	ctx := context.Background()
	m := newMemory("user-1", "to be removed")
	_, err := log.Append(ctx, m)
	require.NoError(t, err)

	require.NoError(t, log.SoftDelete(ctx, m.ID))

	// Row survives with the tombstone set.
	got, err := log.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)
	assert.Equal(t, "to be removed", got.Content)

	ids, err := log.ActiveIDs(ctx, "user-1")
	require.NoError(t, err)
	assert.NotContains(t, ids, m.ID)
}

func testSoftDeleteIdempotent(t *testing.T, log metadatalog.Log) {
	ctx := context.Background()
	m := newMemory("user-1", "double delete")
	_, err := log.Append(ctx, m)
	require.NoError(t, err)

	require.NoError(t, log.SoftDelete(ctx, m.ID))
	require.NoError(t, log.SoftDelete(ctx, m.ID))

	// Unknown IDs are a no-op, not an error.
	require.NoError(t, log.SoftDelete(ctx, uuid.NewString()))
}

func testActiveIDsOrdering(t *testing.T, log metadatalog.Log) {
	ctx := context.Background()
	var ids []string
	for _, content := range []string{"oldest", "middle", "newest"} {
		m := newMemory("user-1", content)
		_, err := log.Append(ctx, m)
		require.NoError(t, err)
		ids = append(ids, m.ID)
		time.Sleep(5 * time.Millisecond)
	}

	got, err := log.ActiveIDs(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, got)
}

func testUserIsolation(t *testing.T, log metadatalog.Log) {
	ctx := context.Background()
	ours := newMemory("user-a", "belongs to a")
	theirs := newMemory("user-b", "belongs to b")
	_, err := log.Append(ctx, ours)
	require.NoError(t, err)
	_, err = log.Append(ctx, theirs)
	require.NoError(t, err)

	got, err := log.ActiveIDs(ctx, "user-a")
	require.NoError(t, err)
	assert.Equal(t, []string{ours.ID}, got)
}

func testListForUser(t *testing.T, log metadatalog.Log) {
	ctx := context.Background()
	for i, content := range []string{"one", "two", "three"} {
		m := newMemory("user-1", content)
		_, err := log.Append(ctx, m)
		require.NoError(t, err)
		if i == 0 {
			require.NoError(t, log.SoftDelete(ctx, m.ID))
		}
		time.Sleep(5 * time.Millisecond)
	}

	all, err := log.ListForUser(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "three", all[0].Content)
	assert.Equal(t, "two", all[1].Content)

	limited, err := log.ListForUser(ctx, "user-1", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "three", limited[0].Content)
}

func testStats(t *testing.T, log metadatalog.Log) {
	ctx := context.Background()

	empty, err := log.StatsForUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Total)
	assert.Nil(t, empty.FirstCreated)

	var first, last *model.Memory
	for i, content := range []string{"a", "b", "c"} {
		m := newMemory("user-1", content)
		stored, err := log.Append(ctx, m)
		require.NoError(t, err)
		if i == 0 {
			first = stored
		}
		last = stored
		time.Sleep(5 * time.Millisecond)
	}
	require.NoError(t, log.SoftDelete(ctx, first.ID))

	st, err := log.StatsForUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 2, st.Active)
	assert.Equal(t, 1, st.Deleted)
	require.NotNil(t, st.FirstCreated)
	require.NotNil(t, st.LastCreated)
	assert.False(t, st.LastCreated.Before(*st.FirstCreated))
	// The boundaries are the actual stored timestamps, soft-deleted rows
	// included.
	assert.WithinDuration(t, first.CreatedAt, *st.FirstCreated, time.Second)
	assert.WithinDuration(t, last.CreatedAt, *st.LastCreated, time.Second)
}
