package chromem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemolab/mnemo/internal/vectorindex"
)

func newIndex(t *testing.T) *Index {
	idx, err := New("", "test_memories")
	require.NoError(t, err)
	return idx
}

func TestSearchOrdersByDistance(t *testing.T) {
	ctx := context.Background()
	idx := newIndex(t)

	require.NoError(t, idx.Upsert(ctx, "x-axis", []float32{1, 0, 0}, "x", nil))
	require.NoError(t, idx.Upsert(ctx, "y-axis", []float32{0, 1, 0}, "y", nil))
	require.NoError(t, idx.Upsert(ctx, "near-x", []float32{0.9, 0.1, 0}, "almost x", nil))

	hits, err := idx.Search(ctx, []float32{1, 0, 0}, 3, nil)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "x-axis", hits[0].ID)
	assert.Equal(t, "near-x", hits[1].ID)
	assert.Equal(t, "y-axis", hits[2].ID)
	assert.InDelta(t, 0, hits[0].Distance, 1e-5)
	assert.Less(t, hits[1].Distance, hits[2].Distance)
}

func TestSearchCandidateRestriction(t *testing.T) {
	ctx := context.Background()
	idx := newIndex(t)

	require.NoError(t, idx.Upsert(ctx, "a", []float32{1, 0, 0}, "a", nil))
	require.NoError(t, idx.Upsert(ctx, "b", []float32{0.9, 0.1, 0}, "b", nil))
	require.NoError(t, idx.Upsert(ctx, "c", []float32{0, 1, 0}, "c", nil))

	// Only b and c allowed: the best overall match a must not appear.
	hits, err := idx.Search(ctx, []float32{1, 0, 0}, 2, []string{"b", "c"})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "b", hits[0].ID)
	assert.Equal(t, "c", hits[1].ID)
}

func TestSearchEmptyCandidateSet(t *testing.T) {
	ctx := context.Background()
	idx := newIndex(t)
	require.NoError(t, idx.Upsert(ctx, "a", []float32{1, 0, 0}, "a", nil))

	// Non-nil empty set means no live candidates: no hits, no error.
	hits, err := idx.Search(ctx, []float32{1, 0, 0}, 5, []string{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchEmptyIndex(t *testing.T) {
	idx := newIndex(t)
	hits, err := idx.Search(context.Background(), []float32{1, 0, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchTopNSmallerThanCollection(t *testing.T) {
	ctx := context.Background()
	idx := newIndex(t)
	require.NoError(t, idx.Upsert(ctx, "a", []float32{1, 0, 0}, "a", nil))
	require.NoError(t, idx.Upsert(ctx, "b", []float32{0, 1, 0}, "b", nil))
	require.NoError(t, idx.Upsert(ctx, "c", []float32{0, 0, 1}, "c", nil))

	hits, err := idx.Search(ctx, []float32{1, 0, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ID)
}

func TestUpsertReplacesVector(t *testing.T) {
	ctx := context.Background()
	idx := newIndex(t)

	require.NoError(t, idx.Upsert(ctx, "m", []float32{1, 0, 0}, "before", nil))
	require.NoError(t, idx.Upsert(ctx, "m", []float32{0, 1, 0}, "after", nil))

	hits, err := idx.Search(ctx, []float32{0, 1, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "m", hits[0].ID)
	assert.InDelta(t, 0, hits[0].Distance, 1e-5)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	idx := newIndex(t)

	require.NoError(t, idx.Upsert(ctx, "a", []float32{1, 0, 0}, "a", nil))
	require.NoError(t, idx.Upsert(ctx, "b", []float32{0, 1, 0}, "b", nil))
	require.NoError(t, idx.Remove(ctx, "a"))

	hits, err := idx.Search(ctx, []float32{1, 0, 0}, 5, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].ID)

	// Removing again is a no-op.
	require.NoError(t, idx.Remove(ctx, "a"))

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

var _ vectorindex.Index = (*Index)(nil)
