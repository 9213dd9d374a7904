package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemolab/mnemo/internal/memory"
	sqlitelog "github.com/mnemolab/mnemo/internal/metadatalog/sqlite"
	chromemidx "github.com/mnemolab/mnemo/internal/vectorindex/chromem"
)

// stubEmbedder returns canned vectors per exact text.
type stubEmbedder struct {
	vectors map[string][]float32
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float32{0.5, 0.5, 0.5}, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := s.Embed(ctx, t)
		out[i] = v
	}
	return out, nil
}

// stubExtractor returns canned fact lists.
type stubExtractor struct {
	facts         []string
	deletionFacts []string
}

func (s *stubExtractor) ExtractFacts(context.Context, string) ([]string, error) {
	return s.facts, nil
}

func (s *stubExtractor) ExtractDeletionFacts(context.Context, string) ([]string, error) {
	return s.deletionFacts, nil
}

func newMemoryService(t *testing.T, emb *stubEmbedder, ext *stubExtractor) *MemoryService {
	t.Helper()
	log, err := sqlitelog.New(filepath.Join(t.TempDir(), "mnemo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	idx, err := chromemidx.New("", "test_memories")
	require.NoError(t, err)

	coord := memory.New(log, idx, zerolog.Nop())
	return NewMemoryService(coord, emb, ext, 5, zerolog.Nop())
}

func TestAddFromMessage(t *testing.T) {
	ctx := context.Background()
	emb := &stubEmbedder{vectors: map[string][]float32{
		"User uses Shram":  {1, 0, 0},
		"User uses Magnet": {0, 1, 0},
	}}
	ext := &stubExtractor{facts: []string{"User uses Shram", "User uses Magnet"}}
	svc := newMemoryService(t, emb, ext)

	res, err := svc.AddFromMessage(ctx, "user-1", "I use Shram and Magnet", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"User uses Shram", "User uses Magnet"}, res.Facts)
	require.Len(t, res.Memories, 2)

	found, err := svc.Search(ctx, "user-1", "User uses Shram", 5)
	require.NoError(t, err)
	require.NotEmpty(t, found)
	assert.Equal(t, "User uses Shram", found[0].Content)
}

func TestAddFromMessageNoFacts(t *testing.T) {
	svc := newMemoryService(t, &stubEmbedder{}, &stubExtractor{facts: []string{}})

	res, err := svc.AddFromMessage(context.Background(), "user-1", "hmm", nil)
	require.NoError(t, err)
	assert.Empty(t, res.Facts)
	assert.Empty(t, res.Memories)
}

func TestDeleteFromMessage(t *testing.T) {
	ctx := context.Background()
	emb := &stubEmbedder{vectors: map[string][]float32{
		"User uses Shram":  {1, 0, 0},
		"User uses Magnet": {0, 1, 0},
	}}
	ext := &stubExtractor{
		facts:         []string{"User uses Shram", "User uses Magnet"},
		deletionFacts: []string{"User uses Magnet"},
	}
	svc := newMemoryService(t, emb, ext)

	_, err := svc.AddFromMessage(ctx, "user-1", "I use Shram and Magnet", nil)
	require.NoError(t, err)

	res, err := svc.DeleteFromMessage(ctx, "user-1", "I don't use Magnet anymore")
	require.NoError(t, err)
	assert.Equal(t, 1, res.DeletedCount)

	left, err := svc.List(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "User uses Shram", left[0].Content)
}

func TestDeleteFromMessageNothingStored(t *testing.T) {
	ext := &stubExtractor{deletionFacts: []string{"User uses Magnet"}}
	svc := newMemoryService(t, &stubEmbedder{}, ext)

	res, err := svc.DeleteFromMessage(context.Background(), "user-1", "I don't use Magnet anymore")
	require.NoError(t, err)
	assert.Equal(t, 0, res.DeletedCount)
}

func TestRememberAndForget(t *testing.T) {
	ctx := context.Background()
	emb := &stubEmbedder{vectors: map[string][]float32{
		"User drinks tea": {1, 0, 0},
	}}
	svc := newMemoryService(t, emb, &stubExtractor{})

	m, err := svc.Remember(ctx, "user-1", "User drinks tea", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)

	ok, err := svc.Forget(ctx, "user-1", "User drinks tea")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Forget(ctx, "user-1", "User drinks tea")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestContextFormatting(t *testing.T) {
	ctx := context.Background()
	emb := &stubEmbedder{vectors: map[string][]float32{
		"User drinks tea": {1, 0, 0},
	}}
	svc := newMemoryService(t, emb, &stubExtractor{})

	out, err := svc.Context(ctx, "user-1", "what do I drink", 5)
	require.NoError(t, err)
	assert.Equal(t, "No relevant memories found.", out)

	_, err = svc.Remember(ctx, "user-1", "User drinks tea", nil)
	require.NoError(t, err)

	out, err = svc.Context(ctx, "user-1", "User drinks tea", 5)
	require.NoError(t, err)
	assert.Contains(t, out, "- User drinks tea (added: ")
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	emb := &stubEmbedder{vectors: map[string][]float32{
		"User drinks tea":    {1, 0, 0},
		"User drinks coffee": {0, 1, 0},
	}}
	svc := newMemoryService(t, emb, &stubExtractor{})

	_, err := svc.Remember(ctx, "user-1", "User drinks tea", nil)
	require.NoError(t, err)
	_, err = svc.Remember(ctx, "user-1", "User drinks coffee", nil)
	require.NoError(t, err)
	ok, err := svc.Forget(ctx, "user-1", "User drinks coffee")
	require.NoError(t, err)
	require.True(t, ok)

	sum, err := svc.Summary(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", sum.UserID)
	assert.Equal(t, 2, sum.Stats.Total)
	assert.Equal(t, 1, sum.Stats.Active)
	assert.Equal(t, 1, sum.Stats.Deleted)
	require.Len(t, sum.RecentMemories, 1)
	assert.Equal(t, "User drinks tea", sum.RecentMemories[0].Content)
}
