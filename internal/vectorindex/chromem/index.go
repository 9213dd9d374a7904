// Package chromem implements vectorindex.Index on chromem-go, an embedded
// pure-Go vector database. No external process is required, which makes it
// the default backend for local runs and tests.
package chromem

import (
	"context"
	"encoding/json"
	"fmt"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/mnemolab/mnemo/internal/vectorindex"
)

type Index struct {
	db  *chromemgo.DB
	col *chromemgo.Collection
}

// New opens a persistent index at path. An empty path keeps everything
// in memory.
func New(path, collection string) (*Index, error) {
	var db *chromemgo.DB
	var err error
	if path == "" {
		db = chromemgo.NewDB()
	} else {
		db, err = chromemgo.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("open chromem db: %w", err)
		}
	}

	// Embeddings are always supplied by the caller, so no embedding func.
	col, err := db.GetOrCreateCollection(collection, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("open collection %q: %w", collection, err)
	}
	return &Index{db: db, col: col}, nil
}

// HealthPing implements health.HealthPinger. The database is in-process,
// so reachability reduces to the collection existing.
func (i *Index) HealthPing(ctx context.Context) error {
	if i.col == nil {
		return fmt.Errorf("chromem collection not initialized")
	}
	return nil
}

func (i *Index) Upsert(ctx context.Context, id string, vec []float32, content string, metadata map[string]interface{}) error {
	// AddDocument replaces any existing document with the same ID.
	return i.col.AddDocument(ctx, chromemgo.Document{
		ID:        id,
		Content:   content,
		Embedding: vec,
		Metadata:  flattenMetadata(metadata),
	})
}

// flattenMetadata converts the opaque mapping to chromem's string-valued
// form. Non-string values are stored as JSON.
func flattenMetadata(metadata map[string]interface{}) map[string]string {
	if len(metadata) == 0 {
		return nil
	}
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		if b, err := json.Marshal(v); err == nil {
			out[k] = string(b)
		}
	}
	return out
}

func (i *Index) Remove(ctx context.Context, id string) error {
	// Deleting an unknown ID is a no-op in chromem.
	return i.col.Delete(ctx, nil, nil, id)
}

func (i *Index) Search(ctx context.Context, vec []float32, topN int, candidateIDs []string) ([]vectorindex.Hit, error) {
	if topN <= 0 {
		return nil, nil
	}
	if candidateIDs != nil && len(candidateIDs) == 0 {
		return nil, nil
	}

	total := i.col.Count()
	if total == 0 {
		return nil, nil
	}

	// chromem has no ID-set filter, so rank the whole collection and keep
	// only the candidates. Collections here are per-deployment small, so
	// the full ranking is acceptable.
	n := topN
	if candidateIDs != nil || n > total {
		n = total
	}

	results, err := i.col.QueryEmbedding(ctx, vec, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	var allowed map[string]struct{}
	if candidateIDs != nil {
		allowed = make(map[string]struct{}, len(candidateIDs))
		for _, id := range candidateIDs {
			allowed[id] = struct{}{}
		}
	}

	hits := make([]vectorindex.Hit, 0, topN)
	for _, r := range results {
		if allowed != nil {
			if _, ok := allowed[r.ID]; !ok {
				continue
			}
		}
		hits = append(hits, vectorindex.Hit{ID: r.ID, Distance: 1 - r.Similarity})
		if len(hits) == topN {
			break
		}
	}
	return hits, nil
}

func (i *Index) Count(ctx context.Context) (int, error) {
	return i.col.Count(), nil
}

var _ vectorindex.Index = (*Index)(nil)
