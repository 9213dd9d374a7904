// Package vectorindex defines the embedding index the coordinator searches.
package vectorindex

import "context"

// Hit is a single nearest-neighbour result. Distance is cosine distance
// (1 - cosine similarity): 0 is identical, 2 is opposite.
type Hit struct {
	ID       string
	Distance float32
}

// Index stores one vector per memory ID and answers nearest-neighbour
// queries over an optional candidate set.
//
// Search treats candidateIDs three ways: nil means search everything,
// a non-nil empty slice means the caller has no live candidates and the
// result is empty, and a non-empty slice restricts ranking to those IDs.
type Index interface {
	// Upsert stores vec under id, replacing any existing vector. Content
	// and metadata are stored alongside the vector but never interpreted.
	Upsert(ctx context.Context, id string, vec []float32, content string, metadata map[string]interface{}) error

	// Remove deletes the vector for id. Unknown IDs are a no-op.
	Remove(ctx context.Context, id string) error

	// Search returns up to topN hits ordered by ascending distance.
	Search(ctx context.Context, vec []float32, topN int, candidateIDs []string) ([]Hit, error)

	// Count returns the total number of stored vectors, including any
	// entries whose metadata rows are already tombstoned.
	Count(ctx context.Context) (int, error)
}
