// Package memory holds the coordinator that keeps the metadata log and the
// vector index mutually consistent. It owns the write ordering rules:
// metadata before vector on add, soft-delete before hard removal on delete.
// Consistency comes from that ordering plus read-time filtering, never from
// a cross-store transaction.
package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mnemolab/mnemo/internal/metadatalog"
	"github.com/mnemolab/mnemo/internal/model"
	"github.com/mnemolab/mnemo/internal/vectorindex"
)

// ScoredMemory is a retrieval result: the stored memory plus its cosine
// distance from the query.
type ScoredMemory struct {
	*model.Memory
	Distance float32 `json:"distance"`
}

// Service coordinates the two stores. Embeddings arrive pre-computed, so
// the coordinator has no dependency on any model provider.
type Service struct {
	log    metadatalog.Log
	index  vectorindex.Index
	logger zerolog.Logger

	// deleteMaxDistance, when positive, makes DeleteByContent treat a
	// nearest match farther than this as no match. Zero keeps the default
	// always-delete-nearest behavior.
	deleteMaxDistance float32
}

type Option func(*Service)

// WithDeleteMaxDistance sets the optional cutoff for delete-by-content.
func WithDeleteMaxDistance(d float32) Option {
	return func(s *Service) { s.deleteMaxDistance = d }
}

func New(log metadatalog.Log, index vectorindex.Index, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{log: log, index: index, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Add mints a new ID and writes the memory to both stores, metadata first.
// If the index write fails after the metadata write succeeded, the memory
// is durably recorded but not searchable; the returned error is a
// *model.PartialWriteError and retrying the index upsert with the same ID
// reconciles the stores.
func (s *Service) Add(ctx context.Context, userID, content string, embedding []float32, metadata map[string]interface{}) (*model.Memory, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID is required")
	}
	if content == "" {
		return nil, fmt.Errorf("content is required")
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("embedding is required")
	}

	m := &model.Memory{
		ID:       uuid.NewString(),
		UserID:   userID,
		Content:  content,
		Metadata: metadata,
	}

	stored, err := s.log.Append(ctx, m)
	if err != nil {
		if errors.Is(err, model.ErrDuplicateID) {
			// Unreachable with UUID minting; an occurrence means IDs are
			// being reused and must not be papered over with a retry.
			return nil, err
		}
		return nil, fmt.Errorf("append memory: %w: %w", model.ErrStoreUnavailable, err)
	}

	if err := s.index.Upsert(ctx, stored.ID, embedding, content, metadata); err != nil {
		s.logger.Error().Err(err).Str("memoryId", stored.ID).Str("userId", userID).Msg("index upsert failed after metadata append")
		return stored, &model.PartialWriteError{MemoryID: stored.ID, Step: model.StepIndexUpsert, Err: err}
	}

	s.logger.Debug().Str("memoryId", stored.ID).Str("userId", userID).Msg("memory added")
	return stored, nil
}

// AddMany adds one memory per content string. embeddings must be the same
// length as contents. On failure the memories added so far are returned
// alongside the error.
func (s *Service) AddMany(ctx context.Context, userID string, contents []string, embeddings [][]float32, metadata map[string]interface{}) ([]*model.Memory, error) {
	if len(contents) != len(embeddings) {
		return nil, fmt.Errorf("got %d contents but %d embeddings", len(contents), len(embeddings))
	}

	out := make([]*model.Memory, 0, len(contents))
	for i, content := range contents {
		m, err := s.Add(ctx, userID, content, embeddings[i], metadata)
		if err != nil {
			return out, fmt.Errorf("add memory %d of %d: %w", i+1, len(contents), err)
		}
		out = append(out, m)
	}
	return out, nil
}

// Retrieve returns the topN active memories nearest to queryEmbedding,
// ascending by distance. Results are re-checked against the metadata log so
// a delete landing mid-query never surfaces a tombstoned memory.
func (s *Service) Retrieve(ctx context.Context, userID string, queryEmbedding []float32, topN int) ([]ScoredMemory, error) {
	activeIDs, err := s.log.ActiveIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("active ids: %w: %w", model.ErrStoreUnavailable, err)
	}
	if len(activeIDs) == 0 {
		// Brand-new user or everything deleted: skip the vector query.
		return nil, nil
	}

	hits, err := s.index.Search(ctx, queryEmbedding, topN, activeIDs)
	if err != nil {
		return nil, fmt.Errorf("index search: %w: %w", model.ErrStoreUnavailable, err)
	}

	out := make([]ScoredMemory, 0, len(hits))
	for _, h := range hits {
		m, err := s.log.GetByID(ctx, h.ID)
		if errors.Is(err, model.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("fetch hit %s: %w: %w", h.ID, model.ErrStoreUnavailable, err)
		}
		// Drop anything deleted since the candidate fetch, and anything
		// outside the requested user's scope.
		if m.IsDeleted || m.UserID != userID {
			continue
		}
		out = append(out, ScoredMemory{Memory: m, Distance: h.Distance})
	}
	return out, nil
}

// DeleteByContent soft-deletes the single active memory nearest to
// deletionEmbedding, then removes its vector. Returns true when a memory
// was deleted. A *model.PartialWriteError means the memory is already
// logically deleted but its vector removal needs a retry.
func (s *Service) DeleteByContent(ctx context.Context, userID string, deletionEmbedding []float32) (bool, error) {
	activeIDs, err := s.log.ActiveIDs(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("active ids: %w: %w", model.ErrStoreUnavailable, err)
	}
	if len(activeIDs) == 0 {
		return false, nil
	}

	hits, err := s.index.Search(ctx, deletionEmbedding, 1, activeIDs)
	if err != nil {
		return false, fmt.Errorf("index search: %w: %w", model.ErrStoreUnavailable, err)
	}
	if len(hits) == 0 {
		return false, nil
	}
	if s.deleteMaxDistance > 0 && hits[0].Distance > s.deleteMaxDistance {
		s.logger.Debug().Str("userId", userID).Float32("distance", hits[0].Distance).Float32("cutoff", s.deleteMaxDistance).Msg("nearest match beyond delete cutoff")
		return false, nil
	}

	id := hits[0].ID
	// Soft-delete must land before the vector removal: a crash in between
	// leaves the memory logically deleted, which retrieval already filters.
	if err := s.log.SoftDelete(ctx, id); err != nil {
		return false, fmt.Errorf("soft delete %s: %w: %w", id, model.ErrStoreUnavailable, err)
	}
	if err := s.index.Remove(ctx, id); err != nil {
		s.logger.Error().Err(err).Str("memoryId", id).Str("userId", userID).Msg("index remove failed after soft delete")
		return false, &model.PartialWriteError{MemoryID: id, Step: model.StepIndexRemove, Err: err}
	}

	s.logger.Debug().Str("memoryId", id).Str("userId", userID).Msg("memory deleted by content")
	return true, nil
}

// Get fetches a memory by ID within the user's scope.
func (s *Service) Get(ctx context.Context, userID, id string) (*model.Memory, error) {
	m, err := s.log.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.UserID != userID {
		return nil, fmt.Errorf("memory %s: %w", id, model.ErrNotFound)
	}
	return m, nil
}

// List returns the user's active memories, most recent first.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]*model.Memory, error) {
	return s.log.ListForUser(ctx, userID, limit)
}

// Stats returns counts over all of the user's memories, deleted included.
func (s *Service) Stats(ctx context.Context, userID string) (*model.MemoryStats, error) {
	return s.log.StatsForUser(ctx, userID)
}
