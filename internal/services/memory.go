// Package services orchestrates message-level memory operations: fact
// extraction and embedding happen here, above the coordinator, which only
// ever sees pre-computed facts and vectors.
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mnemolab/mnemo/internal/embeddings"
	"github.com/mnemolab/mnemo/internal/extractor"
	"github.com/mnemolab/mnemo/internal/memory"
	"github.com/mnemolab/mnemo/internal/model"
)

// AddResult reports what a message contributed to the memory store.
type AddResult struct {
	Facts    []string        `json:"facts"`
	Memories []*model.Memory `json:"memories"`
}

// DeleteResult reports which facts a message retracted.
type DeleteResult struct {
	DeletionFacts []string `json:"deletionFacts"`
	DeletedCount  int      `json:"deletedCount"`
}

// Summary bundles a user's stats with their most recent memories.
type Summary struct {
	UserID         string             `json:"userId"`
	Stats          *model.MemoryStats `json:"stats"`
	RecentMemories []*model.Memory    `json:"recentMemories"`
}

const summaryRecentLimit = 10

// MemoryService is the message-level API over the coordinator.
type MemoryService struct {
	coord     *memory.Service
	embedder  embeddings.Provider
	extractor extractor.Extractor
	logger    zerolog.Logger

	// defaultTopN applies when a caller passes n <= 0.
	defaultTopN int
}

func NewMemoryService(coord *memory.Service, embedder embeddings.Provider, ext extractor.Extractor, defaultTopN int, logger zerolog.Logger) *MemoryService {
	if defaultTopN <= 0 {
		defaultTopN = 5
	}
	return &MemoryService{
		coord:       coord,
		embedder:    embedder,
		extractor:   ext,
		logger:      logger,
		defaultTopN: defaultTopN,
	}
}

// AddFromMessage extracts atomic facts from the message and stores one
// memory per fact.
func (s *MemoryService) AddFromMessage(ctx context.Context, userID, message string, metadata map[string]interface{}) (*AddResult, error) {
	facts, err := s.extractor.ExtractFacts(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("extract facts: %w", err)
	}
	if len(facts) == 0 {
		s.logger.Warn().Str("userId", userID).Msg("no facts extracted from message")
		return &AddResult{Facts: []string{}, Memories: []*model.Memory{}}, nil
	}

	vecs, err := s.embedder.EmbedBatch(ctx, facts)
	if err != nil {
		return nil, fmt.Errorf("embed facts: %w", err)
	}

	added, err := s.coord.AddMany(ctx, userID, facts, vecs, metadata)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("userId", userID).Int("count", len(added)).Msg("memories added from message")
	return &AddResult{Facts: facts, Memories: added}, nil
}

// DeleteFromMessage extracts the facts the message retracts and deletes the
// nearest stored memory for each.
func (s *MemoryService) DeleteFromMessage(ctx context.Context, userID, message string) (*DeleteResult, error) {
	facts, err := s.extractor.ExtractDeletionFacts(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("extract deletion facts: %w", err)
	}
	if len(facts) == 0 {
		s.logger.Warn().Str("userId", userID).Msg("no deletion facts extracted from message")
		return &DeleteResult{DeletionFacts: []string{}}, nil
	}

	deleted := 0
	for _, fact := range facts {
		vec, err := s.embedder.Embed(ctx, fact)
		if err != nil {
			return nil, fmt.Errorf("embed deletion fact: %w", err)
		}
		ok, err := s.coord.DeleteByContent(ctx, userID, vec)
		if err != nil {
			return nil, err
		}
		if ok {
			deleted++
		}
	}

	s.logger.Info().Str("userId", userID).Int("deleted", deleted).Msg("memories deleted from message")
	return &DeleteResult{DeletionFacts: facts, DeletedCount: deleted}, nil
}

// Remember stores a single fact verbatim, bypassing extraction.
func (s *MemoryService) Remember(ctx context.Context, userID, fact string, metadata map[string]interface{}) (*model.Memory, error) {
	vec, err := s.embedder.Embed(ctx, fact)
	if err != nil {
		return nil, fmt.Errorf("embed fact: %w", err)
	}
	return s.coord.Add(ctx, userID, fact, vec, metadata)
}

// Forget deletes the memory nearest to fact, bypassing extraction.
func (s *MemoryService) Forget(ctx context.Context, userID, fact string) (bool, error) {
	vec, err := s.embedder.Embed(ctx, fact)
	if err != nil {
		return false, fmt.Errorf("embed fact: %w", err)
	}
	return s.coord.DeleteByContent(ctx, userID, vec)
}

// Search returns the n memories most similar to query.
func (s *MemoryService) Search(ctx context.Context, userID, query string, n int) ([]memory.ScoredMemory, error) {
	if n <= 0 {
		n = s.defaultTopN
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.coord.Retrieve(ctx, userID, vec, n)
}

// Context formats the memories relevant to query as a bullet list suitable
// for inclusion in an LLM prompt.
func (s *MemoryService) Context(ctx context.Context, userID, query string, n int) (string, error) {
	results, err := s.Search(ctx, userID, query, n)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No relevant memories found.", nil
	}

	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("- %s (added: %s)", r.Content, r.CreatedAt.Format("2006-01-02 15:04:05")))
	}
	return strings.Join(lines, "\n"), nil
}

// Summary returns the user's memory stats plus their most recent memories.
func (s *MemoryService) Summary(ctx context.Context, userID string) (*Summary, error) {
	stats, err := s.coord.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}
	recent, err := s.coord.List(ctx, userID, summaryRecentLimit)
	if err != nil {
		return nil, err
	}
	return &Summary{UserID: userID, Stats: stats, RecentMemories: recent}, nil
}

// Get fetches one memory by ID within the user's scope.
func (s *MemoryService) Get(ctx context.Context, userID, id string) (*model.Memory, error) {
	return s.coord.Get(ctx, userID, id)
}

// List returns the user's active memories, most recent first.
func (s *MemoryService) List(ctx context.Context, userID string, limit int) ([]*model.Memory, error) {
	return s.coord.List(ctx, userID, limit)
}
