package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mnemolab/mnemo/internal/config"
	"github.com/mnemolab/mnemo/internal/vectorindex"
	idxchromem "github.com/mnemolab/mnemo/internal/vectorindex/chromem"
	idxweaviate "github.com/mnemolab/mnemo/internal/vectorindex/weaviate"
)

// NewVectorIndex returns the vector index selected by cfg.VectorStore.
// The weaviate schema bootstrap runs asynchronously so startup stays
// fast; the health gate holds the service until the index responds.
func NewVectorIndex(ctx context.Context, cfg *config.Config, log zerolog.Logger) (vectorindex.Index, error) {
	switch cfg.VectorStore {
	case "chromem":
		idx, err := idxchromem.New(cfg.ChromemPath, cfg.Collection)
		if err != nil {
			return nil, fmt.Errorf("open chromem index: %w", err)
		}
		log.Debug().Str("path", cfg.ChromemPath).Str("collection", cfg.Collection).Msg("chromem index ready")
		return idx, nil
	case "weaviate":
		idx, err := idxweaviate.New(cfg.WeaviateURL, cfg.WeaviateClass)
		if err != nil {
			return nil, fmt.Errorf("build weaviate client: %w", err)
		}
		go func() {
			bctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.BootstrapTimeoutSeconds)*time.Second)
			defer cancel()
			if err := idx.Bootstrap(bctx); err != nil {
				log.Warn().Err(err).Str("class", cfg.WeaviateClass).Msg("weaviate bootstrap failed")
			} else {
				log.Debug().Str("class", cfg.WeaviateClass).Msg("weaviate bootstrap completed")
			}
		}()
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown VECTOR_STORE: %s", cfg.VectorStore)
	}
}
