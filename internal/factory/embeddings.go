package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mnemolab/mnemo/internal/config"
	"github.com/mnemolab/mnemo/internal/embeddings"
)

// NewEmbedder creates the embedding provider selected by cfg.EmbedProvider.
// A warmup embed runs in the background; startup does not block on it.
func NewEmbedder(ctx context.Context, cfg *config.Config, log zerolog.Logger) (embeddings.Provider, error) {
	var provider embeddings.Provider

	switch cfg.EmbedProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("MNEMO_OPENAI_API_KEY is required when EMBED_PROVIDER=openai")
		}
		provider = embeddings.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.EmbedModel)
	case "ollama":
		provider = embeddings.NewOllamaProvider(cfg.OllamaURL, cfg.EmbedModel)
	default:
		return nil, fmt.Errorf("unknown EMBED_PROVIDER: %s", cfg.EmbedProvider)
	}

	go func() {
		warmupCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.BootstrapTimeoutSeconds)*time.Second)
		defer cancel()

		if vec, err := provider.Embed(warmupCtx, "factory-warmup-check"); err != nil || len(vec) == 0 {
			log.Warn().Err(err).
				Str("provider", cfg.EmbedProvider).Str("model", cfg.EmbedModel).
				Msg("embedding provider warmup failed")
		} else {
			log.Debug().Str("provider", cfg.EmbedProvider).Str("model", cfg.EmbedModel).
				Msg("embedding provider warmup completed")
		}
	}()

	return provider, nil
}
