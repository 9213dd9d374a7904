package factory

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mnemolab/mnemo/internal/config"
	"github.com/mnemolab/mnemo/internal/extractor"
)

// NewExtractor creates the fact extractor. Extraction always runs on
// OpenAI chat completions, regardless of the embedding provider.
func NewExtractor(cfg *config.Config, log zerolog.Logger) (extractor.Extractor, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("MNEMO_OPENAI_API_KEY is required for fact extraction")
	}
	return extractor.NewOpenAIExtractor(cfg.OpenAIAPIKey, cfg.ExtractModel, log), nil
}
