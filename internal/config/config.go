package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the configuration for the memory service.
// Environment variables are parsed from the MNEMO_ prefix,
// e.g. MNEMO_HTTP_PORT, MNEMO_DB_DRIVER.
type Config struct {
	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Metadata log driver: sqlite | postgres
	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"mnemo.db"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// Vector index driver: chromem | weaviate
	VectorStore string `envconfig:"VECTOR_STORE" default:"chromem"`
	ChromemPath string `envconfig:"CHROMEM_PATH" default:"mnemo_vectors"`
	WeaviateURL string `envconfig:"WEAVIATE_URL" default:"localhost:8081"`

	// Collection/class holding all memory vectors.
	Collection    string `envconfig:"COLLECTION" default:"user_memories"`
	WeaviateClass string `envconfig:"WEAVIATE_CLASS" default:"UserMemory"`

	// Embedding / extraction configuration
	EmbedProvider string `envconfig:"EMBED_PROVIDER" default:"openai"`
	EmbedModel    string `envconfig:"EMBED_MODEL" default:"text-embedding-3-small"`
	ExtractModel  string `envconfig:"EXTRACT_MODEL" default:"gpt-3.5-turbo"`
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY" default:""`
	OllamaURL     string `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`

	// Retrieval defaults
	RetrieveCount int `envconfig:"RETRIEVE_COUNT" default:"5"`

	// DeleteMaxDistance caps the cosine distance a delete-by-content match may
	// have before it is discarded. Zero or negative disables the cutoff, which
	// is the default: the single nearest active memory is always deleted.
	DeleteMaxDistance float32 `envconfig:"DELETE_MAX_DISTANCE" default:"0"`

	// Health / bootstrap cadence
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"2"`
	BootstrapTimeoutSeconds   int `envconfig:"BOOTSTRAP_TIMEOUT_SECONDS" default:"30"`
}

// ResolveDefaults validates driver selections and their required settings.
func (c *Config) ResolveDefaults() error {
	switch c.DBDriver {
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("MNEMO_SQLITE_PATH is required when DB_DRIVER=sqlite")
		}
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("MNEMO_POSTGRES_DSN is required when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}

	switch c.VectorStore {
	case "chromem":
	case "weaviate":
		if c.WeaviateURL == "" {
			return fmt.Errorf("MNEMO_WEAVIATE_URL is required when VECTOR_STORE=weaviate")
		}
	default:
		return fmt.Errorf("unsupported VECTOR_STORE: %s", c.VectorStore)
	}

	switch c.EmbedProvider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("unsupported EMBED_PROVIDER: %s", c.EmbedProvider)
	}

	if c.RetrieveCount <= 0 {
		c.RetrieveCount = 5
	}
	return nil
}

// New creates a new Config by parsing MNEMO_-prefixed environment variables.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("MNEMO", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewForTesting creates a config suitable for unit tests: embedded drivers,
// no external services.
func NewForTesting() *Config {
	return &Config{
		HTTPPort:                  8080,
		DBDriver:                  "sqlite",
		SQLitePath:                "test.db",
		VectorStore:               "chromem",
		Collection:                "user_memories",
		WeaviateClass:             "UserMemory",
		EmbedProvider:             "openai",
		EmbedModel:                "text-embedding-3-small",
		ExtractModel:              "gpt-3.5-turbo",
		RetrieveCount:             5,
		HealthIntervalSeconds:     30,
		HealthProbeTimeoutSeconds: 2,
		BootstrapTimeoutSeconds:   30,
	}
}

// GetHTTPAddr returns the HTTP server address.
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
