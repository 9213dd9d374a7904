package config

import (
	"strings"
	"testing"
)

func TestResolveDefaults_DriverValidation(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid sqlite+chromem", func(c *Config) {}, ""},
		{"unknown db driver", func(c *Config) { c.DBDriver = "mysql" }, "unsupported DB_DRIVER"},
		{"postgres without dsn", func(c *Config) { c.DBDriver = "postgres" }, "POSTGRES_DSN is required"},
		{"postgres with dsn", func(c *Config) {
			c.DBDriver = "postgres"
			c.PostgresDSN = "postgres://localhost/mnemo"
		}, ""},
		{"unknown vector store", func(c *Config) { c.VectorStore = "pinecone" }, "unsupported VECTOR_STORE"},
		{"weaviate without url", func(c *Config) {
			c.VectorStore = "weaviate"
			c.WeaviateURL = ""
		}, "WEAVIATE_URL is required"},
		{"unknown embed provider", func(c *Config) { c.EmbedProvider = "cohere" }, "unsupported EMBED_PROVIDER"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewForTesting()
			tc.mutate(cfg)
			err := cfg.ResolveDefaults()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestResolveDefaults_RetrieveCountFallback(t *testing.T) {
	cfg := NewForTesting()
	cfg.RetrieveCount = 0
	if err := cfg.ResolveDefaults(); err != nil {
		t.Fatalf("ResolveDefaults: %v", err)
	}
	if cfg.RetrieveCount != 5 {
		t.Fatalf("expected retrieve count fallback to 5, got %d", cfg.RetrieveCount)
	}
}
