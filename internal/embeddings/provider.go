// Package embeddings abstracts the text-to-vector providers the service
// can run against.
package embeddings

import "context"

// Provider turns text into dense vectors. All vectors from one provider
// instance have the same dimensionality.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
