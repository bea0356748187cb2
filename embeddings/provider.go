package embeddings

import "context"

// Provider produces vector embeddings from text. Implementations wrap a
// specific model API; core code depends only on this interface.
type Provider interface {
	// Embed converts a single text to a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple texts in one call, more efficient than
	// repeated Embed calls for providers that support batching.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// ModelID returns the model name in use (e.g. "gemini-embedding-001").
	ModelID() string

	// Dimensions returns the embedding vector length this provider produces.
	Dimensions() int
}

// Func adapts a Provider to the tool/builtin and datasource packages'
// narrower EmbedFunc signature, both of which depend only on a single-text
// embed call.
func Func(p Provider) func(ctx context.Context, text string) ([]float32, error) {
	if p == nil {
		return nil
	}
	return p.Embed
}
