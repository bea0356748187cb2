package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/philippgille/chromem-go"
)

// chromemProvider is the embedded, in-process default Provider backed by
// chromem-go. Unlike the qdrant/chroma/pinecone providers it needs no
// network round-trip, making it the default for manage_archival_memory's
// semantic search when no external vector database is configured.
//
// Vectors are always supplied by the caller (entity.MemoryBlock.Embedding,
// computed via an embeddings.Provider), so every collection is created
// with a no-op embedding function and documents are queried by embedding,
// never by re-embedding text inside chromem-go itself.
type chromemProvider struct {
	mu          sync.Mutex
	db          *chromem.DB
	collections map[string]*chromem.Collection
}

// NewChromemProvider creates the embedded default Provider. cfg.Type is
// expected to be "chromem"; other fields are unused since chromem-go runs
// in-process.
func NewChromemProvider(_ Config) (Provider, error) {
	return &chromemProvider{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
	}, nil
}

func noopEmbed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("vectorstore: chromem provider requires precomputed embeddings")
}

func (p *chromemProvider) collection(name string) (*chromem.Collection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.collections[name]; ok {
		return c, nil
	}
	c, err := p.db.CreateCollection(name, nil, noopEmbed)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: create chromem collection %q: %w", name, err)
	}
	p.collections[name] = c
	return c, nil
}

func (p *chromemProvider) Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]interface{}) error {
	c, err := p.collection(collection)
	if err != nil {
		return err
	}
	content, _ := metadata["content"].(string)
	strMeta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		if s, ok := v.(string); ok {
			strMeta[k] = s
		}
	}
	return c.AddDocument(ctx, chromem.Document{
		ID:        id,
		Embedding: vector,
		Metadata:  strMeta,
		Content:   content,
	})
}

func (p *chromemProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]SearchResult, error) {
	c, err := p.collection(collection)
	if err != nil {
		return nil, err
	}
	results, err := c.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: chromem query: %w", err)
	}
	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		metadata := make(map[string]interface{}, len(r.Metadata))
		for k, v := range r.Metadata {
			metadata[k] = v
		}
		out = append(out, SearchResult{
			ID:       r.ID,
			Score:    r.Similarity,
			Content:  r.Content,
			Metadata: metadata,
		})
	}
	return out, nil
}

func (p *chromemProvider) Delete(ctx context.Context, collection string, id string) error {
	c, err := p.collection(collection)
	if err != nil {
		return err
	}
	return c.Delete(ctx, nil, nil, id)
}

func (p *chromemProvider) CreateCollection(ctx context.Context, collection string, vectorSize uint64) error {
	_, err := p.collection(collection)
	return err
}

func (p *chromemProvider) DeleteCollection(ctx context.Context, collection string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.collections, collection)
	return p.db.DeleteCollection(collection)
}

func (p *chromemProvider) Close() error {
	return nil
}
