// Package vectorstore provides the optional embedding-backed database
// providers a MemoryBlock's semantic recall falls back to when an
// embeddings.Provider is configured (see entity.MemoryBlock.Embedding).
package vectorstore

import (
	"context"
	"fmt"

	"github.com/patterncore/pattern/internal/registry"
)

// Provider is implemented by each supported vector database backend.
type Provider interface {
	Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]interface{}) error
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]SearchResult, error)
	Delete(ctx context.Context, collection string, id string) error
	CreateCollection(ctx context.Context, collection string, vectorSize uint64) error
	DeleteCollection(ctx context.Context, collection string) error
	Close() error
}

// SearchResult is one hit from a Provider.Search call.
type SearchResult struct {
	ID        string                 `json:"id"`
	Score     float32                `json:"score"`
	Content   string                 `json:"content"`
	Vector    []float32              `json:"vector,omitempty"`
	Metadata  map[string]interface{} `json:"metadata"`
	ModelName string                 `json:"model_name,omitempty"`
}

// Config is the minimal connection configuration shared by every backend;
// package config's top-level YAML carries this per named provider.
type Config struct {
	Type               string // "qdrant", "chroma", "pinecone"
	Host               string
	Port               int
	APIKey             string
	EnableTLS          *bool
	InsecureSkipVerify *bool
	CACertificate      string
}

// BoolPtr is a small helper for Config's optional bool fields.
func BoolPtr(b bool) *bool { return &b }

// Registry manages named Provider instances, built on the generic
// registry shared with the tool registry and the coordination pattern
// registry.
type Registry struct {
	*registry.BaseRegistry[Provider]
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[Provider]()}
}

// RegisterProvider registers a connected Provider instance under name.
func (r *Registry) RegisterProvider(name string, p Provider) error {
	if name == "" {
		return fmt.Errorf("vectorstore: provider name cannot be empty")
	}
	if p == nil {
		return fmt.Errorf("vectorstore: provider cannot be nil")
	}
	return r.Register(name, p)
}

// NewFromConfig dials the backend named by cfg.Type and registers it.
func (r *Registry) NewFromConfig(name string, cfg Config) (Provider, error) {
	if name == "" {
		return nil, fmt.Errorf("vectorstore: provider name cannot be empty")
	}

	var provider Provider
	var err error
	switch cfg.Type {
	case "qdrant":
		provider, err = NewQdrantProvider(cfg)
	case "chroma":
		provider, err = NewChromaProvider(cfg)
	case "pinecone":
		provider, err = NewPineconeProvider(cfg)
	case "chromem", "":
		provider, err = NewChromemProvider(cfg)
	default:
		return nil, fmt.Errorf("vectorstore: unsupported provider type: %s", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("vectorstore: create provider %q: %w", name, err)
	}
	if err := r.RegisterProvider(name, provider); err != nil {
		return nil, err
	}
	return provider, nil
}

// GetProvider retrieves a registered Provider by name.
func (r *Registry) GetProvider(name string) (Provider, error) {
	p, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("vectorstore: provider %q not found", name)
	}
	return p, nil
}
