package embeddings

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiConfig configures a Gemini-backed Provider.
type GeminiConfig struct {
	APIKey string
	// Model is the embedding model name (e.g. "gemini-embedding-001").
	Model string
	// Dimensions is the requested output vector length. Zero uses the
	// model's default.
	Dimensions int
}

// Gemini implements Provider against Google's Gemini embedding API, the
// way model/anthropic wires one illustrative chat adapter: it is a real,
// working client, not a stub, but core code never imports it directly.
type Gemini struct {
	client *genai.Client
	model  string
	dims   int
}

// NewGemini constructs a Gemini provider using the standard
// genai.NewClient setup shape.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embeddings: gemini requires an API key")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-embedding-001"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("embeddings: create gemini client: %w", err)
	}

	return &Gemini{client: client, model: model, dims: cfg.Dimensions}, nil
}

func (g *Gemini) ModelID() string { return g.model }
func (g *Gemini) Dimensions() int { return g.dims }

func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (g *Gemini) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.Text(t)...)
	}

	var cfg *genai.EmbedContentConfig
	if g.dims > 0 {
		dims := int32(g.dims)
		cfg = &genai.EmbedContentConfig{OutputDimensionality: &dims}
	}

	resp, err := g.client.Models.EmbedContent(ctx, g.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("embeddings: gemini embed content: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embeddings: gemini returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}
