// Package gemini embeds text with the Gemini embedding models.
package gemini

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"google.golang.org/genai"

	"rolerag/internal/domain"
)

var _ domain.Embedder = (*Embedder)(nil)

type Config struct {
	APIKeyEnv string
	Model     string
}

type Embedder struct {
	client    *genai.Client
	model     string
	dimension atomic.Int64
}

func New(ctx context.Context, cfg Config) (*Embedder, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-embedding-001"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Embedder{client: client, model: cfg.Model}, nil
}

func (e *Embedder) Name() string { return "gemini:" + e.model }

func (e *Embedder) Prepare([]string) error { return nil }

func (e *Embedder) Dimension() int { return int(e.dimension.Load()) }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		TaskType: "SEMANTIC_SIMILARITY",
	})
	if err != nil {
		return nil, fmt.Errorf("GenAI embed failed: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	values := result.Embeddings[0].Values
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	e.dimension.CompareAndSwap(0, int64(len(out)))
	return out, nil
}
