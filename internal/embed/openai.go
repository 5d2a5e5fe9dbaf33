package embed

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/dperrin/vidrag/internal/core"
	"github.com/dperrin/vidrag/internal/logger"
)

// batchSize is the number of texts sent per embeddings request.
const batchSize = 64

// OpenAIEmbedder generates embeddings through an OpenAI-compatible
// embeddings endpoint. The client is constructed once and reused for the
// process lifetime; concurrent embedding calls are safe.
type OpenAIEmbedder struct {
	client      *openai.Client
	model       string
	dim         int
	maxParallel int
}

// Config configures the embedder.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	// Dimension is the expected vector length for Model. Responses with a
	// different length are rejected rather than truncated or padded.
	Dimension int
	// MaxParallel caps concurrent batch requests during EmbedMany.
	MaxParallel int
}

// NewOpenAIEmbedder creates an embedder for the configured model.
func NewOpenAIEmbedder(cfg Config) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: missing embedding API key", core.ErrEmbeddingUnavailable)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: missing embedding model name", core.ErrEmbeddingUnavailable)
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("%w: invalid embedding dimension %d", core.ErrEmbeddingUnavailable, cfg.Dimension)
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	maxParallel := cfg.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 8
	}
	return &OpenAIEmbedder{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		dim:         cfg.Dimension,
		maxParallel: maxParallel,
	}, nil
}

// Model returns the configured model identifier.
func (e *OpenAIEmbedder) Model() string { return e.model }

// Dimension returns the vector length produced by the configured model.
func (e *OpenAIEmbedder) Dimension() int { return e.dim }

// EmbedOne embeds a single text.
func (e *OpenAIEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedMany embeds texts in batches with bounded parallelism. The result is
// zipped back to input order; any batch failure fails the whole call.
func (e *OpenAIEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	type batch struct {
		start int
		texts []string
	}
	var batches []batch
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, batch{start: i, texts: texts[i:end]})
	}

	results := make([][]float32, len(texts))
	errCh := make(chan error, len(batches))
	sem := make(chan struct{}, e.maxParallel)

	for _, b := range batches {
		sem <- struct{}{}
		go func(b batch) {
			defer func() { <-sem }()
			vectors, err := e.embedBatch(ctx, b.texts)
			if err != nil {
				errCh <- err
				return
			}
			for j, v := range vectors {
				results[b.start+j] = v
			}
			errCh <- nil
		}(b)
	}

	var firstErr error
	for range batches {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		logger.Error("Embedding request failed for model %s: %v", e.model, err)
		return nil, fmt.Errorf("%w: %v", core.ErrEmbeddingUnavailable, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", core.ErrEmbeddingUnavailable, len(resp.Data), len(texts))
	}

	// Responses are ordered by index, but zip by the reported index anyway.
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", core.ErrEmbeddingUnavailable, d.Index)
		}
		if len(d.Embedding) != e.dim {
			return nil, fmt.Errorf("%w: model %s returned %d dimensions, expected %d",
				core.ErrDimensionMismatch, e.model, len(d.Embedding), e.dim)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("%w: missing embedding for input %d", core.ErrEmbeddingUnavailable, i)
		}
	}
	return vectors, nil
}
