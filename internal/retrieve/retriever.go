package retrieve

import (
	"context"
	"fmt"

	"github.com/dperrin/vidrag/internal/core"
	"github.com/dperrin/vidrag/internal/logger"
	"github.com/dperrin/vidrag/internal/vectorstore"
)

// Retriever embeds a question and runs a filtered similarity search over one
// collection. The embedder must be the same configuration used at ingestion
// time; its model name is added to every filter so vectors from a different
// embedding space can never surface in the ranking.
type Retriever struct {
	embedder   core.Embedder
	store      core.VectorStore
	collection string
}

// New creates a Retriever over the given collection.
func New(embedder core.Embedder, store core.VectorStore, collection string) *Retriever {
	return &Retriever{embedder: embedder, store: store, collection: collection}
}

// Retrieve returns the topK passages most similar to query, restricted to
// videoID when non-empty and to any extraFilters. An empty result is a valid
// outcome, not an error: it means no relevant context exists and callers
// should fall back accordingly.
func (r *Retriever) Retrieve(ctx context.Context, query, videoID string, topK int, extraFilters map[string]string) ([]core.RetrievedResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("top-k must be positive, got %d", topK)
	}

	vector, err := r.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	filters := map[string]string{
		vectorstore.FieldEmbeddingModel: r.embedder.Model(),
	}
	if videoID != "" {
		filters[vectorstore.FieldVideoID] = videoID
	}
	for k, v := range extraFilters {
		filters[k] = v
	}

	results, err := r.store.Search(ctx, r.collection, vector, filters, topK)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	logger.Debug("Retrieved %d passages for query (video=%q, top_k=%d)", len(results), videoID, topK)
	return results, nil
}
