package core

import "context"

// Embedder maps text into a fixed-dimensionality dense vector space. Both
// methods must run over the same loaded model so outputs are comparable.
type Embedder interface {
	// EmbedOne embeds a single text (typically a query).
	EmbedOne(ctx context.Context, text string) ([]float32, error)

	// EmbedMany embeds a batch of texts, output zipped to input order.
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension is the length of every vector this embedder produces.
	Dimension() int

	// Model is the identifier of the loaded model.
	Model() string
}

// VectorStore owns a named collection of embedding records and supports
// filtered nearest-neighbor search over them.
type VectorStore interface {
	// EnsureCollection creates the collection and its payload indexes if
	// absent. Safe to call repeatedly.
	EnsureCollection(ctx context.Context, name string, dim int) error

	// Upsert inserts or replaces records by primary key as one batch.
	Upsert(ctx context.Context, name string, records []EmbeddingRecord) error

	// HasSource reports whether at least one record for the video exists.
	HasSource(ctx context.Context, name, videoID string) (bool, error)

	// Search returns up to topK results ordered by descending similarity.
	// A non-empty filter map restricts hits to records matching every
	// entry. Score ties break in store-native order, which is not
	// deterministic across backends.
	Search(ctx context.Context, name string, vector []float32, filters map[string]string, topK int) ([]RetrievedResult, error)

	Close() error
}

// Completer is the opaque text-generation capability.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error)
}

// TranscriptSource fetches the ordered caption segments of a video.
type TranscriptSource interface {
	Fetch(ctx context.Context, videoID string, languages []string) ([]TranscriptSegment, string, error)
}

// ConversationStore persists conversations keyed by session id. The pipeline
// only appends; it never reads the store for retrieval.
type ConversationStore interface {
	Create(ctx context.Context, sessionID, videoID string, metadata map[string]string) error
	Append(ctx context.Context, sessionID string, turns []ConversationTurn) error
	Close(ctx context.Context) error
}
