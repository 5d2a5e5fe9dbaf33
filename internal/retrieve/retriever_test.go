package retrieve

import (
	"context"
	"errors"
	"testing"

	"github.com/dperrin/vidrag/internal/core"
	"github.com/dperrin/vidrag/internal/vectorstore"
)

type fixedEmbedder struct {
	vector []float32
	model  string
	err    error
}

func (f *fixedEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	return f.vector, f.err
}

func (f *fixedEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, f.err
}

func (f *fixedEmbedder) Dimension() int { return len(f.vector) }
func (f *fixedEmbedder) Model() string  { return f.model }

func seedStore(t *testing.T) *vectorstore.MemoryStore {
	t.Helper()
	s := vectorstore.NewMemoryStore()
	ctx := context.Background()
	if err := s.EnsureCollection(ctx, "transcripts", 3); err != nil {
		t.Fatal(err)
	}
	err := s.Upsert(ctx, "transcripts", []core.EmbeddingRecord{
		{
			ID:     "x-0",
			Vector: []float32{1, 0, 0},
			Passage: core.Passage{
				Text:           "the speaker introduces the topic",
				Index:          0,
				VideoID:        "X",
				EmbeddingModel: "model-a",
				Language:       "en",
			},
		},
		{
			ID:     "x-1",
			Vector: []float32{0.8, 0.2, 0},
			Passage: core.Passage{
				Text:           "a deeper dive into the topic",
				Index:          1,
				VideoID:        "X",
				EmbeddingModel: "model-a",
				Language:       "en",
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestRetrieveFiltersByVideo(t *testing.T) {
	store := seedStore(t)
	emb := &fixedEmbedder{vector: []float32{1, 0, 0}, model: "model-a"}
	r := New(emb, store, "transcripts")

	results, err := r.Retrieve(context.Background(), "What is discussed?", "X", 5, nil)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ChunkIndex != 0 {
		t.Errorf("top hit chunk index = %d, want 0", results[0].ChunkIndex)
	}
}

func TestRetrieveOtherVideoReturnsEmpty(t *testing.T) {
	// Passages exist only for video X; filtering by Y must yield zero
	// results and no error.
	store := seedStore(t)
	emb := &fixedEmbedder{vector: []float32{1, 0, 0}, model: "model-a"}
	r := New(emb, store, "transcripts")

	results, err := r.Retrieve(context.Background(), "What is discussed?", "Y", 5, nil)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

func TestRetrieveFiltersByEmbeddingModel(t *testing.T) {
	// The retriever always pins the embedding model, so a store holding
	// only model-a vectors yields nothing for a model-b query.
	store := seedStore(t)
	emb := &fixedEmbedder{vector: []float32{1, 0, 0}, model: "model-b"}
	r := New(emb, store, "transcripts")

	results, err := r.Retrieve(context.Background(), "What is discussed?", "X", 5, nil)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results across embedding spaces, want 0", len(results))
	}
}

func TestRetrieveExtraFilters(t *testing.T) {
	store := seedStore(t)
	emb := &fixedEmbedder{vector: []float32{1, 0, 0}, model: "model-a"}
	r := New(emb, store, "transcripts")

	results, err := r.Retrieve(context.Background(), "q", "X", 5,
		map[string]string{vectorstore.FieldLanguage: "fr"})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("language filter not applied, got %d results", len(results))
	}
}

func TestRetrievePropagatesEmbeddingFailure(t *testing.T) {
	store := seedStore(t)
	emb := &fixedEmbedder{vector: []float32{1, 0, 0}, model: "model-a", err: core.ErrEmbeddingUnavailable}
	r := New(emb, store, "transcripts")

	_, err := r.Retrieve(context.Background(), "q", "X", 5, nil)
	if !errors.Is(err, core.ErrEmbeddingUnavailable) {
		t.Errorf("got %v, want ErrEmbeddingUnavailable", err)
	}
}

func TestRetrieveRejectsNonPositiveTopK(t *testing.T) {
	store := seedStore(t)
	emb := &fixedEmbedder{vector: []float32{1, 0, 0}, model: "model-a"}
	r := New(emb, store, "transcripts")

	if _, err := r.Retrieve(context.Background(), "q", "X", 0, nil); err == nil {
		t.Error("expected error for top-k = 0")
	}
}
