package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/dperrin/vidrag/internal/core"
	"github.com/dperrin/vidrag/internal/logger"
)

// MemoryStore is an in-process VectorStore with real cosine scoring. It
// backs tests and offline runs where no Milvus deployment is reachable, and
// honors the same contract: idempotent collection creation, upsert by
// primary key, AND-combined equality filters.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	dim     int
	records map[string]core.EmbeddingRecord
	order   []string // insertion order, the store-native tie-break
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

func (s *MemoryStore) EnsureCollection(ctx context.Context, name string, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("%w: invalid dimension %d", core.ErrStoreWrite, dim)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.collections[name]; ok {
		if existing.dim != dim {
			return fmt.Errorf("%w: collection %s exists with dimension %d, requested %d",
				core.ErrDimensionMismatch, name, existing.dim, dim)
		}
		return nil
	}
	s.collections[name] = &memoryCollection{
		dim:     dim,
		records: make(map[string]core.EmbeddingRecord),
	}
	logger.Debug("Created in-memory collection %s (dim %d)", name, dim)
	return nil
}

func (s *MemoryStore) Upsert(ctx context.Context, name string, records []core.EmbeddingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.collections[name]
	if !ok {
		return fmt.Errorf("%w: collection %s does not exist", core.ErrStoreWrite, name)
	}
	// Validate the whole batch before applying any of it, so a bad record
	// never leaves a partial write behind.
	for _, r := range records {
		if len(r.Vector) != coll.dim {
			return fmt.Errorf("%w: record %s has %d dimensions, collection %s wants %d",
				core.ErrDimensionMismatch, r.ID, len(r.Vector), name, coll.dim)
		}
	}
	for _, r := range records {
		if _, exists := coll.records[r.ID]; !exists {
			coll.order = append(coll.order, r.ID)
		}
		coll.records[r.ID] = r
	}
	return nil
}

func (s *MemoryStore) HasSource(ctx context.Context, name, videoID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll, ok := s.collections[name]
	if !ok {
		return false, fmt.Errorf("%w: collection %s does not exist", core.ErrStoreRead, name)
	}
	for _, r := range coll.records {
		if r.Passage.VideoID == videoID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) Search(ctx context.Context, name string, vector []float32, filters map[string]string, topK int) ([]core.RetrievedResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top-k must be positive, got %d", core.ErrStoreRead, topK)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: collection %s does not exist", core.ErrStoreRead, name)
	}
	if len(vector) != coll.dim {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, collection %s wants %d",
			core.ErrDimensionMismatch, len(vector), name, coll.dim)
	}
	for field := range filters {
		if !filterableFields[field] {
			return nil, fmt.Errorf("%w: field %q is not filterable", core.ErrStoreRead, field)
		}
	}

	type scored struct {
		pos    int
		score  float32
		record core.EmbeddingRecord
	}
	var hits []scored
	for pos, id := range coll.order {
		r := coll.records[id]
		if !matchesFilters(r.Passage, filters) {
			continue
		}
		hits = append(hits, scored{pos: pos, score: cosineSimilarity(vector, r.Vector), record: r})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].pos < hits[j].pos
	})
	if topK < len(hits) {
		hits = hits[:topK]
	}

	results := make([]core.RetrievedResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, core.RetrievedResult{
			Score:      h.score,
			Text:       h.record.Passage.Text,
			VideoID:    h.record.Passage.VideoID,
			ChunkIndex: h.record.Passage.Index,
		})
	}
	return results, nil
}

func (s *MemoryStore) Close() error { return nil }

func matchesFilters(p core.Passage, filters map[string]string) bool {
	for field, want := range filters {
		var got string
		switch field {
		case FieldVideoID:
			got = p.VideoID
		case FieldEmbeddingModel:
			got = p.EmbeddingModel
		case FieldLanguage:
			got = p.Language
		}
		if got != want {
			return false
		}
	}
	return true
}

// cosineSimilarity returns a value in [-1, 1]; 1 means identical direction.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}
