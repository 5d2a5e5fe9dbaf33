package embed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/dperrin/vidrag/internal/core"
)

// fakeEmbeddingServer answers OpenAI-style embeddings requests. Each input
// "t<N>" yields the vector [N, 0, 1] so callers can verify ordering.
func fakeEmbeddingServer(t *testing.T, dim int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		type item struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		resp := struct {
			Object string `json:"object"`
			Data   []item `json:"data"`
			Model  string `json:"model"`
		}{Object: "list", Model: req.Model}
		for i, text := range req.Input {
			n, _ := strconv.Atoi(strings.TrimPrefix(text, "t"))
			vec := make([]float32, dim)
			vec[0] = float32(n)
			vec[dim-1] = 1
			resp.Data = append(resp.Data, item{Object: "embedding", Embedding: vec, Index: i})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func newTestEmbedder(t *testing.T, baseURL string, dim int) *OpenAIEmbedder {
	t.Helper()
	e, err := NewOpenAIEmbedder(Config{
		BaseURL:     baseURL + "/v1",
		APIKey:      "test-key",
		Model:       "text-embedding-3-small",
		Dimension:   dim,
		MaxParallel: 3,
	})
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestEmbedOne(t *testing.T) {
	srv := fakeEmbeddingServer(t, 4)
	defer srv.Close()
	e := newTestEmbedder(t, srv.URL, 4)

	vec, err := e.EmbedOne(context.Background(), "t7")
	if err != nil {
		t.Fatalf("EmbedOne() error = %v", err)
	}
	if len(vec) != 4 {
		t.Fatalf("got %d dimensions, want 4", len(vec))
	}
	if vec[0] != 7 {
		t.Errorf("vec[0] = %v, want 7", vec[0])
	}
}

func TestEmbedManyPreservesOrderAcrossBatches(t *testing.T) {
	srv := fakeEmbeddingServer(t, 3)
	defer srv.Close()
	e := newTestEmbedder(t, srv.URL, 3)

	// More texts than one batch holds, so several parallel requests run.
	texts := make([]string, 150)
	for i := range texts {
		texts[i] = fmt.Sprintf("t%d", i)
	}
	vectors, err := e.EmbedMany(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedMany() error = %v", err)
	}
	if len(vectors) != len(texts) {
		t.Fatalf("got %d vectors, want %d", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if v[0] != float32(i) {
			t.Errorf("vector %d zipped out of order: got marker %v", i, v[0])
		}
	}
}

func TestEmbedManyEmptyInput(t *testing.T) {
	srv := fakeEmbeddingServer(t, 3)
	defer srv.Close()
	e := newTestEmbedder(t, srv.URL, 3)

	vectors, err := e.EmbedMany(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedMany(nil) error = %v", err)
	}
	if len(vectors) != 0 {
		t.Errorf("EmbedMany(nil) = %v, want empty", vectors)
	}
}

func TestEmbedDimensionMismatch(t *testing.T) {
	srv := fakeEmbeddingServer(t, 3)
	defer srv.Close()
	// Configured for 8 dimensions but the model serves 3.
	e := newTestEmbedder(t, srv.URL, 8)

	_, err := e.EmbedOne(context.Background(), "t1")
	if !errors.Is(err, core.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestEmbedServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusInternalServerError)
	}))
	defer srv.Close()
	e := newTestEmbedder(t, srv.URL, 3)

	_, err := e.EmbedOne(context.Background(), "t1")
	if !errors.Is(err, core.ErrEmbeddingUnavailable) {
		t.Errorf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}

func TestNewOpenAIEmbedderValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing key", cfg: Config{Model: "m", Dimension: 3}},
		{name: "missing model", cfg: Config{APIKey: "k", Dimension: 3}},
		{name: "bad dimension", cfg: Config{APIKey: "k", Model: "m"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewOpenAIEmbedder(tt.cfg); err == nil {
				t.Error("expected construction error")
			}
		})
	}
}
