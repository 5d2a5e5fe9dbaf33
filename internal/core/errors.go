package core

import "errors"

// Failure kinds surfaced by the pipeline. Layers wrap these with %w so
// callers can classify with errors.Is while keeping the underlying detail.
var (
	// ErrEmbeddingUnavailable means the embedding model could not be
	// reached or errored. Never substituted with zero vectors.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrStoreWrite means the vector store rejected a write batch.
	ErrStoreWrite = errors.New("vector store write failed")

	// ErrStoreRead means a count or search against the store failed.
	ErrStoreRead = errors.New("vector store read failed")

	// ErrTranscriptUnavailable means no transcript could be fetched in
	// any of the candidate languages.
	ErrTranscriptUnavailable = errors.New("transcript unavailable")

	// ErrGeneration means the completion capability failed. The answer
	// synthesizer converts this into a user-safe fallback; it only
	// escapes through Completer implementations directly.
	ErrGeneration = errors.New("generation failed")

	// ErrDimensionMismatch means a record's vector length does not match
	// the collection dimensionality.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
