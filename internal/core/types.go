package core

import "time"

// Passage is a bounded slice of a transcript, the unit of retrieval.
// Identity for traceability is (VideoID, Index); the stored primary key is
// generated separately so a re-chunk with different parameters never collides.
type Passage struct {
	Text           string `json:"text"`
	Index          int    `json:"index"`
	VideoID        string `json:"video_id"`
	EmbeddingModel string `json:"embedding_model"`
	Language       string `json:"language,omitempty"`
}

// EmbeddingRecord pairs a passage with its vector under a unique key.
type EmbeddingRecord struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector"`
	Passage Passage   `json:"passage"`
}

// RetrievedResult is a read-only projection of a search hit. It is never
// written back to the store.
type RetrievedResult struct {
	Score      float32 `json:"score"`
	Text       string  `json:"text"`
	VideoID    string  `json:"video_id"`
	ChunkIndex int     `json:"chunk_index"`
}

// Conversation turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationTurn is one message in an append-only conversation.
type ConversationTurn struct {
	Role      string    `json:"role" bson:"role"`
	Content   string    `json:"content" bson:"content"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// TranscriptSegment is one timed caption line as returned by a transcript
// source. Retrieval only consumes Text; timing is kept for callers that
// need it.
type TranscriptSegment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}
