package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dperrin/vidrag/internal/answer"
	"github.com/dperrin/vidrag/internal/chunker"
	"github.com/dperrin/vidrag/internal/convo"
	"github.com/dperrin/vidrag/internal/core"
	"github.com/dperrin/vidrag/internal/logger"
	"github.com/dperrin/vidrag/internal/prompt"
	"github.com/dperrin/vidrag/internal/retrieve"
	"github.com/dperrin/vidrag/internal/youtube"
)

// Pipeline wires chunking, embedding, storage, retrieval and generation into
// the two top-level operations: ingesting a video and answering a question
// about it.
type Pipeline struct {
	splitter    *chunker.Splitter
	embedder    core.Embedder
	store       core.VectorStore
	retriever   *retrieve.Retriever
	builder     *prompt.Builder
	synthesizer *answer.Synthesizer
	convo       core.ConversationStore
	transcripts core.TranscriptSource

	collection      string
	topK            int
	languages       []string
	downloadsDir    string
	completionModel string
}

// Options carries the pipeline dependencies and tuning knobs.
type Options struct {
	Splitter    *chunker.Splitter
	Embedder    core.Embedder
	Store       core.VectorStore
	Builder     *prompt.Builder
	Synthesizer *answer.Synthesizer
	Convo       core.ConversationStore
	Transcripts core.TranscriptSource

	Collection      string
	TopK            int
	Languages       []string
	DownloadsDir    string
	CompletionModel string
}

// New validates the options and builds a pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Splitter == nil || opts.Embedder == nil || opts.Store == nil ||
		opts.Builder == nil || opts.Synthesizer == nil {
		return nil, fmt.Errorf("pipeline requires a splitter, embedder, store, builder and synthesizer")
	}
	if opts.Collection == "" {
		return nil, fmt.Errorf("pipeline requires a collection name")
	}
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.Convo == nil {
		opts.Convo = convo.Disabled{}
	}
	return &Pipeline{
		splitter:        opts.Splitter,
		embedder:        opts.Embedder,
		store:           opts.Store,
		retriever:       retrieve.New(opts.Embedder, opts.Store, opts.Collection),
		builder:         opts.Builder,
		synthesizer:     opts.Synthesizer,
		convo:           opts.Convo,
		transcripts:     opts.Transcripts,
		collection:      opts.Collection,
		topK:            opts.TopK,
		languages:       opts.Languages,
		downloadsDir:    opts.DownloadsDir,
		completionModel: opts.CompletionModel,
	}, nil
}

// Ingest chunks and embeds a transcript and upserts it into the vector
// store. A video that already has records in the collection is skipped, so
// re-running ingestion is idempotent. Returns the number of chunks stored.
func (p *Pipeline) Ingest(ctx context.Context, videoID, language, text string) (int, error) {
	if err := p.store.EnsureCollection(ctx, p.collection, p.embedder.Dimension()); err != nil {
		return 0, err
	}

	exists, err := p.store.HasSource(ctx, p.collection, videoID)
	if err != nil {
		return 0, err
	}
	if exists {
		logger.Info("Video %s is already indexed in %s, skipping ingestion", videoID, p.collection)
		return 0, nil
	}

	chunks := p.splitter.Split(text)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("transcript for video %s produced no chunks", videoID)
	}
	logger.Info("Split transcript for video %s into %d chunks", videoID, len(chunks))

	vectors, err := p.embedder.EmbedMany(ctx, chunks)
	if err != nil {
		return 0, err
	}

	records := make([]core.EmbeddingRecord, len(chunks))
	for i, chunk := range chunks {
		records[i] = core.EmbeddingRecord{
			ID:     uuid.NewString(),
			Vector: vectors[i],
			Passage: core.Passage{
				Text:           chunk,
				Index:          i,
				VideoID:        videoID,
				EmbeddingModel: p.embedder.Model(),
				Language:       language,
			},
		}
	}

	if err := p.store.Upsert(ctx, p.collection, records); err != nil {
		return 0, err
	}
	logger.Info("Stored %d chunks for video %s in %s", len(records), videoID, p.collection)
	return len(records), nil
}

// IngestVideo resolves a YouTube URL, fetches its transcript and ingests it.
// Returns the video ID and the number of chunks stored (zero when the video
// was already indexed).
func (p *Pipeline) IngestVideo(ctx context.Context, rawURL string) (string, int, error) {
	if p.transcripts == nil {
		return "", 0, fmt.Errorf("no transcript source configured")
	}

	videoID, err := youtube.ExtractVideoID(rawURL)
	if err != nil {
		return "", 0, err
	}

	if err := p.store.EnsureCollection(ctx, p.collection, p.embedder.Dimension()); err != nil {
		return videoID, 0, err
	}
	exists, err := p.store.HasSource(ctx, p.collection, videoID)
	if err != nil {
		return videoID, 0, err
	}
	if exists {
		logger.Info("Video %s is already indexed in %s, skipping fetch", videoID, p.collection)
		return videoID, 0, nil
	}

	segments, language, err := p.transcripts.Fetch(ctx, videoID, p.languages)
	if err != nil {
		return videoID, 0, err
	}

	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		lines = append(lines, seg.Text)
	}
	text := strings.Join(lines, "\n")

	p.cacheTranscript(videoID, language, text)

	count, err := p.Ingest(ctx, videoID, language, text)
	return videoID, count, err
}

// cacheTranscript writes the fetched transcript to the downloads directory.
// Caching is best effort; a write failure never fails ingestion.
func (p *Pipeline) cacheTranscript(videoID, language, text string) {
	if p.downloadsDir == "" {
		return
	}
	if err := os.MkdirAll(p.downloadsDir, 0o755); err != nil {
		logger.Warn("Failed to create downloads directory %s: %v", p.downloadsDir, err)
		return
	}
	path := filepath.Join(p.downloadsDir, fmt.Sprintf("%s_%s.txt", videoID, language))
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		logger.Warn("Failed to cache transcript to %s: %v", path, err)
		return
	}
	logger.Debug("Cached transcript for video %s to %s", videoID, path)
}

// StartSession creates a new conversation session for a video and returns
// its ID.
func (p *Pipeline) StartSession(ctx context.Context, videoID string) (string, error) {
	sessionID := uuid.NewString()
	metadata := map[string]string{
		"model_used":      p.completionModel,
		"embedding_model": p.embedder.Model(),
	}
	if err := p.convo.Create(ctx, sessionID, videoID, metadata); err != nil {
		return "", err
	}
	return sessionID, nil
}

// Ask answers a question about a video: retrieve the most relevant passages,
// assemble the prompt with the recent history, generate, and record the
// exchange. Generation failures surface as the synthesizer's apology text,
// never as an error, so one bad completion does not kill a session.
func (p *Pipeline) Ask(ctx context.Context, sessionID, videoID, question string, history []core.ConversationTurn) (string, error) {
	passages, err := p.retriever.Retrieve(ctx, question, videoID, p.topK, nil)
	if err != nil {
		return "", err
	}

	promptText := p.builder.Build(question, passages, history)
	answerText := p.synthesizer.Generate(ctx, promptText)

	now := time.Now().UTC()
	turns := []core.ConversationTurn{
		{Role: core.RoleUser, Content: question, Timestamp: now},
		{Role: core.RoleAssistant, Content: answerText, Timestamp: now},
	}
	if err := p.convo.Append(ctx, sessionID, turns); err != nil {
		logger.Warn("Failed to record conversation turns for session %s: %v", sessionID, err)
	}

	return answerText, nil
}
