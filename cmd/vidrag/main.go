package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dperrin/vidrag/internal/answer"
	"github.com/dperrin/vidrag/internal/chunker"
	"github.com/dperrin/vidrag/internal/config"
	"github.com/dperrin/vidrag/internal/convo"
	"github.com/dperrin/vidrag/internal/core"
	"github.com/dperrin/vidrag/internal/embed"
	"github.com/dperrin/vidrag/internal/logger"
	"github.com/dperrin/vidrag/internal/pipeline"
	"github.com/dperrin/vidrag/internal/prompt"
	"github.com/dperrin/vidrag/internal/vectorstore"
	"github.com/dperrin/vidrag/internal/youtube"
)

const usage = `Usage:
  vidrag [flags] ingest <youtube-url>
  vidrag [flags] ask <youtube-url> "<question>"
  vidrag [flags] chat <youtube-url>

Flags:
  -config path   Path to the YAML config file (default config.yaml)
  -debug         Enable debug logging
  -memory        Use the in-memory vector store instead of Milvus
`

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML config file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	memory := flag.Bool("memory", false, "Use the in-memory vector store instead of Milvus")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	logger.Init(*debug)

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, relying on the environment")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	args := flag.Args()
	wantArgs := map[string]int{"ingest": 2, "ask": 3, "chat": 2}
	if len(args) == 0 || wantArgs[args[0]] != len(args) {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, cleanup, err := buildPipeline(ctx, cfg, *memory)
	if err != nil {
		logger.Error("Failed to initialize pipeline: %v", err)
		os.Exit(1)
	}
	defer cleanup()

	switch args[0] {
	case "ingest":
		err = runIngest(ctx, p, args[1])
	case "ask":
		err = runAsk(ctx, p, args[1], args[2])
	case "chat":
		err = runChat(ctx, p, args[1])
	}
	if err != nil {
		logger.Error("%v", err)
		cleanup()
		os.Exit(1)
	}
}

// buildPipeline constructs every service from the configuration and returns
// the assembled pipeline plus a cleanup function.
func buildPipeline(ctx context.Context, cfg *config.Config, useMemory bool) (*pipeline.Pipeline, func(), error) {
	splitter, err := chunker.New(cfg.Chunker.MaxSize, cfg.Chunker.Overlap)
	if err != nil {
		return nil, nil, err
	}

	embedder, err := embed.NewOpenAIEmbedder(embed.Config{
		BaseURL:     cfg.Embedding.BaseURL,
		APIKey:      config.APIKey(cfg.Embedding.APIKeyEnv),
		Model:       cfg.Embedding.Model,
		Dimension:   cfg.Embedding.Dimension,
		MaxParallel: cfg.Embedding.MaxParallel,
	})
	if err != nil {
		return nil, nil, err
	}

	var store core.VectorStore
	if useMemory {
		logger.Info("Using the in-memory vector store; nothing will persist")
		store = vectorstore.NewMemoryStore()
	} else {
		addr := cfg.Milvus.Host + ":" + cfg.Milvus.Port
		store, err = vectorstore.NewMilvusStore(ctx, addr, cfg.Embedding.Dimension)
		if err != nil {
			return nil, nil, err
		}
	}

	completer, err := answer.NewOpenAICompleter(answer.CompleterConfig{
		BaseURL: cfg.Completion.BaseURL,
		APIKey:  config.APIKey(cfg.Completion.APIKeyEnv),
		Model:   cfg.Completion.Model,
	})
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	synthesizer := answer.NewSynthesizer(completer, cfg.Completion.Model,
		cfg.Completion.MaxTokens, cfg.Completion.Temperature)

	var convoStore core.ConversationStore
	if uri := config.APIKey(cfg.Mongo.URIEnv); uri != "" {
		convoStore, err = convo.NewMongoStore(ctx, uri, cfg.Mongo.Database)
		if err != nil {
			store.Close()
			return nil, nil, err
		}
	} else {
		logger.Info("%s is not set, conversations will not be persisted", cfg.Mongo.URIEnv)
		convoStore = convo.Disabled{}
	}

	p, err := pipeline.New(pipeline.Options{
		Splitter:        splitter,
		Embedder:        embedder,
		Store:           store,
		Builder:         prompt.NewBuilder(cfg.Retrieval.HistoryWindow, cfg.Retrieval.MaxPromptChars),
		Synthesizer:     synthesizer,
		Convo:           convoStore,
		Transcripts:     youtube.NewClient(""),
		Collection:      cfg.Collection,
		TopK:            cfg.Retrieval.TopK,
		Languages:       cfg.Transcript.Languages,
		DownloadsDir:    cfg.Transcript.DownloadsDir,
		CompletionModel: cfg.Completion.Model,
	})
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close vector store: %v", err)
		}
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := convoStore.Close(closeCtx); err != nil {
			logger.Error("Failed to close conversation store: %v", err)
		}
	}
	return p, cleanup, nil
}

func runIngest(ctx context.Context, p *pipeline.Pipeline, url string) error {
	videoID, count, err := p.IngestVideo(ctx, url)
	if err != nil {
		return err
	}
	if count == 0 {
		fmt.Printf("Video %s is already indexed.\n", videoID)
	} else {
		fmt.Printf("Indexed video %s in %d chunks.\n", videoID, count)
	}
	return nil
}

func runAsk(ctx context.Context, p *pipeline.Pipeline, url, question string) error {
	videoID, _, err := p.IngestVideo(ctx, url)
	if err != nil {
		return err
	}
	sessionID, err := p.StartSession(ctx, videoID)
	if err != nil {
		return err
	}
	answerText, err := p.Ask(ctx, sessionID, videoID, question, nil)
	if err != nil {
		return err
	}
	fmt.Println(answerText)
	return nil
}

func runChat(ctx context.Context, p *pipeline.Pipeline, url string) error {
	videoID, count, err := p.IngestVideo(ctx, url)
	if err != nil {
		return err
	}
	if count > 0 {
		fmt.Printf("Indexed video %s in %d chunks.\n", videoID, count)
	}
	sessionID, err := p.StartSession(ctx, videoID)
	if err != nil {
		return err
	}
	fmt.Printf("Chatting about video %s. Type 'exit' to quit.\n", videoID)

	var history []core.ConversationTurn
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			break
		}
		if ctx.Err() != nil {
			break
		}

		answerText, err := p.Ask(ctx, sessionID, videoID, question, history)
		if err != nil {
			logger.Error("Failed to answer question: %v", err)
			continue
		}
		fmt.Println(answerText)

		now := time.Now().UTC()
		history = append(history,
			core.ConversationTurn{Role: core.RoleUser, Content: question, Timestamp: now},
			core.ConversationTurn{Role: core.RoleAssistant, Content: answerText, Timestamp: now},
		)
	}
	return scanner.Err()
}
