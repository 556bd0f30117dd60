package app

import (
	"context"
	"fmt"

	"pdf-chat-rag/internal/config"
	"pdf-chat-rag/internal/database"
	"pdf-chat-rag/internal/embedding"
	"pdf-chat-rag/internal/llm"
	"pdf-chat-rag/internal/metrics"
	"pdf-chat-rag/internal/processor"
	"pdf-chat-rag/internal/storage"
	"pdf-chat-rag/internal/vectorindex"

	"go.uber.org/zap"
)

// Build constructs an App from configuration. The returned close function
// releases the index backend.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	paths, err := storage.NewPaths(cfg.Storage.BaseDir, cfg.Storage.UploadSubdir)
	if err != nil {
		return nil, nil, err
	}

	embedder, err := embedding.NewOllamaEmbedder(embedding.Config{
		Host:          cfg.Ollama.Host,
		Model:         cfg.Ollama.EmbeddingModel,
		Timeout:       cfg.Ollama.EmbedTimeout,
		MaxRetries:    cfg.Ollama.MaxRetries,
		MaxConcurrent: cfg.Ollama.MaxConcurrent,
	}, logger.Named("embedding"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	generator, err := llm.NewOllamaLLM(llm.Config{
		Host:        cfg.Ollama.Host,
		Model:       cfg.Ollama.Model,
		Timeout:     cfg.Ollama.GenerateTimeout,
		Temperature: cfg.Ollama.Temperature,
	}, logger.Named("llm"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create llm client: %w", err)
	}

	store, closeStore, err := newStore(ctx, cfg.Index, logger)
	if err != nil {
		return nil, nil, err
	}

	index := vectorindex.New(embedder, store,
		vectorindex.WithTopK(cfg.Index.TopK),
		vectorindex.WithLogger(logger.Named("index")),
	)

	a, err := New(Deps{
		Paths:  paths,
		Loader: processor.NewPDFLoader(),
		Splitter: processor.NewTextSplitter(
			processor.WithChunkSize(cfg.Chunker.ChunkSize),
			processor.WithChunkOverlap(cfg.Chunker.ChunkOverlap),
		),
		Index:    index,
		Answerer: llm.NewAnswerer(generator),
		Metrics:  metrics.New(),
		Logger:   logger,
	}, Options{
		TopK:   cfg.Index.TopK,
		Scope:  cfg.Index.Scope,
		Dedupe: cfg.Index.Dedupe,
	})
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	logger.Info("application ready",
		zap.String("upload_dir", paths.Dir()),
		zap.String("index_backend", cfg.Index.Backend),
		zap.String("model", cfg.Ollama.Model),
		zap.String("embedding_model", cfg.Ollama.EmbeddingModel),
	)

	return a, closeStore, nil
}

func newStore(ctx context.Context, cfg config.IndexConfig, logger *zap.Logger) (vectorindex.Store, func(), error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		db, err := database.NewDB(ctx, cfg.PostgresDSN, cfg.Collection)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Initialize(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		logger.Info("using postgres index", zap.String("table", cfg.Collection))
		return db, db.Close, nil
	default:
		store, err := vectorindex.NewMemoryStore(cfg.Collection)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}
