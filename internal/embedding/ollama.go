package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrEmbedding is returned when the embedding endpoint fails or times out
var ErrEmbedding = errors.New("embedding error")

// Config holds the Ollama embedder settings
type Config struct {
	Host          string
	Model         string
	Timeout       time.Duration
	MaxRetries    int
	MaxConcurrent int
}

// OllamaEmbedder generates embeddings using Ollama API
type OllamaEmbedder struct {
	Client        *api.Client
	Model         string
	MaxRetries    int
	Timeout       time.Duration
	MaxConcurrent int
	logger        *zap.Logger
}

// ResolveHost parses host, falling back to OLLAMA_HOST (or the Ollama default)
func ResolveHost(host string) (*url.URL, error) {
	if host == "" {
		return envconfig.Host(), nil
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid ollama host %q: scheme and host required", host)
	}
	return u, nil
}

// NewOllamaEmbedder creates a new Ollama embedder
func NewOllamaEmbedder(cfg Config, logger *zap.Logger) (*OllamaEmbedder, error) {
	hostURL, err := ResolveHost(cfg.Host)
	if err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		return nil, errors.New("embedding model is required")
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OllamaEmbedder{
		Client:        api.NewClient(hostURL, http.DefaultClient),
		Model:         cfg.Model,
		MaxRetries:    cfg.MaxRetries,
		Timeout:       cfg.Timeout,
		MaxConcurrent: cfg.MaxConcurrent,
		logger:        logger,
	}, nil
}

// Embed generates an embedding for a text
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var embedding []float32
	var err error

	// Implement retry logic
	for retries := 0; retries <= e.MaxRetries; retries++ {
		if retries > 0 {
			e.logger.Debug("retrying embedding", zap.Int("attempt", retries), zap.Error(err))
			// Wait before retrying, unless the caller gives up first
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrEmbedding, ctx.Err())
			case <-time.After(time.Duration(retries) * time.Second):
			}
		}

		embedding, err = e.createEmbedding(ctx, text)
		if err == nil {
			return embedding, nil
		}
	}

	if e.MaxRetries > 0 {
		return nil, fmt.Errorf("%w: failed after %d retries: %v", ErrEmbedding, e.MaxRetries, err)
	}
	return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
}

// createEmbedding is a helper function to create a single embedding
func (e *OllamaEmbedder) createEmbedding(ctx context.Context, text string) ([]float32, error) {
	req := api.EmbeddingRequest{
		Model:  e.Model,
		Prompt: text,
	}

	// Create a context with timeout
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	// Make the embedding request
	resp, err := e.Client.Embeddings(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, errors.New("empty embedding returned")
	}

	// The index stores float32 vectors
	embedding := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		embedding[i] = float32(v)
	}
	return embedding, nil
}

// EmbedBatch generates embeddings for multiple texts with at most
// MaxConcurrent requests in flight. Results keep the input order.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.MaxConcurrent)

	// Process texts in parallel
	for i := range texts {
		g.Go(func() error {
			embedding, err := e.Embed(gctx, texts[i])
			if err != nil {
				return fmt.Errorf("failed to embed chunk %d: %w", i, err)
			}
			// Each goroutine owns its slot
			embeddings[i] = embedding
			return nil
		})
	}

	// Wait for all goroutines and report the first error
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return embeddings, nil
}
