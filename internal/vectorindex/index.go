package vectorindex

import (
	"context"
	"errors"
	"fmt"

	"pdf-chat-rag/internal/embedding"
	"pdf-chat-rag/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTopK is the number of chunks returned when the caller does not ask for a specific count
const DefaultTopK = 4

// ErrEmbedding is returned when a chunk or a query could not be embedded
var ErrEmbedding = embedding.ErrEmbedding

// Filter restricts a search to entries whose metadata equals every given value
type Filter map[string]string

// Entry is a chunk together with its embedding
type Entry struct {
	ID        string
	Chunk     models.Chunk
	Embedding []float32
}

// Hit is a search result, most similar first
type Hit struct {
	Chunk models.Chunk
	Score float32
}

// Embedder turns text into vectors
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Store persists entries and answers nearest neighbour searches
type Store interface {
	Add(ctx context.Context, entries []Entry) error
	Search(ctx context.Context, vector []float32, k int, filter Filter) ([]Hit, error)
	Len(ctx context.Context) (int, error)
}

// Index binds one embedder to one store, so chunks and queries are always
// embedded by the same model.
type Index struct {
	embedder Embedder
	store    Store
	topK     int
	logger   *zap.Logger
}

// Option configures an Index
type Option func(*Index)

// WithTopK sets the default result count
func WithTopK(k int) Option {
	return func(i *Index) {
		if k > 0 {
			i.topK = k
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(i *Index) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// New creates an Index over store using embedder
func New(embedder Embedder, store Store, opts ...Option) *Index {
	idx := &Index{
		embedder: embedder,
		store:    store,
		topK:     DefaultTopK,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Add embeds chunks and stores them under fresh IDs. Adding the same chunk
// twice stores it twice.
func (i *Index) Add(ctx context.Context, chunks []models.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for n, c := range chunks {
		texts[n] = c.Content
	}

	vectors, err := i.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, wrapEmbedding(err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("%w: got %d vectors for %d chunks", ErrEmbedding, len(vectors), len(chunks))
	}

	entries := make([]Entry, len(chunks))
	for n, c := range chunks {
		entries[n] = Entry{
			ID:        uuid.NewString(),
			Chunk:     c,
			Embedding: vectors[n],
		}
	}

	if err := i.store.Add(ctx, entries); err != nil {
		return 0, fmt.Errorf("failed to store chunks: %w", err)
	}

	i.logger.Debug("indexed chunks", zap.Int("count", len(entries)))
	return len(entries), nil
}

// Query returns up to k chunks most similar to text. A non-positive k uses
// the configured default.
func (i *Index) Query(ctx context.Context, text string, k int, filter Filter) ([]models.Chunk, error) {
	hits, err := i.Search(ctx, text, k, filter)
	if err != nil {
		return nil, err
	}

	chunks := make([]models.Chunk, len(hits))
	for n, h := range hits {
		chunks[n] = h.Chunk
	}
	return chunks, nil
}

// Search is Query with similarity scores
func (i *Index) Search(ctx context.Context, text string, k int, filter Filter) ([]Hit, error) {
	if k <= 0 {
		k = i.topK
	}

	size, err := i.store.Len(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count entries: %w", err)
	}
	if size == 0 {
		return nil, nil
	}

	vector, err := i.embedder.Embed(ctx, text)
	if err != nil {
		return nil, wrapEmbedding(err)
	}

	hits, err := i.store.Search(ctx, vector, k, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	i.logger.Debug("searched index", zap.Int("k", k), zap.Int("hits", len(hits)))
	return hits, nil
}

// Len reports the number of stored entries
func (i *Index) Len(ctx context.Context) (int, error) {
	return i.store.Len(ctx)
}

func wrapEmbedding(err error) error {
	if errors.Is(err, ErrEmbedding) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrEmbedding, err)
}
