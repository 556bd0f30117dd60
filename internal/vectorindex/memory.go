package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pdf-chat-rag/internal/models"

	"github.com/philippgille/chromem-go"
)

// DefaultCollection names the chromem collection holding chunk vectors
const DefaultCollection = "pdf_chunks"

var errNoEmbeddingFunc = errors.New("embeddings must be computed before adding to the store")

// MemoryStore keeps vectors in an in-process chromem collection. It lives
// only as long as the process.
type MemoryStore struct {
	collection *chromem.Collection

	// chromem only keeps string metadata, so the original chunks are kept here
	mu     sync.RWMutex
	chunks map[string]models.Chunk
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(collection string) (*MemoryStore, error) {
	if collection == "" {
		collection = DefaultCollection
	}

	db := chromem.NewDB()
	coll, err := db.GetOrCreateCollection(collection, nil, func(ctx context.Context, text string) ([]float32, error) {
		return nil, errNoEmbeddingFunc
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create collection %s: %w", collection, err)
	}

	return &MemoryStore{
		collection: coll,
		chunks:     make(map[string]models.Chunk),
	}, nil
}

// Add stores entries; each must carry its embedding
func (s *MemoryStore) Add(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(entries))
	for i, e := range entries {
		if len(e.Embedding) == 0 {
			return fmt.Errorf("entry %s: %w", e.ID, errNoEmbeddingFunc)
		}
		docs[i] = chromem.Document{
			ID:        e.ID,
			Content:   e.Chunk.Content,
			Metadata:  stringMetadata(e.Chunk.Metadata),
			Embedding: e.Embedding,
		}
	}

	s.mu.Lock()
	for _, e := range entries {
		s.chunks[e.ID] = e.Chunk
	}
	s.mu.Unlock()

	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		s.mu.Lock()
		for _, e := range entries {
			delete(s.chunks, e.ID)
		}
		s.mu.Unlock()
		return fmt.Errorf("adding documents: %w", err)
	}

	return nil
}

// Search returns up to k entries by cosine similarity
func (s *MemoryStore) Search(ctx context.Context, vector []float32, k int, filter Filter) ([]Hit, error) {
	// chromem requires nResults <= doc count
	count := s.collection.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	var where map[string]string
	if len(filter) > 0 {
		where = map[string]string(filter)
	}

	results, err := s.collection.QueryEmbedding(ctx, vector, k, where, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		chunk, ok := s.chunks[r.ID]
		if !ok {
			chunk = models.Chunk{Content: r.Content, Metadata: anyMetadata(r.Metadata)}
		}
		hits = append(hits, Hit{Chunk: chunk, Score: r.Similarity})
	}
	return hits, nil
}

// Len reports the number of stored entries
func (s *MemoryStore) Len(ctx context.Context) (int, error) {
	return s.collection.Count(), nil
}

func stringMetadata(metadata map[string]any) map[string]string {
	if metadata == nil {
		return nil
	}

	result := make(map[string]string, len(metadata))
	for k, v := range metadata {
		switch val := v.(type) {
		case string:
			result[k] = val
		case int:
			result[k] = fmt.Sprintf("%d", val)
		case int64:
			result[k] = fmt.Sprintf("%d", val)
		case float64:
			result[k] = fmt.Sprintf("%f", val)
		case bool:
			result[k] = fmt.Sprintf("%t", val)
		default:
			result[k] = fmt.Sprintf("%v", val)
		}
	}
	return result
}

func anyMetadata(metadata map[string]string) map[string]any {
	if metadata == nil {
		return nil
	}

	result := make(map[string]any, len(metadata))
	for k, v := range metadata {
		result[k] = v
	}
	return result
}

var _ Store = (*MemoryStore)(nil)
