package database

import (
	"context"
	"os"
	"testing"

	"pdf-chat-rag/internal/models"
	"pdf-chat-rag/internal/vectorindex"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("PDFCHAT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PDFCHAT_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	db, err := NewDB(ctx, dsn, "rag_chunks_test")
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.Initialize(ctx))
	return db
}

func entry(content, docID string, vec ...float32) vectorindex.Entry {
	return vectorindex.Entry{
		ID: uuid.NewString(),
		Chunk: models.Chunk{
			Content:  content,
			Metadata: map[string]any{models.MetaDocID: docID},
		},
		Embedding: vec,
	}
}

func TestNewDB_RejectsBadTableName(t *testing.T) {
	_, err := NewDB(context.Background(), "postgres://localhost/none", "chunks; DROP TABLE users")
	assert.Error(t, err)
}

func TestDB_AddSearch(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	n, err := db.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, db.Add(ctx, []vectorindex.Entry{
		entry("paris", "a", 1, 0, 0),
		entry("rome", "a", 0, 1, 0),
		entry("berlin", "b", 0, 0, 1),
	}))

	n, err = db.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	hits, err := db.Search(ctx, []float32{0.1, 0.9, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "rome", hits[0].Chunk.Content)
	assert.Equal(t, "paris", hits[1].Chunk.Content)
	assert.Greater(t, hits[0].Score, hits[1].Score)

	hits, err = db.Search(ctx, []float32{0.1, 0.9, 0}, 4, vectorindex.Filter{models.MetaDocID: "b"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "berlin", hits[0].Chunk.Content)
	assert.Equal(t, "b", hits[0].Chunk.Metadata[models.MetaDocID])
}

func TestDB_InitializeDropsPreviousRun(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	require.NoError(t, db.Add(ctx, []vectorindex.Entry{entry("stale", "old", 1, 1)}))
	require.NoError(t, db.Initialize(ctx))

	n, err := db.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
