package database

import (
	"context"
	"fmt"
	"regexp"

	"pdf-chat-rag/internal/models"
	"pdf-chat-rag/internal/vectorindex"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// DefaultTable holds chunk vectors when no collection name is configured
const DefaultTable = "rag_chunks"

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// DB represents the database connection
type DB struct {
	Pool  *pgxpool.Pool
	table string
}

// NewDB creates a new database connection
func NewDB(ctx context.Context, connStr, table string) (*DB, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool, table: table}, nil
}

// Initialize recreates the chunk table. Anything indexed by a previous run is
// dropped, so the index only ever holds documents uploaded to this process.
func (db *DB) Initialize(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	if _, err := db.Pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, db.table)); err != nil {
		return fmt.Errorf("failed to drop %s table: %w", db.table, err)
	}

	// The embedding dimension depends on the model, so the column is untyped
	_, err := db.Pool.Exec(ctx, fmt.Sprintf(`
        CREATE TABLE %s (
            id UUID PRIMARY KEY,
            content TEXT NOT NULL,
            start_index INTEGER NOT NULL,
            metadata JSONB NOT NULL DEFAULT '{}',
            embedding vector NOT NULL
        )
    `, db.table))
	if err != nil {
		return fmt.Errorf("failed to create %s table: %w", db.table, err)
	}

	_, err = db.Pool.Exec(ctx, fmt.Sprintf(
		`CREATE INDEX %s_doc_id_idx ON %s ((metadata->>'doc_id'))`, db.table, db.table))
	if err != nil {
		return fmt.Errorf("failed to create doc_id index: %w", err)
	}

	return nil
}

// Add stores entries in a single batch
func (db *DB) Add(ctx context.Context, entries []vectorindex.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	insert := fmt.Sprintf(`
        INSERT INTO %s (id, content, start_index, metadata, embedding)
        VALUES ($1, $2, $3, $4, $5)
    `, db.table)

	batch := &pgx.Batch{}
	for _, e := range entries {
		metadata := e.Chunk.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		batch.Queue(insert,
			e.ID,
			e.Chunk.Content,
			e.Chunk.StartIndex,
			metadata,
			pgvector.NewVector(e.Embedding))
	}

	if err := db.Pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}
	return nil
}

// Search finds the k entries closest to vector by cosine distance
func (db *DB) Search(ctx context.Context, vector []float32, k int, filter vectorindex.Filter) ([]vectorindex.Hit, error) {
	if k <= 0 {
		return nil, nil
	}

	var rows pgx.Rows
	var err error

	if len(filter) > 0 {
		rows, err = db.Pool.Query(ctx, fmt.Sprintf(`
            SELECT content, start_index, metadata, 1 - (embedding <=> $1) AS score
            FROM %s
            WHERE metadata @> $2
            ORDER BY embedding <=> $1
            LIMIT $3
        `, db.table), pgvector.NewVector(vector), map[string]string(filter), k)
	} else {
		rows, err = db.Pool.Query(ctx, fmt.Sprintf(`
            SELECT content, start_index, metadata, 1 - (embedding <=> $1) AS score
            FROM %s
            ORDER BY embedding <=> $1
            LIMIT $2
        `, db.table), pgvector.NewVector(vector), k)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query similar chunks: %w", err)
	}
	return processRows(rows)
}

func processRows(rows pgx.Rows) ([]vectorindex.Hit, error) {
	defer rows.Close()

	var hits []vectorindex.Hit
	for rows.Next() {
		var (
			chunk models.Chunk
			score float64
		)
		if err := rows.Scan(&chunk.Content, &chunk.StartIndex, &chunk.Metadata, &score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		hits = append(hits, vectorindex.Hit{Chunk: chunk, Score: float32(score)})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return hits, nil
}

// Len counts the stored entries
func (db *DB) Len(ctx context.Context) (int, error) {
	var n int
	if err := db.Pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, db.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// Close closes the database connection
func (db *DB) Close() {
	db.Pool.Close()
}

var _ vectorindex.Store = (*DB)(nil)
