// Package app wires uploads and questions through storage, extraction,
// chunking, retrieval and generation for a chat session.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"pdf-chat-rag/internal/config"
	"pdf-chat-rag/internal/metrics"
	"pdf-chat-rag/internal/models"
	"pdf-chat-rag/internal/session"
	"pdf-chat-rag/internal/storage"
	"pdf-chat-rag/internal/vectorindex"

	"go.uber.org/zap"
)

// FailureMessage is the assistant reply when no answer could be generated
const FailureMessage = "Sorry, I couldn't process that question. Please try again."

// Loader extracts per-page documents from a stored file
type Loader interface {
	Load(ctx context.Context, path string) ([]models.Document, error)
}

// Splitter chunks documents
type Splitter interface {
	SplitDocuments(docs []models.Document) []models.Chunk
}

// Index stores chunks and retrieves the most similar ones
type Index interface {
	Add(ctx context.Context, chunks []models.Chunk) (int, error)
	Query(ctx context.Context, text string, k int, filter vectorindex.Filter) ([]models.Chunk, error)
	Len(ctx context.Context) (int, error)
}

// Answerer produces an answer from a question and retrieved chunks
type Answerer interface {
	Answer(ctx context.Context, question string, chunks []models.Chunk) (string, error)
}

// Deps are the components an App is built from
type Deps struct {
	Paths    *storage.Paths
	Loader   Loader
	Splitter Splitter
	Index    Index
	Answerer Answerer
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// Options tune retrieval and ingestion
type Options struct {
	TopK   int
	Scope  string
	Dedupe bool
}

// App is the application context shared by every session
type App struct {
	paths    *storage.Paths
	loader   Loader
	splitter Splitter
	index    Index
	answerer Answerer
	metrics  *metrics.Metrics
	logger   *zap.Logger
	opts     Options

	Sessions *session.Store

	// ingestMu serializes uploads so the registry matches the index
	ingestMu sync.Mutex
	indexed  map[string]models.UploadResult
}

// New creates an App from deps
func New(deps Deps, opts Options) (*App, error) {
	if deps.Paths == nil || deps.Loader == nil || deps.Splitter == nil || deps.Index == nil || deps.Answerer == nil {
		return nil, errors.New("app: paths, loader, splitter, index and answerer are required")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if opts.TopK <= 0 {
		opts.TopK = vectorindex.DefaultTopK
	}
	if opts.Scope == "" {
		opts.Scope = config.ScopeAll
	}

	return &App{
		paths:    deps.Paths,
		loader:   deps.Loader,
		splitter: deps.Splitter,
		index:    deps.Index,
		answerer: deps.Answerer,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		opts:     opts,
		Sessions: session.NewStore(),
		indexed:  make(map[string]models.UploadResult),
	}, nil
}

// Metrics returns the collectors this App records to
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// Upload stores the PDF read from r under name, extracts and chunks it, and
// adds the chunks to the index. Identical content is indexed once when
// deduplication is on; the file on disk is always replaced.
func (a *App) Upload(ctx context.Context, sess *session.Session, name string, r io.Reader) (*models.UploadResult, error) {
	a.ingestMu.Lock()
	defer a.ingestMu.Unlock()

	logger := a.logger.With(zap.String("session", sess.ID), zap.String("file", name))

	path, docID, err := a.paths.Save(name, r)
	if err != nil {
		a.metrics.Uploads.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("failed to save upload: %w", err)
	}

	if prev, ok := a.indexed[docID]; ok && a.opts.Dedupe {
		sess.MarkIndexed(docID)
		a.metrics.Uploads.WithLabelValues(metrics.ResultDuplicate).Inc()
		logger.Info("document already indexed", zap.String("doc_id", docID))

		return &models.UploadResult{
			FileName:  name,
			Path:      path,
			DocID:     docID,
			Pages:     prev.Pages,
			Duplicate: true,
		}, nil
	}

	docs, err := a.loader.Load(ctx, path)
	if err != nil {
		a.metrics.Uploads.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("failed to load %s: %w", name, err)
	}
	for i := range docs {
		docs[i].Metadata = models.CloneMetadata(docs[i].Metadata)
		docs[i].Metadata[models.MetaDocID] = docID
	}

	chunks := a.splitter.SplitDocuments(docs)

	added, err := a.index.Add(ctx, chunks)
	if err != nil {
		a.metrics.Uploads.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("failed to index %s: %w", name, err)
	}

	result := models.UploadResult{
		FileName: name,
		Path:     path,
		DocID:    docID,
		Pages:    len(docs),
		Chunks:   added,
	}
	a.indexed[docID] = result
	sess.MarkIndexed(docID)

	a.metrics.Uploads.WithLabelValues(metrics.ResultOK).Inc()
	a.metrics.ChunksIndexed.Add(float64(added))
	if size, err := a.index.Len(ctx); err == nil {
		a.metrics.IndexSize.Set(float64(size))
	}

	logger.Info("indexed document",
		zap.String("doc_id", docID),
		zap.Int("pages", len(docs)),
		zap.Int("chunks", added),
	)

	return &result, nil
}

// Ask submits question and answers it. While another question of the same
// session is being answered it returns session.ErrQuestionPending.
func (a *App) Ask(ctx context.Context, sess *session.Session, question string) (string, error) {
	if err := sess.Submit(question); err != nil {
		a.metrics.Questions.WithLabelValues(metrics.ResultRejected).Inc()
		return "", err
	}
	return a.ResolvePending(ctx, sess)
}

// ResolvePending answers the session's pending question and records the
// reply. The session always returns to Idle: when generation fails the
// reply is FailureMessage and the generation error is returned with it.
func (a *App) ResolvePending(ctx context.Context, sess *session.Session) (string, error) {
	question, ok := sess.PendingQuestion()
	if !ok {
		return "", session.ErrNotPending
	}

	started := time.Now()
	logger := a.logger.With(zap.String("session", sess.ID))

	chunks := a.retrieve(ctx, sess, question)

	answer, genErr := a.answerer.Answer(ctx, question, chunks)
	if genErr != nil {
		logger.Error("failed to answer question", zap.Error(genErr))
		answer = FailureMessage
	}

	if err := sess.Resolve(answer); err != nil {
		return "", err
	}

	if genErr != nil {
		a.metrics.ObserveAnswer(metrics.ResultError, started)
		return answer, genErr
	}

	a.metrics.ObserveAnswer(metrics.ResultOK, started)
	logger.Debug("answered question",
		zap.Int("chunks", len(chunks)),
		zap.Duration("duration", time.Since(started)),
	)
	return answer, nil
}

// retrieve returns context chunks for question. Sessions without an upload
// get none; retrieval failures degrade to no context.
func (a *App) retrieve(ctx context.Context, sess *session.Session, question string) []models.Chunk {
	if !sess.HasDocument() {
		return nil
	}

	var filter vectorindex.Filter
	if a.opts.Scope == config.ScopeLatest {
		if docID, ok := sess.LatestDocument(); ok {
			filter = vectorindex.Filter{models.MetaDocID: docID}
		}
	}

	chunks, err := a.index.Query(ctx, question, a.opts.TopK, filter)
	if err != nil {
		a.logger.Warn("retrieval failed, answering without context",
			zap.String("session", sess.ID),
			zap.Error(err),
		)
		return nil
	}
	return chunks
}
