package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"docrag/internal/adapter/extract"
	"docrag/internal/domain"
	"docrag/internal/port"
)

// CacheInvalidator drops cached query results after the index changes.
type CacheInvalidator interface {
	Invalidate()
}

// IngestUseCase turns documents into stored chunks.
type IngestUseCase struct {
	store      *FragmentStore
	chunker    port.Chunker
	extractors *extract.Registry
	walker     port.FileWalker
	dataDir    string
	cache      CacheInvalidator
	logger     *log.Logger
	newID      func() string
}

func NewIngestUseCase(
	store *FragmentStore,
	chunker port.Chunker,
	extractors *extract.Registry,
	walker port.FileWalker,
	dataDir string,
	cache CacheInvalidator,
	logger *log.Logger,
) *IngestUseCase {
	return &IngestUseCase{
		store:      store,
		chunker:    chunker,
		extractors: extractors,
		walker:     walker,
		dataDir:    dataDir,
		cache:      cache,
		logger:     logger,
		newID:      uuid.NewString,
	}
}

// IngestResult reports one ingested document. ChunkCount is the number of
// chunks produced; Stored and Failed split it by persistence outcome.
type IngestResult struct {
	DocumentID string `json:"document_id"`
	Name       string `json:"name,omitempty"`
	ChunkCount int    `json:"chunk_count"`
	Stored     int    `json:"stored"`
	Failed     int    `json:"failed"`

	Failures []domain.StoreResult `json:"-"`
}

// Ingest chunks text and stores it under docID, generating a fresh id when
// docID is empty. Empty text yields zero chunks.
func (u *IngestUseCase) Ingest(ctx context.Context, docID, text string) (*IngestResult, error) {
	if docID == "" {
		docID = u.newID()
	}

	chunks := u.chunker.Chunk(text)
	summary := u.store.Store(ctx, docID, chunks)
	u.store.Flush(ctx)

	if u.cache != nil && summary.Succeeded > 0 {
		u.cache.Invalidate()
	}

	u.logger.Info("document ingested",
		"doc_id", docID,
		"chunks", len(chunks),
		"failed", len(summary.Failed),
	)

	return &IngestResult{
		DocumentID: docID,
		ChunkCount: len(chunks),
		Stored:     summary.Succeeded,
		Failed:     len(summary.Failed),
		Failures:   summary.Failed,
	}, nil
}

// IngestFile extracts text from an uploaded file and ingests it under a new
// document id.
func (u *IngestUseCase) IngestFile(ctx context.Context, name string, data []byte) (*IngestResult, error) {
	text, format, err := u.extractors.Extract(name, data)
	if err != nil {
		return nil, err
	}
	u.logger.Debug("text extracted", "file", name, "format", format, "bytes", len(text))

	result, err := u.Ingest(ctx, "", text)
	if err != nil {
		return nil, err
	}
	result.Name = name
	return result, nil
}

// IngestPath ingests one file named relative to the data directory.
func (u *IngestUseCase) IngestPath(ctx context.Context, rel string) (*IngestResult, error) {
	if rel == "" || !filepath.IsLocal(rel) {
		return nil, fmt.Errorf("%w: path %q must stay inside the data directory", domain.ErrInvalidRequest, rel)
	}
	full := filepath.Join(u.dataDir, rel)

	info, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, rel)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", rel, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrInvalidRequest, rel)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rel, err)
	}
	result, err := u.IngestFile(ctx, filepath.Base(rel), data)
	if err != nil {
		return nil, err
	}
	result.Name = filepath.ToSlash(rel)
	return result, nil
}

// BatchResult collects the outcome of a directory ingestion.
type BatchResult struct {
	Documents []*IngestResult
	Skipped   int
	Errors    []string
}

// ProgressFunc is called after each file of a batch.
type ProgressFunc func(processed, total int, current string)

// IngestDir ingests every matching file under root. Files that fail to
// extract are skipped and reported; they do not stop the batch.
func (u *IngestUseCase) IngestDir(ctx context.Context, root string, progress ProgressFunc) (*BatchResult, error) {
	files, err := u.walker.Walk(root)
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	result := &BatchResult{}
	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		doc, err := u.ingestWalked(ctx, file)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", file.RelPath, err))
			u.logger.Warn("skipping file", "file", file.RelPath, "err", err)
		} else {
			result.Documents = append(result.Documents, doc)
		}

		if progress != nil {
			progress(i+1, len(files), file.RelPath)
		}
	}
	return result, nil
}

func (u *IngestUseCase) ingestWalked(ctx context.Context, file port.FileInfo) (*IngestResult, error) {
	data, err := os.ReadFile(file.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	doc, err := u.IngestFile(ctx, filepath.Base(file.Path), data)
	if err != nil {
		return nil, err
	}
	doc.Name = file.RelPath
	return doc, nil
}
