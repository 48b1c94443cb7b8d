package usecase

import (
	"context"

	"github.com/charmbracelet/log"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// FragmentStore persists chunks best-effort: one failing chunk never stops
// the rest of a document from being written.
type FragmentStore struct {
	backend port.Backend
	logger  *log.Logger
}

func NewFragmentStore(backend port.Backend, logger *log.Logger) *FragmentStore {
	return &FragmentStore{backend: backend, logger: logger}
}

// EnsureSchema bootstraps the backend collection. A failure is logged as a
// warning and returned so callers can decide whether it matters; ingestion
// still proceeds and surfaces failures per chunk.
func (s *FragmentStore) EnsureSchema(ctx context.Context) error {
	if err := s.backend.EnsureSchema(ctx); err != nil {
		s.logger.Warn("schema bootstrap failed", "err", err)
		return err
	}
	return nil
}

// Store writes each chunk in ordinal order and reports every outcome.
func (s *FragmentStore) Store(ctx context.Context, docID string, texts []string) domain.StoreSummary {
	var summary domain.StoreSummary
	for ordinal, text := range texts {
		chunk := domain.Chunk{DocID: docID, Ordinal: ordinal, Text: text}
		err := s.backend.Put(ctx, chunk)
		if err != nil {
			s.logger.Warn("failed to index chunk", "doc_id", docID, "ordinal", ordinal, "err", err)
		}
		summary.Add(domain.StoreResult{Ordinal: ordinal, Key: chunk.Key(), Err: err})
	}
	return summary
}

// Flush asks the backend to make stored chunks searchable. Failures only
// widen the window before new chunks show up, so they are logged and dropped.
func (s *FragmentStore) Flush(ctx context.Context) {
	if err := s.backend.Refresh(ctx); err != nil {
		s.logger.Debug("refresh failed", "err", err)
	}
}

func (s *FragmentStore) Close() error {
	return s.backend.Close()
}
