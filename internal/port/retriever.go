package port

import (
	"context"

	"docrag/internal/domain"
)

// Retriever answers document-scoped relevance queries.
type Retriever interface {
	Search(ctx context.Context, q domain.SearchQuery) ([]domain.ScoredChunk, error)
}
