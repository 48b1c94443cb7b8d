package port

import (
	"context"

	"docrag/internal/domain"
)

// Backend is a full-text document store with an exact-match document tag
// and a relevance-scored chunk field.
type Backend interface {
	Retriever

	// EnsureSchema creates the collection if it is missing. It is idempotent.
	EnsureSchema(ctx context.Context) error

	// Put persists one chunk under its composite key, overwriting any record
	// with the same key.
	Put(ctx context.Context, chunk domain.Chunk) error

	// Refresh makes previously put chunks visible to Search.
	Refresh(ctx context.Context) error

	Close() error
}
