package port

import "docrag/internal/domain"

// IndexStore is the inverted index behind the in-process BM25 engine.
type IndexStore interface {
	// EnsureSchema prepares the store for writes. It is idempotent.
	EnsureSchema() error

	// PutChunk stores a chunk with its analyzed tokens, replacing any chunk
	// already stored under the same key, and updates postings and stats.
	PutChunk(chunk domain.Chunk) error

	GetChunk(key string) (domain.Chunk, error)

	// GetChunksByDoc returns the document's chunks ordered by ordinal.
	GetChunksByDoc(docID string) ([]domain.Chunk, error)

	GetPostings(term string) ([]domain.Posting, error)

	GetStats() (domain.Stats, error)

	Sync() error

	Close() error
}
