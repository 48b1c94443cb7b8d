package memstore

import (
	"fmt"
	"sort"
	"sync"

	"docrag/internal/domain"
)

// MemoryStore is an in-process inverted index. Nothing survives a restart.
type MemoryStore struct {
	mu        sync.RWMutex
	chunks    map[string]domain.Chunk
	docChunks map[string][]string
	postings  map[string][]domain.Posting
	stats     domain.Stats
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chunks:    make(map[string]domain.Chunk),
		docChunks: make(map[string][]string),
		postings:  make(map[string][]domain.Posting),
	}
}

func (s *MemoryStore) EnsureSchema() error {
	return nil
}

func (s *MemoryStore) PutChunk(chunk domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := chunk.Key()
	if old, ok := s.chunks[key]; ok {
		for term := range old.TermFreqs() {
			s.removePosting(term, key)
		}
		s.stats.TotalChunks--
		s.stats.TotalTokens -= len(old.Tokens)
	} else {
		s.docChunks[chunk.DocID] = append(s.docChunks[chunk.DocID], key)
	}

	s.chunks[key] = chunk
	for term, tf := range chunk.TermFreqs() {
		s.postings[term] = append(s.postings[term], domain.Posting{
			ChunkKey: key,
			DocID:    chunk.DocID,
			Ordinal:  chunk.Ordinal,
			TF:       tf,
			Length:   len(chunk.Tokens),
		})
	}
	s.stats.TotalChunks++
	s.stats.TotalTokens += len(chunk.Tokens)
	return nil
}

func (s *MemoryStore) removePosting(term, key string) {
	filtered := make([]domain.Posting, 0, len(s.postings[term]))
	for _, p := range s.postings[term] {
		if p.ChunkKey != key {
			filtered = append(filtered, p)
		}
	}
	if len(filtered) == 0 {
		delete(s.postings, term)
	} else {
		s.postings[term] = filtered
	}
}

func (s *MemoryStore) GetChunk(key string) (domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunk, ok := s.chunks[key]
	if !ok {
		return domain.Chunk{}, fmt.Errorf("chunk %s: %w", key, domain.ErrNotFound)
	}
	return chunk, nil
}

func (s *MemoryStore) GetChunksByDoc(docID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := s.docChunks[docID]
	chunks := make([]domain.Chunk, 0, len(keys))
	for _, key := range keys {
		if chunk, ok := s.chunks[key]; ok {
			chunks = append(chunks, chunk)
		}
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Ordinal < chunks[j].Ordinal })
	return chunks, nil
}

// GetPostings returns a copy; callers may hold it past later writes.
func (s *MemoryStore) GetPostings(term string) ([]domain.Posting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Posting(nil), s.postings[term]...), nil
}

func (s *MemoryStore) GetStats() (domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats, nil
}

func (s *MemoryStore) Sync() error {
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
