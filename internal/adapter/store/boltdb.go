package store

import (
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"docrag/internal/domain"
)

var (
	bucketChunks    = []byte("chunks")
	bucketBlobs     = []byte("blobs")
	bucketTerms     = []byte("terms")
	bucketStats     = []byte("stats")
	bucketDocChunks = []byte("doc_chunks")
	keyStats        = []byte("corpus_stats")
)

var allBuckets = [][]byte{bucketChunks, bucketBlobs, bucketTerms, bucketStats, bucketDocChunks}

// BoltStore is a persistent inverted index. Chunk metadata, chunk text,
// per-term postings and corpus statistics each live in their own bucket.
type BoltStore struct {
	db       *bbolt.DB
	analyzer string
}

// NewBoltStore opens the index file. analyzer identifies the tokenization
// the stored postings were built with; a mismatch forces a rebuild.
func NewBoltStore(path, analyzer string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, analyzer: analyzer}, nil
}

type chunkMeta struct {
	DocID   string   `json:"doc_id"`
	Ordinal int      `json:"ordinal"`
	Tokens  []string `json:"tokens"`
}

// PutChunk writes the chunk, its postings and the updated corpus stats in a
// single transaction. Re-putting an existing key replaces its postings.
func (s *BoltStore) PutChunk(chunk domain.Chunk) error {
	key := []byte(chunk.Key())

	return s.db.Update(func(tx *bbolt.Tx) error {
		chunks := tx.Bucket(bucketChunks)
		terms := tx.Bucket(bucketTerms)

		stats, err := readStats(tx)
		if err != nil {
			return err
		}

		if existing := chunks.Get(key); existing != nil {
			var old chunkMeta
			if err := json.Unmarshal(existing, &old); err != nil {
				return fmt.Errorf("decode chunk %s: %w", key, err)
			}
			for term := range (domain.Chunk{Tokens: old.Tokens}).TermFreqs() {
				if err := removePosting(terms, term, string(key)); err != nil {
					return err
				}
			}
			stats.TotalChunks--
			stats.TotalTokens -= len(old.Tokens)
		} else if err := appendDocChunk(tx.Bucket(bucketDocChunks), chunk.DocID, string(key)); err != nil {
			return err
		}

		data, err := json.Marshal(chunkMeta{
			DocID:   chunk.DocID,
			Ordinal: chunk.Ordinal,
			Tokens:  chunk.Tokens,
		})
		if err != nil {
			return err
		}
		if err := chunks.Put(key, data); err != nil {
			return err
		}
		if err := tx.Bucket(bucketBlobs).Put(key, []byte(chunk.Text)); err != nil {
			return err
		}

		for term, tf := range chunk.TermFreqs() {
			var postings []domain.Posting
			if data := terms.Get([]byte(term)); data != nil {
				if err := json.Unmarshal(data, &postings); err != nil {
					return fmt.Errorf("decode postings for %q: %w", term, err)
				}
			}
			postings = append(postings, domain.Posting{
				ChunkKey: string(key),
				DocID:    chunk.DocID,
				Ordinal:  chunk.Ordinal,
				TF:       tf,
				Length:   len(chunk.Tokens),
			})
			data, err := json.Marshal(postings)
			if err != nil {
				return err
			}
			if err := terms.Put([]byte(term), data); err != nil {
				return err
			}
		}

		stats.TotalChunks++
		stats.TotalTokens += len(chunk.Tokens)
		return writeStats(tx, stats)
	})
}

func appendDocChunk(b *bbolt.Bucket, docID, key string) error {
	var keys []string
	if existing := b.Get([]byte(docID)); existing != nil {
		if err := json.Unmarshal(existing, &keys); err != nil {
			return fmt.Errorf("decode chunk list for %s: %w", docID, err)
		}
	}
	keys = append(keys, key)
	data, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	return b.Put([]byte(docID), data)
}

func removePosting(b *bbolt.Bucket, term, key string) error {
	data := b.Get([]byte(term))
	if data == nil {
		return nil
	}
	var postings []domain.Posting
	if err := json.Unmarshal(data, &postings); err != nil {
		return fmt.Errorf("decode postings for %q: %w", term, err)
	}

	filtered := postings[:0]
	for _, p := range postings {
		if p.ChunkKey != key {
			filtered = append(filtered, p)
		}
	}
	if len(filtered) == 0 {
		return b.Delete([]byte(term))
	}
	data, err := json.Marshal(filtered)
	if err != nil {
		return err
	}
	return b.Put([]byte(term), data)
}

func (s *BoltStore) GetChunk(key string) (domain.Chunk, error) {
	var chunk domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		chunk, err = loadChunk(tx, []byte(key))
		return err
	})
	return chunk, err
}

func loadChunk(tx *bbolt.Tx, key []byte) (domain.Chunk, error) {
	data := tx.Bucket(bucketChunks).Get(key)
	if data == nil {
		return domain.Chunk{}, fmt.Errorf("chunk %s: %w", key, domain.ErrNotFound)
	}
	var meta chunkMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return domain.Chunk{}, fmt.Errorf("decode chunk %s: %w", key, err)
	}
	return domain.Chunk{
		DocID:   meta.DocID,
		Ordinal: meta.Ordinal,
		Text:    string(tx.Bucket(bucketBlobs).Get(key)),
		Tokens:  meta.Tokens,
	}, nil
}

func (s *BoltStore) GetChunksByDoc(docID string) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocChunks).Get([]byte(docID))
		if data == nil {
			return nil
		}
		var keys []string
		if err := json.Unmarshal(data, &keys); err != nil {
			return err
		}
		chunks = make([]domain.Chunk, 0, len(keys))
		for _, key := range keys {
			chunk, err := loadChunk(tx, []byte(key))
			if err != nil {
				return err
			}
			chunks = append(chunks, chunk)
		}
		return nil
	})
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Ordinal < chunks[j].Ordinal })
	return chunks, err
}

func (s *BoltStore) GetPostings(term string) ([]domain.Posting, error) {
	var postings []domain.Posting
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketTerms).Get([]byte(term))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &postings)
	})
	return postings, err
}

func (s *BoltStore) GetStats() (domain.Stats, error) {
	var stats domain.Stats
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		stats, err = readStats(tx)
		return err
	})
	return stats, err
}

func readStats(tx *bbolt.Tx) (domain.Stats, error) {
	var stats domain.Stats
	data := tx.Bucket(bucketStats).Get(keyStats)
	if data == nil {
		return stats, nil
	}
	err := json.Unmarshal(data, &stats)
	return stats, err
}

func writeStats(tx *bbolt.Tx, stats domain.Stats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketStats).Put(keyStats, data)
}

// Sync flushes the database file to disk.
func (s *BoltStore) Sync() error {
	return s.db.Sync()
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
