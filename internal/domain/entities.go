package domain

import "time"

// Document is an ingested source. Its text lives only until chunking completes.
type Document struct {
	ID         string
	Name       string
	Format     string
	ChunkCount int
	CreatedAt  time.Time
}

// Chunk is one contiguous fragment of a document's text.
type Chunk struct {
	DocID   string
	Ordinal int
	Text    string
	Tokens  []string
}

// Key returns the composite record key "{doc_id}_{ordinal}".
func (c Chunk) Key() string {
	return ChunkKey(c.DocID, c.Ordinal)
}

type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// MatchMode controls whether the text clause of a retrieval query is mandatory.
type MatchMode string

const (
	// MatchStrict requires at least one query term to match the chunk.
	MatchStrict MatchMode = "strict"
	// MatchPermissive falls back to document-tag-only hits when nothing matches.
	MatchPermissive MatchMode = "permissive"
)

// SearchQuery is a document-scoped relevance query handed to a backend.
type SearchQuery struct {
	DocID string
	Text  string
	TopK  int
	Mode  MatchMode
}

// Fragment is the caller-facing shape of one retrieval hit.
type Fragment struct {
	Chunk string  `json:"chunk"`
	Score float64 `json:"score"`
}

// StoreResult records the outcome of persisting a single chunk.
type StoreResult struct {
	Ordinal int
	Key     string
	Err     error
}

// StoreSummary collects per-chunk outcomes for one ingestion.
type StoreSummary struct {
	Attempted int
	Succeeded int
	Failed    []StoreResult
}

func (s *StoreSummary) Add(r StoreResult) {
	s.Attempted++
	if r.Err != nil {
		s.Failed = append(s.Failed, r)
		return
	}
	s.Succeeded++
}

type Posting struct {
	ChunkKey string `json:"k"`
	DocID    string `json:"d"`
	Ordinal  int    `json:"o"`
	TF       int    `json:"tf"`
	Length   int    `json:"l"`
}

type Stats struct {
	TotalChunks int
	TotalTokens int
}

// AvgChunkLen is the mean token count per stored chunk.
func (s Stats) AvgChunkLen() float64 {
	if s.TotalChunks == 0 {
		return 0
	}
	return float64(s.TotalTokens) / float64(s.TotalChunks)
}

// TermFreqs counts occurrences of each analyzed token in the chunk.
func (c Chunk) TermFreqs() map[string]int {
	tf := make(map[string]int, len(c.Tokens))
	for _, t := range c.Tokens {
		tf[t]++
	}
	return tf
}
