package retriever

import (
	"context"
	"math"
	"sort"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// BM25Backend scores chunks in-process over an IndexStore. Document
// frequencies and average length are corpus-wide, as in Lucene.
type BM25Backend struct {
	store     port.IndexStore
	tokenizer port.Tokenizer
	k1        float64
	b         float64
}

func NewBM25Backend(store port.IndexStore, tokenizer port.Tokenizer, k1, b float64) *BM25Backend {
	return &BM25Backend{
		store:     store,
		tokenizer: tokenizer,
		k1:        k1,
		b:         b,
	}
}

func (r *BM25Backend) EnsureSchema(ctx context.Context) error {
	return r.store.EnsureSchema()
}

func (r *BM25Backend) Put(ctx context.Context, chunk domain.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chunk.Tokens = r.tokenizer.Tokenize(chunk.Text)
	return r.store.PutChunk(chunk)
}

func (r *BM25Backend) Refresh(ctx context.Context) error {
	return r.store.Sync()
}

func (r *BM25Backend) Close() error {
	return r.store.Close()
}

type candidate struct {
	key     string
	ordinal int
	score   float64
}

func (r *BM25Backend) Search(ctx context.Context, q domain.SearchQuery) ([]domain.ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stats, err := r.store.GetStats()
	if err != nil {
		return nil, err
	}
	if stats.TotalChunks == 0 {
		return nil, nil
	}

	scores := make(map[string]*candidate)
	N := float64(stats.TotalChunks)
	avgDl := stats.AvgChunkLen()
	if avgDl == 0 {
		avgDl = 1
	}

	for _, term := range r.tokenizer.Tokenize(q.Text) {
		postings, err := r.store.GetPostings(term)
		if err != nil {
			return nil, err
		}

		n := float64(len(postings))
		idf := math.Log((N-n+0.5)/(n+0.5) + 1)

		for _, posting := range postings {
			if posting.DocID != q.DocID {
				continue
			}
			tf := float64(posting.TF)
			dl := float64(posting.Length)
			score := idf * (tf * (r.k1 + 1)) / (tf + r.k1*(1-r.b+r.b*dl/avgDl))

			c, ok := scores[posting.ChunkKey]
			if !ok {
				c = &candidate{key: posting.ChunkKey, ordinal: posting.Ordinal}
				scores[posting.ChunkKey] = c
			}
			c.score += score
		}
	}

	// Permissive mode keeps the text clause optional: every chunk carrying
	// the tag is a hit, unmatched ones scoring zero.
	var docChunks map[string]domain.Chunk
	if q.Mode == domain.MatchPermissive {
		chunks, err := r.store.GetChunksByDoc(q.DocID)
		if err != nil {
			return nil, err
		}
		docChunks = make(map[string]domain.Chunk, len(chunks))
		for _, chunk := range chunks {
			key := chunk.Key()
			docChunks[key] = chunk
			if _, ok := scores[key]; !ok {
				scores[key] = &candidate{key: key, ordinal: chunk.Ordinal}
			}
		}
	}

	ranked := make([]*candidate, 0, len(scores))
	for _, c := range scores {
		ranked = append(ranked, c)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].ordinal < ranked[j].ordinal
	})
	if q.TopK > 0 && len(ranked) > q.TopK {
		ranked = ranked[:q.TopK]
	}

	results := make([]domain.ScoredChunk, 0, len(ranked))
	for _, c := range ranked {
		chunk, ok := docChunks[c.key]
		if !ok {
			chunk, err = r.store.GetChunk(c.key)
			if err != nil {
				return nil, err
			}
		}
		results = append(results, domain.ScoredChunk{Chunk: chunk, Score: c.score})
	}

	return results, nil
}
