package retriever

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/adapter/analyzer"
	"docrag/internal/adapter/memstore"
	"docrag/internal/adapter/store"
	"docrag/internal/domain"
	"docrag/internal/port"
)

var _ port.Backend = (*BM25Backend)(nil)

type storeFactory func(t *testing.T) port.IndexStore

func stores() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) port.IndexStore {
			return memstore.NewMemoryStore()
		},
		"bolt": func(t *testing.T) port.IndexStore {
			s, err := store.NewBoltStore(filepath.Join(t.TempDir(), "index.db"), "test")
			require.NoError(t, err)
			return s
		},
	}
}

func seed(t *testing.T, b *BM25Backend, docID string, texts ...string) {
	t.Helper()
	ctx := context.Background()
	for i, text := range texts {
		require.NoError(t, b.Put(ctx, domain.Chunk{DocID: docID, Ordinal: i, Text: text}))
	}
	require.NoError(t, b.Refresh(ctx))
}

func newBackend(t *testing.T, f storeFactory) *BM25Backend {
	b := NewBM25Backend(f(t), analyzer.NewTokenizer(false), 1.2, 0.75)
	t.Cleanup(func() { b.Close() })
	require.NoError(t, b.EnsureSchema(context.Background()))
	return b
}

func TestBM25Ranking(t *testing.T) {
	for name, f := range stores() {
		t.Run(name, func(t *testing.T) {
			b := newBackend(t, f)
			seed(t, b, "doc1",
				"This is a test document about authentication and login",
				"Database connection pooling and query optimization",
				"User authentication with JWT tokens and OAuth authentication",
			)

			results, err := b.Search(context.Background(), domain.SearchQuery{
				DocID: "doc1", Text: "authentication", TopK: 5, Mode: domain.MatchStrict,
			})
			require.NoError(t, err)
			require.Len(t, results, 2)

			assert.Equal(t, 2, results[0].Chunk.Ordinal, "repeated term should rank first")
			assert.Equal(t, 0, results[1].Chunk.Ordinal)
			assert.Greater(t, results[0].Score, results[1].Score)
			assert.Greater(t, results[1].Score, 0.0)
			assert.Equal(t, "doc1", results[0].Chunk.DocID)
			assert.Contains(t, results[0].Chunk.Text, "JWT")
		})
	}
}

func TestBM25ScopedToDocument(t *testing.T) {
	for name, f := range stores() {
		t.Run(name, func(t *testing.T) {
			b := newBackend(t, f)
			seed(t, b, "A", "shared words about foxes", "nothing else")
			seed(t, b, "B", "shared words about foxes too", "foxes foxes foxes")

			for _, mode := range []domain.MatchMode{domain.MatchStrict, domain.MatchPermissive} {
				results, err := b.Search(context.Background(), domain.SearchQuery{
					DocID: "A", Text: "foxes shared", TopK: 10, Mode: mode,
				})
				require.NoError(t, err)
				require.NotEmpty(t, results)
				for _, r := range results {
					assert.Equal(t, "A", r.Chunk.DocID, "mode %s leaked a chunk from another document", mode)
				}
			}
		})
	}
}

func TestBM25MatchModes(t *testing.T) {
	for name, f := range stores() {
		t.Run(name, func(t *testing.T) {
			b := newBackend(t, f)
			seed(t, b, "doc", "first chunk", "second chunk", "third chunk")
			ctx := context.Background()

			strict, err := b.Search(ctx, domain.SearchQuery{DocID: "doc", Text: "zebra", TopK: 5, Mode: domain.MatchStrict})
			require.NoError(t, err)
			assert.Empty(t, strict)

			permissive, err := b.Search(ctx, domain.SearchQuery{DocID: "doc", Text: "zebra", TopK: 2, Mode: domain.MatchPermissive})
			require.NoError(t, err)
			require.Len(t, permissive, 2)
			assert.Equal(t, 0, permissive[0].Chunk.Ordinal)
			assert.Equal(t, 1, permissive[1].Chunk.Ordinal)
			assert.Zero(t, permissive[0].Score)

			mixed, err := b.Search(ctx, domain.SearchQuery{DocID: "doc", Text: "third", TopK: 5, Mode: domain.MatchPermissive})
			require.NoError(t, err)
			require.Len(t, mixed, 3)
			assert.Equal(t, 2, mixed[0].Chunk.Ordinal)
			assert.Greater(t, mixed[0].Score, 0.0)
			assert.Zero(t, mixed[1].Score)
		})
	}
}

func TestBM25UnknownDocument(t *testing.T) {
	for name, f := range stores() {
		t.Run(name, func(t *testing.T) {
			b := newBackend(t, f)
			ctx := context.Background()

			results, err := b.Search(ctx, domain.SearchQuery{DocID: "nonexistent-id", Text: "query", TopK: 5})
			require.NoError(t, err)
			assert.Empty(t, results)

			seed(t, b, "doc", "the query word")
			for _, mode := range []domain.MatchMode{domain.MatchStrict, domain.MatchPermissive} {
				results, err = b.Search(ctx, domain.SearchQuery{DocID: "nonexistent-id", Text: "query", TopK: 5, Mode: mode})
				require.NoError(t, err)
				assert.Empty(t, results)
			}
		})
	}
}

func TestBM25TopK(t *testing.T) {
	b := newBackend(t, stores()["memory"])
	seed(t, b, "doc", "fox one", "fox two", "fox three", "fox four")

	results, err := b.Search(context.Background(), domain.SearchQuery{DocID: "doc", Text: "fox", TopK: 3, Mode: domain.MatchStrict})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestBM25CancelledContext(t *testing.T) {
	b := newBackend(t, stores()["memory"])
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Search(ctx, domain.SearchQuery{DocID: "doc", Text: "fox", TopK: 3})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, b.Put(ctx, domain.Chunk{DocID: "doc", Text: "fox"}), context.Canceled)
}
