package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/config"
	"docrag/internal/adapter/analyzer"
	"docrag/internal/domain"
	"docrag/internal/usecase"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	l.Info("hidden")
	l.Warn("shown", "ordinal", 3)
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"ordinal":3`)

	_, err = newLogger(config.LoggingConfig{Level: "loud"}, io.Discard)
	assert.Error(t, err)
	_, err = newLogger(config.LoggingConfig{Level: "info", Format: "xml"}, io.Discard)
	assert.Error(t, err)
}

func TestNewChunker(t *testing.T) {
	tok := analyzer.NewTokenizer(false)

	semantic, err := newChunker(config.DefaultConfig().Chunking, tok)
	require.NoError(t, err)
	assert.Len(t, semantic.Chunk("One. Two."), 1)

	tokens, err := newChunker(config.ChunkingConfig{Strategy: config.StrategyWindow, Size: 3, Overlap: 1, Units: config.UnitsTokens}, tok)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello , world", "world . Bye"}, tokens.Chunk("Hello, world. Bye"))

	words, err := newChunker(config.ChunkingConfig{Strategy: config.StrategyWindow, Size: 3, Overlap: 1, Units: config.UnitsWords}, tok)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello, world. Bye"}, words.Chunk("Hello, world. Bye"))

	_, err = newChunker(config.ChunkingConfig{Strategy: config.StrategyWindow, Size: 3, Overlap: 3}, tok)
	assert.ErrorIs(t, err, domain.ErrInvalidChunking)

	_, err = newChunker(config.ChunkingConfig{Strategy: "paragraph"}, tok)
	assert.Error(t, err)
}

func TestNewBackendUnknown(t *testing.T) {
	_, err := newBackend(config.BackendConfig{Type: "solr"}, t.TempDir(), analyzer.NewTokenizer(false))
	assert.Error(t, err)
}

// Local backends keep their data between app instances, so ingest and
// retrieve can run as separate commands.
func TestBuildAppLocalBackends(t *testing.T) {
	for _, backend := range []string{config.BackendBolt, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			cfg := config.DefaultConfig()
			cfg.Backend.Type = backend
			cfg.Chunking.MaxWords = 6
			cfg.Chunking.OverlapWords = 2
			quiet := log.New(io.Discard)
			ctx := context.Background()

			a, err := buildApp(cfg, dir, quiet)
			require.NoError(t, err)
			require.NoError(t, a.store.EnsureSchema(ctx))
			res, err := a.ingest.Ingest(ctx, "doc", "The quick brown fox. Jumps over the lazy dog. Repeat forever.")
			require.NoError(t, err)
			assert.Equal(t, 3, res.Stored)
			require.NoError(t, a.Close())

			a, err = buildApp(cfg, dir, quiet)
			require.NoError(t, err)
			defer a.Close()
			require.NoError(t, a.store.EnsureSchema(ctx))
			resp, err := a.retrieve.Retrieve(ctx, usecase.RetrieveRequest{DocumentID: "doc", Query: "forever"})
			require.NoError(t, err)
			require.Len(t, resp.Fragments, 1)
			assert.Equal(t, "lazy dog. Repeat forever.", resp.Fragments[0].Chunk)
		})
	}
}

func TestBuildAppCacheInvalidatedByIngest(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Backend.Type = config.BackendMemory
	ctx := context.Background()

	a, err := buildApp(cfg, t.TempDir(), log.New(io.Discard))
	require.NoError(t, err)
	defer a.Close()

	req := usecase.RetrieveRequest{DocumentID: "doc", Query: "fox"}
	before, err := a.retrieve.Retrieve(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, before.Fragments)

	_, err = a.ingest.Ingest(ctx, "doc", "The quick brown fox.")
	require.NoError(t, err)

	after, err := a.retrieve.Retrieve(ctx, req)
	require.NoError(t, err)
	assert.Len(t, after.Fragments, 1)
}

func TestPrintIngestSummary(t *testing.T) {
	var buf bytes.Buffer
	printIngestSummary(&buf, []*usecase.IngestResult{
		{DocumentID: "id-1", Name: "a.txt", ChunkCount: 4, Stored: 3, Failed: 1},
	}, []string{"b.exe: unsupported input"})

	out := buf.String()
	assert.Contains(t, out, "a.txt")
	assert.Contains(t, out, "4 chunks")
	assert.Contains(t, out, "1 failed to store")
	assert.True(t, strings.Contains(out, "b.exe"))
}

func TestStorePathCreatesParent(t *testing.T) {
	dir := t.TempDir()
	path, err := storePath(dir, filepath.Join(".docrag", "index.db"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ".docrag", "index.db"), path)

	info, err := os.Stat(filepath.Join(dir, ".docrag"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
