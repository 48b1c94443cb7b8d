package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"docrag/config"
	"docrag/internal/adapter/analyzer"
	"docrag/internal/adapter/cache"
	"docrag/internal/adapter/chunker"
	"docrag/internal/adapter/elastic"
	"docrag/internal/adapter/extract"
	"docrag/internal/adapter/fs"
	"docrag/internal/adapter/fts"
	"docrag/internal/adapter/memstore"
	"docrag/internal/adapter/retriever"
	"docrag/internal/adapter/store"
	"docrag/internal/domain"
	"docrag/internal/port"
	"docrag/internal/usecase"
)

// app holds the use cases built from one configuration.
type app struct {
	store    *usecase.FragmentStore
	ingest   *usecase.IngestUseCase
	retrieve *usecase.RetrieveUseCase
}

func (a *app) Close() error {
	return a.store.Close()
}

func buildApp(cfg *config.Config, dir string, logger *log.Logger) (*app, error) {
	tokenizer := analyzer.NewTokenizer(false)

	chk, err := newChunker(cfg.Chunking, tokenizer)
	if err != nil {
		return nil, err
	}

	backend, err := newBackend(cfg.Backend, dir, tokenizer)
	if err != nil {
		return nil, err
	}

	var r port.Retriever = backend
	var invalidator usecase.CacheInvalidator
	if cfg.Retrieve.CacheSize > 0 {
		cached := cache.NewCachedRetriever(backend, cache.NewQueryCache(cfg.Retrieve.CacheSize, cfg.Retrieve.CacheTTL()))
		r = cached
		invalidator = cached
	}

	fragments := usecase.NewFragmentStore(backend, logger)
	return &app{
		store: fragments,
		ingest: usecase.NewIngestUseCase(
			fragments,
			chk,
			extract.NewRegistry(cfg.Ingest.Extensions),
			fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes, cfg.Ingest.Extensions),
			config.ResolvePath(dir, cfg.Ingest.DataDir),
			invalidator,
			logger,
		),
		retrieve: usecase.NewRetrieveUseCase(
			r,
			cfg.Retrieve.TopK,
			domain.MatchMode(cfg.Retrieve.MatchMode),
			cfg.Retrieve.MinScore,
			logger,
		),
	}, nil
}

func newChunker(c config.ChunkingConfig, tokenizer port.Tokenizer) (port.Chunker, error) {
	switch c.Strategy {
	case config.StrategySemantic:
		return chunker.NewSentenceChunker(c.MaxWords, c.OverlapWords)
	case config.StrategyWindow:
		if c.Units == config.UnitsTokens {
			return chunker.NewWindowChunker(c.Size, c.Overlap, tokenizer)
		}
		return chunker.NewWindowChunker(c.Size, c.Overlap, nil)
	default:
		return nil, fmt.Errorf("unknown chunking strategy %q", c.Strategy)
	}
}

func newBackend(c config.BackendConfig, dir string, tokenizer *analyzer.Tokenizer) (port.Backend, error) {
	switch c.Type {
	case config.BackendElasticsearch:
		return elastic.NewBackend(elastic.Config{
			Addresses: c.Elasticsearch.Addresses,
			Index:     c.Elasticsearch.Index,
			Username:  c.Elasticsearch.Username,
			Password:  c.Elasticsearch.Password(),
			Timeout:   c.Elasticsearch.Timeout(),
		})

	case config.BackendSQLite:
		path, err := storePath(dir, c.SQLite.Path)
		if err != nil {
			return nil, err
		}
		db, err := fts.Open(path)
		if err != nil {
			return nil, err
		}
		return fts.NewBackend(db, tokenizer), nil

	case config.BackendBolt:
		path, err := storePath(dir, c.Bolt.Path)
		if err != nil {
			return nil, err
		}
		st, err := store.NewBoltStore(path, tokenizer.Signature())
		if err != nil {
			return nil, fmt.Errorf("failed to open index store: %w", err)
		}
		return retriever.NewBM25Backend(st, tokenizer, c.K1, c.B), nil

	case config.BackendMemory:
		return retriever.NewBM25Backend(memstore.NewMemoryStore(), tokenizer, c.K1, c.B), nil

	default:
		return nil, fmt.Errorf("unknown backend %q", c.Type)
	}
}

func storePath(dir, p string) (string, error) {
	path := config.ResolvePath(dir, p)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	return path, nil
}
