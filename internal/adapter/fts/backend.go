package fts

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// Backend stores fragments in SQLite and ranks them with FTS5 bm25().
type Backend struct {
	db        *sql.DB
	tokenizer port.Tokenizer
	migrator  *migrator
}

// NewBackend wraps an open database. The tokenizer turns query text into
// FTS5 terms.
func NewBackend(db *sql.DB, tokenizer port.Tokenizer) *Backend {
	return &Backend{
		db:        db,
		tokenizer: tokenizer,
		migrator:  &migrator{db: db},
	}
}

func (b *Backend) EnsureSchema(ctx context.Context) error {
	return b.migrator.run(ctx)
}

func (b *Backend) Put(ctx context.Context, chunk domain.Chunk) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO fragments (id, doc_id, ordinal, chunk) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			doc_id = excluded.doc_id,
			ordinal = excluded.ordinal,
			chunk = excluded.chunk
	`, chunk.Key(), chunk.DocID, chunk.Ordinal, chunk.Text)
	if err != nil {
		return fmt.Errorf("failed to store fragment %s: %w", chunk.Key(), err)
	}
	return nil
}

// Refresh checkpoints the WAL. Writes are already visible to new readers, so
// this only bounds the log size.
func (b *Backend) Refresh(ctx context.Context) error {
	var busy, logFrames, checkpointed int
	return b.db.QueryRowContext(ctx, "PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &logFrames, &checkpointed)
}

func (b *Backend) Search(ctx context.Context, q domain.SearchQuery) ([]domain.ScoredChunk, error) {
	limit := q.TopK
	if limit <= 0 {
		limit = -1
	}

	match := buildFTSQuery(b.tokenizer.Tokenize(q.Text))

	var rows *sql.Rows
	var err error
	switch {
	case q.Mode == domain.MatchPermissive && match == "":
		rows, err = b.db.QueryContext(ctx, `
			SELECT doc_id, ordinal, chunk, 0.0
			FROM fragments
			WHERE doc_id = ?
			ORDER BY ordinal
			LIMIT ?
		`, q.DocID, limit)
	case q.Mode == domain.MatchPermissive:
		rows, err = b.db.QueryContext(ctx, `
			SELECT f.doc_id, f.ordinal, f.chunk, COALESCE(m.score, 0.0) AS score
			FROM fragments f
			LEFT JOIN (
				SELECT rowid, -bm25(fragments_fts) AS score
				FROM fragments_fts
				WHERE fragments_fts MATCH ?
			) m ON m.rowid = f.seq
			WHERE f.doc_id = ?
			ORDER BY score DESC, f.ordinal
			LIMIT ?
		`, match, q.DocID, limit)
	case match == "":
		return nil, nil
	default:
		rows, err = b.db.QueryContext(ctx, `
			SELECT f.doc_id, f.ordinal, f.chunk, -bm25(fragments_fts) AS score
			FROM fragments_fts
			JOIN fragments f ON f.seq = fragments_fts.rowid
			WHERE fragments_fts MATCH ? AND f.doc_id = ?
			ORDER BY score DESC, f.ordinal
			LIMIT ?
		`, match, q.DocID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("fragment search failed: %w", err)
	}
	defer rows.Close()

	var results []domain.ScoredChunk
	for rows.Next() {
		var r domain.ScoredChunk
		if err := rows.Scan(&r.Chunk.DocID, &r.Chunk.Ordinal, &r.Chunk.Text, &r.Score); err != nil {
			return nil, fmt.Errorf("failed to scan fragment: %w", err)
		}
		if r.Score < 0 {
			r.Score = 0
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (b *Backend) Close() error {
	return b.db.Close()
}

// buildFTSQuery quotes each analyzed term and ORs them, matching any chunk
// that shares at least one term with the query.
func buildFTSQuery(terms []string) string {
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		quoted = append(quoted, `"`+strings.ReplaceAll(t, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " OR ")
}
