package fts

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sync"

	_ "modernc.org/sqlite"
)

// Migration is one step of the fragment database schema.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

func migrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_fragments_fts",
			SQL: `
				CREATE TABLE IF NOT EXISTS fragments (
					seq INTEGER PRIMARY KEY AUTOINCREMENT,
					id TEXT NOT NULL UNIQUE,
					doc_id TEXT NOT NULL,
					ordinal INTEGER NOT NULL,
					chunk TEXT NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_fragments_doc_id ON fragments(doc_id);

				CREATE VIRTUAL TABLE IF NOT EXISTS fragments_fts USING fts5(
					chunk,
					content=fragments,
					content_rowid=seq,
					tokenize='unicode61'
				);

				CREATE TRIGGER IF NOT EXISTS fragments_ai AFTER INSERT ON fragments BEGIN
					INSERT INTO fragments_fts(rowid, chunk) VALUES (new.seq, new.chunk);
				END;

				CREATE TRIGGER IF NOT EXISTS fragments_ad AFTER DELETE ON fragments BEGIN
					INSERT INTO fragments_fts(fragments_fts, rowid, chunk) VALUES ('delete', old.seq, old.chunk);
				END;

				CREATE TRIGGER IF NOT EXISTS fragments_au AFTER UPDATE ON fragments BEGIN
					INSERT INTO fragments_fts(fragments_fts, rowid, chunk) VALUES ('delete', old.seq, old.chunk);
					INSERT INTO fragments_fts(rowid, chunk) VALUES (new.seq, new.chunk);
				END;
			`,
		},
	}
}

// Open opens (creating if needed) the fragment database at path. Pragmas go
// through the DSN so every pooled connection gets them.
func Open(path string) (*sql.DB, error) {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "synchronous(NORMAL)")

	db, err := sql.Open("sqlite", path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to open fragment database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open fragment database: %w", err)
	}
	return db, nil
}

type migrator struct {
	mu sync.Mutex
	db *sql.DB
}

func (m *migrator) run(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var current int
	if err := m.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	for _, mig := range migrations() {
		if mig.Version <= current {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return fmt.Errorf("failed to run migration %d (%s): %w", mig.Version, mig.Name, err)
		}
	}
	return nil
}

func (m *migrator) apply(ctx context.Context, mig Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, mig.SQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO schema_migrations (version, name) VALUES (?, ?)",
		mig.Version, mig.Name,
	); err != nil {
		return err
	}
	return tx.Commit()
}
