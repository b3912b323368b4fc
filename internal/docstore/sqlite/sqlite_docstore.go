package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/quipper/poc/sis/be/pkg/docstore"
)

// SQLiteStore keeps every collection in one table of JSON documents.
// A single connection serialises writers, which makes each Update atomic.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ docstore.Store = (*SQLiteStore)(nil)

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT NOT NULL,
    id TEXT NOT NULL,
    data TEXT NOT NULL,
    PRIMARY KEY (collection, id)
);
`)
	return err
}

func (s *SQLiteStore) Collection(name string) docstore.Collection {
	return &collection{s: s, name: name}
}

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) Close() error { return s.db.Close() }

type collection struct {
	s    *SQLiteStore
	name string
}

func (c *collection) NewID() string { return uuid.NewString() }

func (c *collection) Get(ctx context.Context, id string) (*docstore.Snapshot, error) {
	row := c.s.db.QueryRowContext(ctx, `SELECT data FROM documents WHERE collection = ? AND id = ?`, c.name, id)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return decode(id, raw)
}

func (c *collection) Set(ctx context.Context, id string, data map[string]any) error {
	resolved, err := docstore.Resolve(data, c.s.now())
	if err != nil {
		return err
	}
	raw, err := json.Marshal(resolved)
	if err != nil {
		return err
	}
	_, err = c.s.db.ExecContext(ctx, `
INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)
ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data`, c.name, id, string(raw))
	return err
}

func (c *collection) Update(ctx context.Context, id string, updates []docstore.Update) error {
	tx, err := c.s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT data FROM documents WHERE collection = ? AND id = ?`, c.name, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s/%s", docstore.ErrNotFound, c.name, id)
	}
	if err != nil {
		return err
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return err
	}
	merged, err := docstore.Apply(doc, updates, c.s.now())
	if err != nil {
		return err
	}
	out, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE documents SET data = ? WHERE collection = ? AND id = ?`, string(out), c.name, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (c *collection) Delete(ctx context.Context, id string) error {
	_, err := c.s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, c.name, id)
	return err
}

func (c *collection) All(ctx context.Context) ([]*docstore.Snapshot, error) {
	return c.query(ctx, `SELECT id, data FROM documents WHERE collection = ? ORDER BY rowid`, c.name)
}

func (c *collection) Where(ctx context.Context, f docstore.Filter) ([]*docstore.Snapshot, error) {
	path := `$."` + f.Field + `"`
	switch f.Op {
	case docstore.OpEqual:
		if f.Value == nil {
			return c.query(ctx, `SELECT id, data FROM documents WHERE collection = ? AND json_type(data, ?) = 'null' ORDER BY rowid`, c.name, path)
		}
		return c.query(ctx, `SELECT id, data FROM documents WHERE collection = ? AND json_extract(data, ?) = ? ORDER BY rowid`, c.name, path, f.Value)
	case docstore.OpArrayContains:
		return c.query(ctx, `
SELECT id, data FROM documents
WHERE collection = ? AND EXISTS (SELECT 1 FROM json_each(documents.data, ?) AS e WHERE e.value = ?)
ORDER BY rowid`, c.name, path, f.Value)
	default:
		return nil, fmt.Errorf("sqlite docstore: unsupported operator %q", f.Op)
	}
}

func (c *collection) query(ctx context.Context, q string, args ...any) ([]*docstore.Snapshot, error) {
	rows, err := c.s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*docstore.Snapshot
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		snap, err := decode(id, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func decode(id, raw string) (*docstore.Snapshot, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("sqlite docstore: decode %s: %w", id, err)
	}
	return &docstore.Snapshot{ID: id, Data: data}, nil
}
