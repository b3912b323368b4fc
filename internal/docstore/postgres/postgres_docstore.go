package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quipper/poc/sis/be/pkg/docstore"
)

// PostgresStore keeps documents in a single jsonb table.
// Update locks the row with SELECT ... FOR UPDATE so sentinels apply atomically.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ docstore.Store = (*PostgresStore)(nil)

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres docstore: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS documents (
    seq BIGSERIAL,
    collection TEXT NOT NULL,
    id TEXT NOT NULL,
    data JSONB NOT NULL,
    PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_data ON documents USING GIN (data jsonb_path_ops);
`); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *PostgresStore) Collection(name string) docstore.Collection {
	return &collection{s: s, name: name}
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

type collection struct {
	s    *PostgresStore
	name string
}

func (c *collection) NewID() string { return uuid.NewString() }

func (c *collection) Get(ctx context.Context, id string) (*docstore.Snapshot, error) {
	var raw []byte
	err := c.s.pool.QueryRow(ctx, `SELECT data FROM documents WHERE collection = $1 AND id = $2`, c.name, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
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
	_, err = c.s.pool.Exec(ctx, `
INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data`, c.name, id, string(raw))
	return err
}

func (c *collection) Update(ctx context.Context, id string, updates []docstore.Update) error {
	tx, err := c.s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var raw []byte
	err = tx.QueryRow(ctx, `SELECT data FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`, c.name, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s/%s", docstore.ErrNotFound, c.name, id)
	}
	if err != nil {
		return err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
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
	if _, err := tx.Exec(ctx, `UPDATE documents SET data = $1::jsonb WHERE collection = $2 AND id = $3`, string(out), c.name, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (c *collection) Delete(ctx context.Context, id string) error {
	_, err := c.s.pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, c.name, id)
	return err
}

func (c *collection) All(ctx context.Context) ([]*docstore.Snapshot, error) {
	return c.query(ctx, `SELECT id, data FROM documents WHERE collection = $1 ORDER BY seq`, c.name)
}

// Where uses jsonb containment for both operators so the GIN index applies.
func (c *collection) Where(ctx context.Context, f docstore.Filter) ([]*docstore.Snapshot, error) {
	var needle map[string]any
	switch f.Op {
	case docstore.OpEqual:
		if f.Value == nil {
			return c.query(ctx, `SELECT id, data FROM documents WHERE collection = $1 AND jsonb_typeof(data->$2) = 'null' ORDER BY seq`, c.name, f.Field)
		}
		needle = map[string]any{f.Field: f.Value}
	case docstore.OpArrayContains:
		needle = map[string]any{f.Field: []any{f.Value}}
	default:
		return nil, fmt.Errorf("postgres docstore: unsupported operator %q", f.Op)
	}
	raw, err := json.Marshal(needle)
	if err != nil {
		return nil, err
	}
	return c.query(ctx, `SELECT id, data FROM documents WHERE collection = $1 AND data @> $2::jsonb ORDER BY seq`, c.name, string(raw))
}

func (c *collection) query(ctx context.Context, q string, args ...any) ([]*docstore.Snapshot, error) {
	rows, err := c.s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*docstore.Snapshot
	for rows.Next() {
		var id string
		var raw []byte
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

func decode(id string, raw []byte) (*docstore.Snapshot, error) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("postgres docstore: decode %s: %w", id, err)
	}
	return &docstore.Snapshot{ID: id, Data: data}, nil
}
