package revocation

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"

	rrepo "github.com/quipper/poc/sis/be/pkg/repositories/revocation"
)

// SQLiteRepo is a separate SQLite-backed store of revoked session token digests.
type SQLiteRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepo(dsn string) (*SQLiteRepo, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// Pragmas safe for simple single-process usage
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteRepo{db: db, now: time.Now}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS revoked_tokens (
    digest TEXT PRIMARY KEY,
    expires_at INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_revoked_expires_at ON revoked_tokens(expires_at);
`)
	return err
}

func (r *SQLiteRepo) Disconnect() { _ = r.db.Close() }

// Ensure interface compliance
var _ rrepo.Repository = (*SQLiteRepo)(nil)

func (r *SQLiteRepo) Revoke(ctx context.Context, digest string, exp time.Time) error {
	if digest == "" {
		return errors.New("empty digest")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO revoked_tokens (digest, expires_at) VALUES (?, ?)
ON CONFLICT (digest) DO UPDATE SET expires_at = MAX(expires_at, excluded.expires_at)`, digest, exp.Unix())
	return err
}

func (r *SQLiteRepo) IsRevoked(ctx context.Context, digest string) (bool, error) {
	var exp int64
	err := r.db.QueryRowContext(ctx, `SELECT expires_at FROM revoked_tokens WHERE digest = ?`, digest).Scan(&exp)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return r.now().Unix() < exp, nil
}

func (r *SQLiteRepo) Purge(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= ?`, r.now().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
