package local

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/quipper/poc/sis/be/pkg/common/keys"
	"github.com/quipper/poc/sis/be/pkg/identity"
)

// Config tunes token lifetimes and link generation.
type Config struct {
	Issuer        string
	SessionTTL    time.Duration
	ActionTTL     time.Duration
	ActionSecret  string
	ActionBaseURL string
	BcryptCost    int
}

// LocalProvider is a self-hosted identity provider: accounts in SQLite,
// bcrypt password hashes, RS256 session tokens and HS256 action codes.
type LocalProvider struct {
	db   *sql.DB
	keys *keys.Set
	cfg  Config
	now  func() time.Time
}

var (
	_ identity.Provider        = (*LocalProvider)(nil)
	_ identity.ActionConfirmer = (*LocalProvider)(nil)
)

func NewLocalProvider(path string, ks *keys.Set, cfg Config) (*LocalProvider, error) {
	if ks == nil {
		return nil, errors.New("local identity: signing keys required")
	}
	if cfg.ActionSecret == "" {
		return nil, errors.New("local identity: action secret required")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "sis-local"
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = time.Hour
	}
	if cfg.ActionTTL <= 0 {
		cfg.ActionTTL = time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &LocalProvider{db: db, keys: ks, cfg: cfg, now: time.Now}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS accounts (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE COLLATE NOCASE,
    password_hash TEXT NOT NULL,
    display_name TEXT NOT NULL DEFAULT '',
    email_verified INTEGER NOT NULL DEFAULT 0,
    disabled INTEGER NOT NULL DEFAULT 0,
    claims TEXT NOT NULL DEFAULT '{}',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`)
	return err
}

func (p *LocalProvider) Disconnect() { _ = p.db.Close() }

// Keys exposes the signing key set, e.g. for serving the JWKS.
func (p *LocalProvider) Keys() *keys.Set { return p.keys }

func (p *LocalProvider) CreateAccount(ctx context.Context, email, password, displayName string) (*identity.Account, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, errors.New("local identity: email and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	_, err = p.db.ExecContext(ctx, `INSERT INTO accounts (id, email, password_hash, display_name) VALUES (?, ?, ?, ?)`,
		id, email, string(hash), displayName)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, identity.ErrEmailExists
		}
		return nil, err
	}
	return &identity.Account{ID: id, Email: email, DisplayName: displayName, Claims: map[string]any{}}, nil
}

func (p *LocalProvider) UpdateAccount(ctx context.Context, id string, u identity.AccountUpdate) (*identity.Account, error) {
	var sets []string
	var args []any
	if u.Email != nil {
		sets = append(sets, "email = ?", "email_verified = 0")
		args = append(args, strings.TrimSpace(*u.Email))
	}
	if u.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*u.Password), p.cfg.BcryptCost)
		if err != nil {
			return nil, err
		}
		sets = append(sets, "password_hash = ?")
		args = append(args, string(hash))
	}
	if u.DisplayName != nil {
		sets = append(sets, "display_name = ?")
		args = append(args, *u.DisplayName)
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
		args = append(args, id)
		res, err := p.db.ExecContext(ctx, `UPDATE accounts SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, identity.ErrEmailExists
			}
			return nil, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, identity.ErrAccountNotFound
		}
	}
	return p.GetAccount(ctx, id)
}

func (p *LocalProvider) DeleteAccount(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return identity.ErrAccountNotFound
	}
	return nil
}

func (p *LocalProvider) GetAccount(ctx context.Context, id string) (*identity.Account, error) {
	acc, _, err := p.scanOne(ctx, `WHERE id = ?`, id)
	return acc, err
}

func (p *LocalProvider) GetAccountByEmail(ctx context.Context, email string) (*identity.Account, error) {
	acc, _, err := p.scanOne(ctx, `WHERE email = ?`, strings.TrimSpace(email))
	return acc, err
}

func (p *LocalProvider) ListAccounts(ctx context.Context) ([]*identity.Account, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, email, display_name, email_verified, disabled, claims, password_hash FROM accounts ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*identity.Account
	for rows.Next() {
		acc, _, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

func (p *LocalProvider) SetCustomClaims(ctx context.Context, id string, claims map[string]any) error {
	if claims == nil {
		claims = map[string]any{}
	}
	raw, err := json.Marshal(claims)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `UPDATE accounts SET claims = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, string(raw), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return identity.ErrAccountNotFound
	}
	return nil
}

func (p *LocalProvider) VerifyPassword(ctx context.Context, email, password string) (*identity.Account, error) {
	acc, hash, err := p.scanOne(ctx, `WHERE email = ?`, strings.TrimSpace(email))
	if errors.Is(err, identity.ErrAccountNotFound) {
		return nil, identity.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if acc.Disabled {
		return nil, identity.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, identity.ErrInvalidCredentials
	}
	return acc, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (p *LocalProvider) scanOne(ctx context.Context, where string, args ...any) (*identity.Account, string, error) {
	row := p.db.QueryRowContext(ctx, `SELECT id, email, display_name, email_verified, disabled, claims, password_hash FROM accounts `+where, args...)
	acc, hash, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", identity.ErrAccountNotFound
	}
	return acc, hash, err
}

func scanAccount(s scanner) (*identity.Account, string, error) {
	var (
		acc       identity.Account
		verified  int
		disabled  int
		rawClaims string
		hash      string
	)
	if err := s.Scan(&acc.ID, &acc.Email, &acc.DisplayName, &verified, &disabled, &rawClaims, &hash); err != nil {
		return nil, "", err
	}
	acc.EmailVerified = verified == 1
	acc.Disabled = disabled == 1
	acc.Claims = map[string]any{}
	if rawClaims != "" {
		if err := json.Unmarshal([]byte(rawClaims), &acc.Claims); err != nil {
			return nil, "", fmt.Errorf("local identity: decode claims for %s: %w", acc.ID, err)
		}
	}
	return &acc, hash, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
