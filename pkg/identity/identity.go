// Package identity defines the identity-provider contract: account management,
// custom claims, session tokens and out-of-band action links.
package identity

import (
	"context"
	"errors"
	"time"
)

var (
	ErrAccountNotFound    = errors.New("identity: account not found")
	ErrEmailExists        = errors.New("identity: email already in use")
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	ErrInvalidToken       = errors.New("identity: invalid or expired token")
)

// Account is the provider-side record of a user.
type Account struct {
	ID            string
	Email         string
	DisplayName   string
	EmailVerified bool
	Disabled      bool
	Claims        map[string]any
}

// AccountUpdate carries the fields to change; nil fields are left alone.
type AccountUpdate struct {
	Email       *string
	Password    *string
	DisplayName *string
}

// Empty reports whether no field is set.
func (u AccountUpdate) Empty() bool {
	return u.Email == nil && u.Password == nil && u.DisplayName == nil
}

// Claims is the verified content of a session token.
type Claims struct {
	AccountID string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Custom    map[string]any
}

// Provider is the identity backend the user repository and session flow depend on.
type Provider interface {
	CreateAccount(ctx context.Context, email, password, displayName string) (*Account, error)
	UpdateAccount(ctx context.Context, id string, u AccountUpdate) (*Account, error)
	DeleteAccount(ctx context.Context, id string) error
	// GetAccount and GetAccountByEmail return ErrAccountNotFound when absent.
	GetAccount(ctx context.Context, id string) (*Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
	ListAccounts(ctx context.Context) ([]*Account, error)
	// SetCustomClaims replaces the account's custom claims.
	SetCustomClaims(ctx context.Context, id string, claims map[string]any) error

	// VerifyPassword returns ErrInvalidCredentials on a mismatch.
	VerifyPassword(ctx context.Context, email, password string) (*Account, error)
	IssueSessionToken(ctx context.Context, id string) (string, error)
	// VerifySessionToken returns ErrInvalidToken for malformed, forged or expired tokens.
	VerifySessionToken(ctx context.Context, token string) (*Claims, error)

	GeneratePasswordResetLink(ctx context.Context, email string) (string, error)
	GenerateEmailVerificationLink(ctx context.Context, email string) (string, error)
}

// ActionConfirmer is implemented by providers that consume their own action links.
type ActionConfirmer interface {
	ConfirmPasswordReset(ctx context.Context, code, newPassword string) error
	ConfirmEmailVerification(ctx context.Context, code string) error
}
