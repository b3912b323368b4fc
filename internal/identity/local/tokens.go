package local

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"

	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/quipper/poc/sis/be/pkg/identity"
)

const (
	modeResetPassword = "resetPassword"
	modeVerifyEmail   = "verifyEmail"
)

// IssueSessionToken signs an RS256 JWT whose subject is the account id.
// Custom claims are copied in at issue time.
func (p *LocalProvider) IssueSessionToken(ctx context.Context, id string) (string, error) {
	acc, err := p.GetAccount(ctx, id)
	if err != nil {
		return "", err
	}
	now := p.now()
	b := jwt.NewBuilder().
		Issuer(p.cfg.Issuer).
		Subject(acc.ID).
		IssuedAt(now).
		Expiration(now.Add(p.cfg.SessionTTL)).
		JwtID(uuid.NewString()).
		Claim("email", acc.Email)
	for k, v := range acc.Claims {
		b = b.Claim(k, v)
	}
	tok, err := b.Build()
	if err != nil {
		return "", err
	}
	hdrs := jws.NewHeaders()
	_ = hdrs.Set(jws.KeyIDKey, p.keys.Kid())
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, p.keys.PrivateKey(), jws.WithProtectedHeaders(hdrs)))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

func (p *LocalProvider) VerifySessionToken(ctx context.Context, token string) (*identity.Claims, error) {
	tok, err := jwt.Parse([]byte(token),
		jwt.WithKeySet(p.keys.PublicSet()),
		jwt.WithValidate(true),
		jwt.WithIssuer(p.cfg.Issuer),
		jwt.WithClock(jwt.ClockFunc(p.now)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", identity.ErrInvalidToken, err)
	}
	if tok.Subject() == "" {
		return nil, fmt.Errorf("%w: missing subject", identity.ErrInvalidToken)
	}
	c := &identity.Claims{
		AccountID: tok.Subject(),
		IssuedAt:  tok.IssuedAt(),
		ExpiresAt: tok.Expiration(),
		Custom:    map[string]any{},
	}
	for k, v := range tok.PrivateClaims() {
		if k == "email" {
			c.Email, _ = v.(string)
			continue
		}
		c.Custom[k] = v
	}
	return c, nil
}

type actionClaims struct {
	Mode  string `json:"mode"`
	Email string `json:"email"`
	// Fingerprint of the password hash; a reset code dies once the password changes.
	PasswordTag string `json:"pwt,omitempty"`
	gjwt.RegisteredClaims
}

func (p *LocalProvider) GeneratePasswordResetLink(ctx context.Context, email string) (string, error) {
	acc, hash, err := p.scanOne(ctx, `WHERE email = ?`, email)
	if err != nil {
		return "", err
	}
	return p.actionLink(modeResetPassword, acc, passwordTag(hash))
}

func (p *LocalProvider) GenerateEmailVerificationLink(ctx context.Context, email string) (string, error) {
	acc, err := p.GetAccountByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	return p.actionLink(modeVerifyEmail, acc, "")
}

func (p *LocalProvider) actionLink(mode string, acc *identity.Account, pwTag string) (string, error) {
	now := p.now()
	claims := actionClaims{
		Mode:        mode,
		Email:       acc.Email,
		PasswordTag: pwTag,
		RegisteredClaims: gjwt.RegisteredClaims{
			Issuer:    p.cfg.Issuer,
			Subject:   acc.ID,
			IssuedAt:  gjwt.NewNumericDate(now),
			ExpiresAt: gjwt.NewNumericDate(now.Add(p.cfg.ActionTTL)),
			ID:        uuid.NewString(),
		},
	}
	code, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte(p.cfg.ActionSecret))
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("mode", mode)
	q.Set("oobCode", code)
	base := p.cfg.ActionBaseURL
	if base == "" {
		base = "/auth/action"
	}
	return base + "?" + q.Encode(), nil
}

func (p *LocalProvider) parseAction(code, mode string) (*actionClaims, error) {
	claims := &actionClaims{}
	_, err := gjwt.ParseWithClaims(code, claims, func(t *gjwt.Token) (any, error) {
		return []byte(p.cfg.ActionSecret), nil
	},
		gjwt.WithValidMethods([]string{gjwt.SigningMethodHS256.Alg()}),
		gjwt.WithIssuer(p.cfg.Issuer),
		gjwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", identity.ErrInvalidToken, err)
	}
	if claims.Mode != mode {
		return nil, fmt.Errorf("%w: wrong action mode", identity.ErrInvalidToken)
	}
	return claims, nil
}

func (p *LocalProvider) ConfirmPasswordReset(ctx context.Context, code, newPassword string) error {
	if newPassword == "" {
		return errors.New("local identity: new password is required")
	}
	claims, err := p.parseAction(code, modeResetPassword)
	if err != nil {
		return err
	}
	_, hash, err := p.scanOne(ctx, `WHERE id = ?`, claims.Subject)
	if err != nil {
		return err
	}
	if passwordTag(hash) != claims.PasswordTag {
		return fmt.Errorf("%w: reset code already used", identity.ErrInvalidToken)
	}
	_, err = p.UpdateAccount(ctx, claims.Subject, identity.AccountUpdate{Password: &newPassword})
	return err
}

func (p *LocalProvider) ConfirmEmailVerification(ctx context.Context, code string) error {
	claims, err := p.parseAction(code, modeVerifyEmail)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `UPDATE accounts SET email_verified = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND email = ?`,
		claims.Subject, claims.Email)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: account email changed", identity.ErrInvalidToken)
	}
	return nil
}

func passwordTag(hash string) string {
	sum := sha256.Sum256([]byte(hash))
	return hex.EncodeToString(sum[:8])
}
