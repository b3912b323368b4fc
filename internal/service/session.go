package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/quipper/poc/sis/be/pkg/common/cache"
	"github.com/quipper/poc/sis/be/pkg/common/logger"
	"github.com/quipper/poc/sis/be/pkg/common/mailer"
	"github.com/quipper/poc/sis/be/pkg/common/metrics"
	"github.com/quipper/poc/sis/be/pkg/identity"
	"github.com/quipper/poc/sis/be/pkg/repositories/revocation"
	"github.com/quipper/poc/sis/be/pkg/repositories/users"
)

var (
	ErrLogoutUnsupported  = errors.New("session revocation is not configured")
	ErrActionsUnsupported = errors.New("identity provider handles its own action links")
)

// Session is the result of a successful login. Role and Name are nil when
// the account has no profile mirror.
type Session struct {
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Token string      `json:"token"`
	Role  *users.Role `json:"role"`
	Name  *string     `json:"name"`
}

// SessionDeps wires the session flow. Revoked, Cache, Mailer and Metrics are optional.
type SessionDeps struct {
	Provider identity.Provider
	Users    users.Repository
	Revoked  revocation.Repository
	Cache    cache.Client
	Mailer   mailer.Sender
	Metrics  *metrics.Metrics
	// CacheTTL caps how long a verified token is trusted without re-verification.
	CacheTTL time.Duration
}

type SessionService struct {
	d   SessionDeps
	sf  singleflight.Group
	now func() time.Time
}

func NewSessionService(d SessionDeps) *SessionService {
	if d.CacheTTL <= 0 {
		d.CacheTTL = 5 * time.Minute
	}
	return &SessionService{d: d, now: time.Now}
}

// Login verifies the password and issues a session token. Any failure,
// including an upstream error, yields nil.
func (s *SessionService) Login(ctx context.Context, email, password string) *Session {
	sess, err := s.login(ctx, email, password)
	if err != nil {
		logger.Info("login denied for %s: %v", email, err)
		s.d.Metrics.Login("denied")
		return nil
	}
	s.d.Metrics.Login("ok")
	return sess
}

func (s *SessionService) login(ctx context.Context, email, password string) (*Session, error) {
	acc, err := s.d.Provider.GetAccountByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if _, err := s.d.Provider.VerifyPassword(ctx, email, password); err != nil {
		return nil, err
	}
	token, err := s.d.Provider.IssueSessionToken(ctx, acc.ID)
	if err != nil {
		return nil, err
	}
	u, err := s.d.Users.GetByID(ctx, acc.ID)
	if err != nil {
		return nil, err
	}
	sess := &Session{ID: acc.ID, Email: acc.Email, Token: token}
	if u != nil {
		role, name := u.Role, u.Name
		sess.Role, sess.Name = &role, &name
	}
	return sess, nil
}

// VerifyToken returns the profile of the token's owner, or nil when the
// token is invalid, revoked, or its owner has no profile.
func (s *SessionService) VerifyToken(ctx context.Context, token string) *users.User {
	if token == "" {
		return nil
	}
	digest := tokenDigest(token)
	if s.d.Revoked != nil {
		revoked, err := s.d.Revoked.IsRevoked(ctx, digest)
		if err != nil {
			logger.Error("verify token: revocation lookup: %v", err)
			return nil
		}
		if revoked {
			return nil
		}
	}
	accountID, err := s.accountFor(ctx, token, digest)
	if err != nil {
		logger.Debug("verify token: %v", err)
		return nil
	}
	u, err := s.d.Users.GetByID(ctx, accountID)
	if err != nil {
		logger.Error("verify token: load profile %s: %v", accountID, err)
		return nil
	}
	return u
}

// accountFor resolves the token to an account id through the cache,
// collapsing concurrent verifications of the same token. The shared call
// outlives the first caller's cancellation.
func (s *SessionService) accountFor(ctx context.Context, token, digest string) (string, error) {
	key := "session:" + digest
	if s.d.Cache != nil {
		if id, err := s.d.Cache.Get(ctx, key); err == nil {
			return id, nil
		}
	}
	v, err, _ := s.sf.Do(digest, func() (any, error) {
		ctx := context.WithoutCancel(ctx)
		claims, err := s.d.Provider.VerifySessionToken(ctx, token)
		if err != nil {
			return "", err
		}
		if s.d.Cache != nil {
			ttl := s.d.CacheTTL
			if left := claims.ExpiresAt.Sub(s.now()); left < ttl {
				ttl = left
			}
			if ttl > 0 {
				if err := s.d.Cache.Set(ctx, key, claims.AccountID, ttl); err != nil {
					logger.Warn("verify token: cache set: %v", err)
				}
			}
		}
		return claims.AccountID, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Logout revokes a valid token until it would have expired anyway.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	if s.d.Revoked == nil {
		return ErrLogoutUnsupported
	}
	claims, err := s.d.Provider.VerifySessionToken(ctx, token)
	if err != nil {
		return err
	}
	digest := tokenDigest(token)
	if err := s.d.Revoked.Revoke(ctx, digest, claims.ExpiresAt); err != nil {
		return err
	}
	if s.d.Cache != nil {
		_ = s.d.Cache.Delete(ctx, "session:"+digest)
	}
	return nil
}

// PasswordResetLink generates a reset link and mails it when SMTP is configured.
func (s *SessionService) PasswordResetLink(ctx context.Context, email string) (string, error) {
	link, err := s.d.Provider.GeneratePasswordResetLink(ctx, email)
	if err != nil {
		return "", err
	}
	s.deliver(email, "Reset your password", "Use this link to set a new password: "+link, link)
	return link, nil
}

// EmailVerificationLink generates a verification link and mails it when SMTP is configured.
func (s *SessionService) EmailVerificationLink(ctx context.Context, email string) (string, error) {
	link, err := s.d.Provider.GenerateEmailVerificationLink(ctx, email)
	if err != nil {
		return "", err
	}
	s.deliver(email, "Verify your email address", "Use this link to verify your address: "+link, link)
	return link, nil
}

func (s *SessionService) deliver(to, subject, text, link string) {
	if s.d.Mailer == nil {
		return
	}
	html := fmt.Sprintf(`<p>%s</p><p><a href="%s">%s</a></p>`, subject, link, link)
	if err := s.d.Mailer.Send(to, subject, html, text); err != nil {
		logger.Warn("deliver %q to %s: %v", subject, to, err)
	}
}

func (s *SessionService) ConfirmPasswordReset(ctx context.Context, code, newPassword string) error {
	c, ok := s.d.Provider.(identity.ActionConfirmer)
	if !ok {
		return ErrActionsUnsupported
	}
	return c.ConfirmPasswordReset(ctx, code, newPassword)
}

func (s *SessionService) ConfirmEmailVerification(ctx context.Context, code string) error {
	c, ok := s.d.Provider.(identity.ActionConfirmer)
	if !ok {
		return ErrActionsUnsupported
	}
	return c.ConfirmEmailVerification(ctx, code)
}

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
