package local

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/quipper/poc/sis/be/pkg/common/keys"
	"github.com/quipper/poc/sis/be/pkg/identity"
)

func newProvider(t *testing.T) *LocalProvider {
	t.Helper()
	ks, err := keys.Load(keys.Source{Kid: "test"})
	require.NoError(t, err)
	p, err := NewLocalProvider(filepath.Join(t.TempDir(), "identity.db"), ks, Config{
		ActionSecret:  "secret",
		ActionBaseURL: "https://sis.example.test/auth/action",
		BcryptCost:    bcrypt.MinCost,
	})
	require.NoError(t, err)
	t.Cleanup(p.Disconnect)
	return p
}

func oobCode(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("oobCode")
}

func TestAccountLifecycle(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)

	acc, err := p.CreateAccount(ctx, "ana@uni.test", "pw1", "Ana")
	require.NoError(t, err)
	require.NotEmpty(t, acc.ID)

	_, err = p.CreateAccount(ctx, "ANA@uni.test", "pw2", "Dup")
	require.ErrorIs(t, err, identity.ErrEmailExists)

	require.NoError(t, p.SetCustomClaims(ctx, acc.ID, map[string]any{"role": "student"}))
	got, err := p.GetAccountByEmail(ctx, "ana@uni.test")
	require.NoError(t, err)
	require.Equal(t, "student", got.Claims["role"])

	name := "Ana Maria"
	got, err = p.UpdateAccount(ctx, acc.ID, identity.AccountUpdate{DisplayName: &name})
	require.NoError(t, err)
	require.Equal(t, "Ana Maria", got.DisplayName)

	list, err := p.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, p.DeleteAccount(ctx, acc.ID))
	_, err = p.GetAccount(ctx, acc.ID)
	require.ErrorIs(t, err, identity.ErrAccountNotFound)
	require.ErrorIs(t, p.DeleteAccount(ctx, acc.ID), identity.ErrAccountNotFound)
}

func TestVerifyPassword(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)
	_, err := p.CreateAccount(ctx, "bo@uni.test", "correct", "Bo")
	require.NoError(t, err)

	acc, err := p.VerifyPassword(ctx, "bo@uni.test", "correct")
	require.NoError(t, err)
	require.Equal(t, "bo@uni.test", acc.Email)

	_, err = p.VerifyPassword(ctx, "bo@uni.test", "wrong")
	require.ErrorIs(t, err, identity.ErrInvalidCredentials)
	_, err = p.VerifyPassword(ctx, "nobody@uni.test", "correct")
	require.ErrorIs(t, err, identity.ErrInvalidCredentials)
}

func TestSessionTokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)
	acc, err := p.CreateAccount(ctx, "cy@uni.test", "pw", "Cy")
	require.NoError(t, err)
	require.NoError(t, p.SetCustomClaims(ctx, acc.ID, map[string]any{"role": "lecturer"}))

	tok, err := p.IssueSessionToken(ctx, acc.ID)
	require.NoError(t, err)

	claims, err := p.VerifySessionToken(ctx, tok)
	require.NoError(t, err)
	require.Equal(t, acc.ID, claims.AccountID)
	require.Equal(t, "cy@uni.test", claims.Email)
	require.Equal(t, "lecturer", claims.Custom["role"])
	require.True(t, claims.ExpiresAt.After(claims.IssuedAt))

	_, err = p.VerifySessionToken(ctx, tok+"x")
	require.ErrorIs(t, err, identity.ErrInvalidToken)

	p.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = p.VerifySessionToken(ctx, tok)
	require.ErrorIs(t, err, identity.ErrInvalidToken)
}

func TestSessionTokenFromOtherKeyRejected(t *testing.T) {
	ctx := context.Background()
	a := newProvider(t)
	b := newProvider(t)
	acc, err := a.CreateAccount(ctx, "d@uni.test", "pw", "D")
	require.NoError(t, err)
	tok, err := a.IssueSessionToken(ctx, acc.ID)
	require.NoError(t, err)

	_, err = b.VerifySessionToken(ctx, tok)
	require.ErrorIs(t, err, identity.ErrInvalidToken)
}

func TestPasswordResetIsSingleUse(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)
	_, err := p.CreateAccount(ctx, "e@uni.test", "old", "E")
	require.NoError(t, err)

	link, err := p.GeneratePasswordResetLink(ctx, "e@uni.test")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(link, "https://sis.example.test/auth/action?"))
	code := oobCode(t, link)

	require.ErrorIs(t, p.ConfirmEmailVerification(ctx, code), identity.ErrInvalidToken)

	require.NoError(t, p.ConfirmPasswordReset(ctx, code, "new"))
	_, err = p.VerifyPassword(ctx, "e@uni.test", "new")
	require.NoError(t, err)

	require.ErrorIs(t, p.ConfirmPasswordReset(ctx, code, "newer"), identity.ErrInvalidToken)
}

func TestEmailVerification(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)
	acc, err := p.CreateAccount(ctx, "f@uni.test", "pw", "F")
	require.NoError(t, err)

	_, err = p.GenerateEmailVerificationLink(ctx, "ghost@uni.test")
	require.ErrorIs(t, err, identity.ErrAccountNotFound)

	link, err := p.GenerateEmailVerificationLink(ctx, "f@uni.test")
	require.NoError(t, err)
	require.NoError(t, p.ConfirmEmailVerification(ctx, oobCode(t, link)))

	got, err := p.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	require.True(t, got.EmailVerified)
}
