package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quipper/poc/sis/be/pkg/identity"
	"github.com/quipper/poc/sis/be/pkg/repositories/users"
)

// ctxCheckingProvider fails verification when handed a cancelled context.
type ctxCheckingProvider struct {
	identity.Provider
}

func (p ctxCheckingProvider) VerifySessionToken(ctx context.Context, token string) (*identity.Claims, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.Provider.VerifySessionToken(ctx, token)
}

func TestLoginReturnsSessionWithProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "ana", users.RoleRegistrar)

	sess := f.session.Login(ctx, "ana@uni.test", "secret-ana")
	require.NotNil(t, sess)
	require.Equal(t, u.ID, sess.ID)
	require.Equal(t, "ana@uni.test", sess.Email)
	require.NotEmpty(t, sess.Token)
	require.Equal(t, users.RoleRegistrar, *sess.Role)
	require.Equal(t, "ana", *sess.Name)

	require.Nil(t, f.session.Login(ctx, "ana@uni.test", "wrong"))
	require.Nil(t, f.session.Login(ctx, "nobody@uni.test", "secret-ana"))

	rec := httptest.NewRecorder()
	f.metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Contains(t, rec.Body.String(), `sis_logins_total{result="ok"} 1`)
	require.Contains(t, rec.Body.String(), `sis_logins_total{result="denied"} 2`)
}

func TestVerifyTokenAndLogout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "sam", users.RoleStudent)
	sess := f.session.Login(ctx, "sam@uni.test", "secret-sam")
	require.NotNil(t, sess)

	got := f.session.VerifyToken(ctx, sess.Token)
	require.NotNil(t, got)
	require.Equal(t, u.ID, got.ID)

	// second call is served from the cache
	got = f.session.VerifyToken(ctx, sess.Token)
	require.NotNil(t, got)

	require.Nil(t, f.session.VerifyToken(ctx, ""))
	require.Nil(t, f.session.VerifyToken(ctx, "not-a-token"))

	require.NoError(t, f.session.Logout(ctx, sess.Token))
	require.Nil(t, f.session.VerifyToken(ctx, sess.Token))
	require.Error(t, f.session.Logout(ctx, "not-a-token"))
}

func TestVerifyTokenReflectsProfileChanges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "sam", users.RoleStudent)
	sess := f.session.Login(ctx, "sam@uni.test", "secret-sam")
	require.NotNil(t, sess)
	require.NotNil(t, f.session.VerifyToken(ctx, sess.Token))

	role := users.RoleLecturer
	_, err := f.users.Update(ctx, u.ID, users.Patch{Role: &role})
	require.NoError(t, err)
	require.Equal(t, users.RoleLecturer, f.session.VerifyToken(ctx, sess.Token).Role)

	_, err = f.users.Delete(ctx, u.ID)
	require.NoError(t, err)
	require.Nil(t, f.session.VerifyToken(ctx, sess.Token))
}

func TestPasswordResetFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "ana", users.RoleStudent)

	link, err := f.session.PasswordResetLink(ctx, "ana@uni.test")
	require.NoError(t, err)
	parsed, err := url.Parse(link)
	require.NoError(t, err)
	code := parsed.Query().Get("oobCode")
	require.NotEmpty(t, code)

	require.NoError(t, f.session.ConfirmPasswordReset(ctx, code, "brand-new"))
	require.Nil(t, f.session.Login(ctx, "ana@uni.test", "secret-ana"))
	require.NotNil(t, f.session.Login(ctx, "ana@uni.test", "brand-new"))

	_, err = f.session.EmailVerificationLink(ctx, "nobody@uni.test")
	require.Error(t, err)
}

func TestSharedVerificationIgnoresCallerCancellation(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "sam", users.RoleStudent)
	sess := f.session.Login(context.Background(), "sam@uni.test", "secret-sam")
	require.NotNil(t, sess)

	s := NewSessionService(SessionDeps{Provider: ctxCheckingProvider{f.session.d.Provider}, Users: f.session.d.Users})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	id, err := s.accountFor(ctx, sess.Token, tokenDigest(sess.Token))
	require.NoError(t, err)
	require.Equal(t, u.ID, id)
}
