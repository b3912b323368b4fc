package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quipper/poc/sis/be/internal/testutil"
	"github.com/quipper/poc/sis/be/pkg/identity"
	"github.com/quipper/poc/sis/be/pkg/repositories/users"
)

func TestCreateWritesAccountClaimAndMirror(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	idp := testutil.NewProvider(t)
	repo := NewRepo(store, idp)

	id, err := repo.Create(ctx, users.NewUser{Email: "ana@uni.test", Password: "pw", Name: "Ana", Role: users.RoleStudent})
	require.NoError(t, err)

	acc, err := idp.GetAccount(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "student", acc.Claims[RoleClaim])
	require.Equal(t, "Ana", acc.DisplayName)

	u, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, id, u.ID)
	require.Equal(t, "ana@uni.test", u.Email)
	require.Equal(t, users.RoleStudent, u.Role)
	require.False(t, u.CreatedAt.IsZero())
	require.Nil(t, u.UpdatedAt)

	byEmail, err := repo.GetByEmail(ctx, "ana@uni.test")
	require.NoError(t, err)
	require.Equal(t, id, byEmail.ID)
}

func TestCreateRejectsUnknownRole(t *testing.T) {
	repo := NewRepo(testutil.NewStore(t), testutil.NewProvider(t))
	_, err := repo.Create(context.Background(), users.NewUser{Email: "x@uni.test", Password: "pw", Role: "dean"})
	require.Error(t, err)
}

func TestGetAbsentReturnsNil(t *testing.T) {
	repo := NewRepo(testutil.NewStore(t), testutil.NewProvider(t))
	u, err := repo.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	require.Nil(t, u)

	u, err = repo.GetByEmail(context.Background(), "missing@uni.test")
	require.NoError(t, err)
	require.Nil(t, u)
}

func TestUpdateAbsentReturnsFalse(t *testing.T) {
	repo := NewRepo(testutil.NewStore(t), testutil.NewProvider(t))
	ok, err := repo.Update(context.Background(), "missing", users.Patch{Name: testutil.Ptr("x")})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestUpdateRoleAndNamePropagates(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	idp := testutil.NewProvider(t)
	repo := NewRepo(store, idp)
	id, err := repo.Create(ctx, users.NewUser{Email: "bo@uni.test", Password: "pw", Name: "Bo", Role: users.RoleStudent})
	require.NoError(t, err)

	role := users.RoleLecturer
	ok, err := repo.Update(ctx, id, users.Patch{Name: testutil.Ptr("Dr Bo"), Role: &role, Password: testutil.Ptr("pw2")})
	require.NoError(t, err)
	require.True(t, ok)

	u, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Dr Bo", u.Name)
	require.Equal(t, users.RoleLecturer, u.Role)
	require.NotNil(t, u.UpdatedAt)

	acc, err := idp.GetAccount(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "lecturer", acc.Claims[RoleClaim])
	require.Equal(t, "Dr Bo", acc.DisplayName)

	_, err = idp.VerifyPassword(ctx, "bo@uni.test", "pw2")
	require.NoError(t, err)
}

func TestUpdateFailsWhenAccountMissing(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	repo := NewRepo(store, testutil.NewProvider(t))
	testutil.SeedUser(t, store, "orphan", users.RoleStudent)

	_, err := repo.Update(ctx, "orphan", users.Patch{Name: testutil.Ptr("x")})
	require.ErrorIs(t, err, identity.ErrAccountNotFound)
}

func TestDeleteRemovesBoth(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	idp := testutil.NewProvider(t)
	repo := NewRepo(store, idp)
	id, err := repo.Create(ctx, users.NewUser{Email: "cy@uni.test", Password: "pw", Name: "Cy", Role: users.RoleRegistrar})
	require.NoError(t, err)

	ok, err := repo.Delete(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = idp.GetAccount(ctx, id)
	require.ErrorIs(t, err, identity.ErrAccountNotFound)
	u, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.Nil(t, u)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}
