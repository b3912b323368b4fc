package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	usersdocstore "github.com/quipper/poc/sis/be/internal/repositories/users/docstore"
	"github.com/quipper/poc/sis/be/internal/testutil"
	"github.com/quipper/poc/sis/be/pkg/repositories/users"
)

func TestRunRepairsDrift(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	idp := testutil.NewProvider(t)
	repo := usersdocstore.NewRepo(store, idp)

	// account with role claim but no profile
	orphanAcc, err := idp.CreateAccount(ctx, "lee@uni.test", "pw", "Lee")
	require.NoError(t, err)
	require.NoError(t, idp.SetCustomClaims(ctx, orphanAcc.ID, map[string]any{usersdocstore.RoleClaim: "lecturer"}))

	// account without a role claim is left alone
	_, err = idp.CreateAccount(ctx, "half@uni.test", "pw", "Half")
	require.NoError(t, err)

	// profile without an account
	testutil.SeedUser(t, store, "ghost", users.RoleStudent)

	// consistent user
	okID, err := repo.Create(ctx, users.NewUser{Email: "ana@uni.test", Password: "pw", Name: "Ana", Role: users.RoleStudent})
	require.NoError(t, err)

	rep, err := New(idp, store, 2).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, Report{Restored: 1, Removed: 1}, rep)

	u, err := repo.GetByID(ctx, orphanAcc.ID)
	require.NoError(t, err)
	require.Equal(t, users.RoleLecturer, u.Role)
	require.Equal(t, "Lee", u.Name)

	ghost, err := repo.GetByID(ctx, "ghost")
	require.NoError(t, err)
	require.Nil(t, ghost)

	ana, err := repo.GetByID(ctx, okID)
	require.NoError(t, err)
	require.NotNil(t, ana)

	rep, err = New(idp, store, 0).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, Report{}, rep)
}
