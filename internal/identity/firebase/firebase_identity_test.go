package firebase

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/require"
)

func TestToAccountCopiesClaims(t *testing.T) {
	rec := &auth.UserRecord{
		UserInfo:      &auth.UserInfo{UID: "u1", Email: "a@uni.test", DisplayName: "A"},
		EmailVerified: true,
		CustomClaims:  map[string]interface{}{"role": "registrar"},
	}
	acc := toAccount(rec)
	require.Equal(t, "u1", acc.ID)
	require.Equal(t, "a@uni.test", acc.Email)
	require.True(t, acc.EmailVerified)
	require.Equal(t, "registrar", acc.Claims["role"])

	acc.Claims["role"] = "student"
	require.Equal(t, "registrar", rec.CustomClaims["role"])
}

func TestMapErrPassesThroughUnknown(t *testing.T) {
	require.NoError(t, mapErr(nil))
	boom := errors.New("boom")
	require.Same(t, boom, mapErr(boom))
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := NewFirebaseProvider(context.Background(), Config{ProjectID: "p"})
	require.Error(t, err)
}
