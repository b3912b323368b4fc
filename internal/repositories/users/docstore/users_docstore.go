package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/quipper/poc/sis/be/internal/repositories/refs"
	"github.com/quipper/poc/sis/be/pkg/common/logger"
	ds "github.com/quipper/poc/sis/be/pkg/docstore"
	"github.com/quipper/poc/sis/be/pkg/identity"
	"github.com/quipper/poc/sis/be/pkg/repositories/users"
)

// Collection is the mirror collection name.
const Collection = refs.Users

// RoleClaim is the custom claim carrying the user's role on the provider account.
const RoleClaim = "role"

// Repo writes to the identity provider first, then to the profile mirror.
// A failure between the two leaves drift that the reconciler repairs.
type Repo struct {
	idp  identity.Provider
	docs ds.Collection
}

var _ users.Repository = (*Repo)(nil)

func NewRepo(store ds.Store, idp identity.Provider) *Repo {
	return &Repo{idp: idp, docs: store.Collection(Collection)}
}

func (r *Repo) Create(ctx context.Context, u users.NewUser) (string, error) {
	if !u.Role.Valid() {
		return "", fmt.Errorf("invalid role %q", u.Role)
	}
	acc, err := r.idp.CreateAccount(ctx, u.Email, u.Password, u.Name)
	if err != nil {
		return "", err
	}
	if err := r.idp.SetCustomClaims(ctx, acc.ID, map[string]any{RoleClaim: string(u.Role)}); err != nil {
		return "", err
	}
	err = r.docs.Set(ctx, acc.ID, map[string]any{
		"id":        acc.ID,
		"email":     u.Email,
		"name":      u.Name,
		"role":      string(u.Role),
		"createdAt": ds.ServerTimestamp,
	})
	if err != nil {
		logger.Warn("users: account %s created without mirror: %v", acc.ID, err)
		return "", err
	}
	return acc.ID, nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (*users.User, error) {
	snap, err := r.docs.Get(ctx, id)
	if err != nil || snap == nil {
		return nil, err
	}
	return decode(snap)
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	snaps, err := r.docs.Where(ctx, ds.Eq("email", email))
	if err != nil || len(snaps) == 0 {
		return nil, err
	}
	return decode(snaps[0])
}

func (r *Repo) ListAll(ctx context.Context) ([]*users.User, error) {
	snaps, err := r.docs.All(ctx)
	if err != nil {
		return nil, err
	}
	return decodeAll(snaps)
}

func (r *Repo) Update(ctx context.Context, id string, p users.Patch) (bool, error) {
	snap, err := r.docs.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if snap == nil {
		return false, nil
	}
	if p.Role != nil && !p.Role.Valid() {
		return false, fmt.Errorf("invalid role %q", *p.Role)
	}

	acctUpdate := identity.AccountUpdate{Email: p.Email, Password: p.Password, DisplayName: p.Name}
	if acctUpdate.Empty() {
		_, err = r.idp.GetAccount(ctx, id)
	} else {
		_, err = r.idp.UpdateAccount(ctx, id, acctUpdate)
	}
	if err != nil {
		return false, err
	}
	if p.Role != nil {
		if err := r.idp.SetCustomClaims(ctx, id, map[string]any{RoleClaim: string(*p.Role)}); err != nil {
			return false, err
		}
	}

	updates := []ds.Update{{Path: "updatedAt", Value: ds.ServerTimestamp}}
	if p.Email != nil {
		updates = append(updates, ds.Update{Path: "email", Value: *p.Email})
	}
	if p.Name != nil {
		updates = append(updates, ds.Update{Path: "name", Value: *p.Name})
	}
	if p.Role != nil {
		updates = append(updates, ds.Update{Path: "role", Value: string(*p.Role)})
	}
	if err := r.docs.Update(ctx, id, updates); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes the account, then the mirror. An already-missing account
// does not block removing the mirror.
func (r *Repo) Delete(ctx context.Context, id string) (bool, error) {
	if err := r.idp.DeleteAccount(ctx, id); err != nil && !errors.Is(err, identity.ErrAccountNotFound) {
		return false, err
	}
	if err := r.docs.Delete(ctx, id); err != nil {
		logger.Warn("users: account %s deleted but mirror remains: %v", id, err)
		return false, err
	}
	return true, nil
}

func decode(snap *ds.Snapshot) (*users.User, error) {
	var u users.User
	if err := snap.DataTo(&u); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", snap.ID, err)
	}
	u.ID = snap.ID
	return &u, nil
}

func decodeAll(snaps []*ds.Snapshot) ([]*users.User, error) {
	out := make([]*users.User, 0, len(snaps))
	for _, s := range snaps {
		u, err := decode(s)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}
