// Package reconcile repairs drift between identity-provider accounts and the
// user profile mirror left behind by partially failed user writes.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/quipper/poc/sis/be/internal/repositories/refs"
	usersdocstore "github.com/quipper/poc/sis/be/internal/repositories/users/docstore"
	"github.com/quipper/poc/sis/be/pkg/common/logger"
	ds "github.com/quipper/poc/sis/be/pkg/docstore"
	"github.com/quipper/poc/sis/be/pkg/identity"
	"github.com/quipper/poc/sis/be/pkg/repositories/users"
)

// Report counts the repairs of one run.
type Report struct {
	Restored int64 `json:"restored"`
	Removed  int64 `json:"removed"`
}

type Reconciler struct {
	idp   identity.Provider
	docs  ds.Collection
	limit int
}

func New(idp identity.Provider, store ds.Store, concurrency int) *Reconciler {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Reconciler{idp: idp, docs: store.Collection(refs.Users), limit: concurrency}
}

// Run restores mirrors for accounts that carry a role claim but have no
// profile, and removes profiles whose account no longer exists.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	var rep Report

	accounts, err := r.idp.ListAccounts(ctx)
	if err != nil {
		return rep, fmt.Errorf("list accounts: %w", err)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.limit)
	for _, acc := range accounts {
		g.Go(func() error {
			restored, err := r.restore(gctx, acc)
			if restored {
				atomic.AddInt64(&rep.Restored, 1)
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return rep, err
	}

	mirrors, err := r.docs.All(ctx)
	if err != nil {
		return rep, fmt.Errorf("list profiles: %w", err)
	}
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(r.limit)
	for _, snap := range mirrors {
		g.Go(func() error {
			removed, err := r.prune(gctx, snap.ID)
			if removed {
				atomic.AddInt64(&rep.Removed, 1)
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return rep, err
	}
	logger.Info("reconcile: restored %d, removed %d", rep.Restored, rep.Removed)
	return rep, nil
}

func (r *Reconciler) restore(ctx context.Context, acc *identity.Account) (bool, error) {
	raw, _ := acc.Claims[usersdocstore.RoleClaim].(string)
	role := users.Role(raw)
	if !role.Valid() {
		return false, nil
	}
	snap, err := r.docs.Get(ctx, acc.ID)
	if err != nil || snap != nil {
		return false, err
	}
	err = r.docs.Set(ctx, acc.ID, map[string]any{
		"id":        acc.ID,
		"email":     acc.Email,
		"name":      acc.DisplayName,
		"role":      raw,
		"createdAt": ds.ServerTimestamp,
	})
	if err != nil {
		return false, fmt.Errorf("restore profile %s: %w", acc.ID, err)
	}
	logger.Warn("reconcile: restored missing profile %s", acc.ID)
	return true, nil
}

// prune re-reads the account before deleting so a user created mid-run survives.
func (r *Reconciler) prune(ctx context.Context, id string) (bool, error) {
	_, err := r.idp.GetAccount(ctx, id)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, identity.ErrAccountNotFound) {
		return false, err
	}
	if err := r.docs.Delete(ctx, id); err != nil {
		return false, fmt.Errorf("remove orphan profile %s: %w", id, err)
	}
	logger.Warn("reconcile: removed orphan profile %s", id)
	return true, nil
}
