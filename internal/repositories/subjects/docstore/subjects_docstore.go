package docstore

import (
	"context"
	"fmt"

	"github.com/quipper/poc/sis/be/internal/repositories/refs"
	ds "github.com/quipper/poc/sis/be/pkg/docstore"
	"github.com/quipper/poc/sis/be/pkg/repositories/subjects"
)

const Collection = refs.Subjects

type Repo struct {
	docs ds.Collection
}

var _ subjects.Repository = (*Repo)(nil)

func NewRepo(store ds.Store) *Repo {
	return &Repo{docs: store.Collection(Collection)}
}

func (r *Repo) Create(ctx context.Context, name, description string) (*subjects.Subject, error) {
	id := r.docs.NewID()
	err := r.docs.Set(ctx, id, map[string]any{
		"id":          id,
		"name":        name,
		"description": description,
		"createdAt":   ds.ServerTimestamp,
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *Repo) GetByID(ctx context.Context, id string) (*subjects.Subject, error) {
	snap, err := r.docs.Get(ctx, id)
	if err != nil || snap == nil {
		return nil, err
	}
	return decode(snap)
}

func (r *Repo) ListAll(ctx context.Context) ([]*subjects.Subject, error) {
	snaps, err := r.docs.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*subjects.Subject, 0, len(snaps))
	for _, s := range snaps {
		sub, err := decode(s)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, nil
}

// Update returns false when the subject does not exist.
func (r *Repo) Update(ctx context.Context, id string, p subjects.Patch) (bool, error) {
	snap, err := r.docs.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if snap == nil {
		return false, nil
	}
	updates := []ds.Update{{Path: "updatedAt", Value: ds.ServerTimestamp}}
	if p.Name != nil {
		updates = append(updates, ds.Update{Path: "name", Value: *p.Name})
	}
	if p.Description != nil {
		updates = append(updates, ds.Update{Path: "description", Value: *p.Description})
	}
	if err := r.docs.Update(ctx, id, updates); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repo) Delete(ctx context.Context, id string) (bool, error) {
	if err := r.docs.Delete(ctx, id); err != nil {
		return false, err
	}
	return true, nil
}

func decode(snap *ds.Snapshot) (*subjects.Subject, error) {
	var s subjects.Subject
	if err := snap.DataTo(&s); err != nil {
		return nil, fmt.Errorf("decode subject %s: %w", snap.ID, err)
	}
	s.ID = snap.ID
	return &s, nil
}
