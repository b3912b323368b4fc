package docstore

import (
	"context"
	"fmt"

	"github.com/quipper/poc/sis/be/internal/repositories/refs"
	ds "github.com/quipper/poc/sis/be/pkg/docstore"
	"github.com/quipper/poc/sis/be/pkg/repositories"
	"github.com/quipper/poc/sis/be/pkg/repositories/grades"
	"github.com/quipper/poc/sis/be/pkg/repositories/groups"
)

type Repo struct {
	store ds.Store
	docs  ds.Collection
}

var _ grades.Repository = (*Repo)(nil)

func NewRepo(store ds.Store) *Repo {
	return &Repo{store: store, docs: store.Collection(refs.Grades)}
}

// Create checks, in order: the student, the group, then membership.
func (r *Repo) Create(ctx context.Context, studentID, groupID, issuerID, value string) (*grades.Grade, error) {
	if err := r.requireStudent(ctx, studentID); err != nil {
		return nil, err
	}
	g, err := r.requireGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !g.HasStudent(studentID) {
		return nil, fmt.Errorf("%w: student %s, group %s", repositories.ErrStudentNotInGroup, studentID, groupID)
	}

	id := r.docs.NewID()
	err = r.docs.Set(ctx, id, map[string]any{
		"id":        id,
		"studentId": studentID,
		"groupId":   groupID,
		"issuerId":  issuerID,
		"value":     value,
		"createdAt": ds.ServerTimestamp,
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *Repo) GetByID(ctx context.Context, id string) (*grades.Grade, error) {
	snap, err := r.docs.Get(ctx, id)
	if err != nil || snap == nil {
		return nil, err
	}
	return decode(snap)
}

func (r *Repo) ListAll(ctx context.Context) ([]*grades.Grade, error) {
	snaps, err := r.docs.All(ctx)
	if err != nil {
		return nil, err
	}
	return decodeAll(snaps)
}

func (r *Repo) ListByStudent(ctx context.Context, studentID string) ([]*grades.Grade, error) {
	snaps, err := r.docs.Where(ctx, ds.Eq("studentId", studentID))
	if err != nil {
		return nil, err
	}
	return decodeAll(snaps)
}

func (r *Repo) ListByGroup(ctx context.Context, groupID string) ([]*grades.Grade, error) {
	snaps, err := r.docs.Where(ctx, ds.Eq("groupId", groupID))
	if err != nil {
		return nil, err
	}
	return decodeAll(snaps)
}

// Update re-verifies membership against the effective student and group on
// every non-empty patch. An empty patch succeeds without writing.
func (r *Repo) Update(ctx context.Context, id string, p grades.Patch) (bool, error) {
	cur, err := r.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if cur == nil {
		return false, fmt.Errorf("%w: %s", repositories.ErrGradeNotFound, id)
	}
	if p.Empty() {
		return true, nil
	}

	studentID, groupID := cur.StudentID, cur.GroupID
	if p.StudentID != nil {
		if err := r.requireStudent(ctx, *p.StudentID); err != nil {
			return false, err
		}
		studentID = *p.StudentID
	}
	var staged *groups.Group
	if p.GroupID != nil {
		if staged, err = r.requireGroup(ctx, *p.GroupID); err != nil {
			return false, err
		}
		groupID = *p.GroupID
	}
	g := staged
	if g == nil {
		if g, err = r.requireGroup(ctx, groupID); err != nil {
			return false, err
		}
	}
	if !g.HasStudent(studentID) {
		return false, fmt.Errorf("%w: student %s, group %s", repositories.ErrStudentNotInGroup, studentID, groupID)
	}

	updates := []ds.Update{{Path: "updatedAt", Value: ds.ServerTimestamp}}
	if p.StudentID != nil {
		updates = append(updates, ds.Update{Path: "studentId", Value: *p.StudentID})
	}
	if p.GroupID != nil {
		updates = append(updates, ds.Update{Path: "groupId", Value: *p.GroupID})
	}
	if p.IssuerID != nil {
		updates = append(updates, ds.Update{Path: "issuerId", Value: *p.IssuerID})
	}
	if p.Value != nil {
		updates = append(updates, ds.Update{Path: "value", Value: *p.Value})
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

// requireStudent checks existence only; group membership decides eligibility.
func (r *Repo) requireStudent(ctx context.Context, id string) error {
	u, err := refs.User(ctx, r.store, id)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("%w: %s", repositories.ErrStudentNotFound, id)
	}
	return nil
}

func (r *Repo) requireGroup(ctx context.Context, id string) (*groups.Group, error) {
	g, err := refs.Group(ctx, r.store, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, fmt.Errorf("%w: %s", repositories.ErrGroupNotFound, id)
	}
	return g, nil
}

func decode(snap *ds.Snapshot) (*grades.Grade, error) {
	var g grades.Grade
	if err := snap.DataTo(&g); err != nil {
		return nil, fmt.Errorf("decode grade %s: %w", snap.ID, err)
	}
	g.ID = snap.ID
	return &g, nil
}

func decodeAll(snaps []*ds.Snapshot) ([]*grades.Grade, error) {
	out := make([]*grades.Grade, 0, len(snaps))
	for _, s := range snaps {
		g, err := decode(s)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}
