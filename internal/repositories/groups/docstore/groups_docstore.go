package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/quipper/poc/sis/be/internal/repositories/refs"
	ds "github.com/quipper/poc/sis/be/pkg/docstore"
	"github.com/quipper/poc/sis/be/pkg/repositories"
	"github.com/quipper/poc/sis/be/pkg/repositories/groups"
	"github.com/quipper/poc/sis/be/pkg/repositories/users"
)

type Repo struct {
	store ds.Store
	docs  ds.Collection
}

var _ groups.Repository = (*Repo)(nil)

func NewRepo(store ds.Store) *Repo {
	return &Repo{store: store, docs: store.Collection(refs.Groups)}
}

// Create checks the subject only; the lecturer, if any, is stored as given.
func (r *Repo) Create(ctx context.Context, name, subjectID string, lecturerID *string) (*groups.Group, error) {
	if err := refs.RequireSubject(ctx, r.store, subjectID); err != nil {
		return nil, err
	}
	var lecturer any
	if lecturerID != nil {
		lecturer = *lecturerID
	}
	id := r.docs.NewID()
	err := r.docs.Set(ctx, id, map[string]any{
		"id":         id,
		"name":       name,
		"subjectId":  subjectID,
		"lecturerId": lecturer,
		"studentIds": []string{},
		"createdAt":  ds.ServerTimestamp,
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *Repo) GetByID(ctx context.Context, id string) (*groups.Group, error) {
	return refs.Group(ctx, r.store, id)
}

func (r *Repo) ListAll(ctx context.Context) ([]*groups.Group, error) {
	snaps, err := r.docs.All(ctx)
	if err != nil {
		return nil, err
	}
	return decodeAll(snaps)
}

func (r *Repo) ListByLecturer(ctx context.Context, lecturerID string) ([]*groups.Group, error) {
	snaps, err := r.docs.Where(ctx, ds.Eq("lecturerId", lecturerID))
	if err != nil {
		return nil, err
	}
	return decodeAll(snaps)
}

func (r *Repo) ListByStudent(ctx context.Context, studentID string) ([]*groups.Group, error) {
	snaps, err := r.docs.Where(ctx, ds.Contains("studentIds", studentID))
	if err != nil {
		return nil, err
	}
	return decodeAll(snaps)
}

func (r *Repo) ListBySubject(ctx context.Context, subjectID string) ([]*groups.Group, error) {
	snaps, err := r.docs.Where(ctx, ds.Eq("subjectId", subjectID))
	if err != nil {
		return nil, err
	}
	return decodeAll(snaps)
}

// Update validates every supplied reference before issuing one write.
func (r *Repo) Update(ctx context.Context, id string, p groups.Patch) (bool, error) {
	g, err := r.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if g == nil {
		return false, nil
	}
	if p.SubjectID != nil {
		if err := refs.RequireSubject(ctx, r.store, *p.SubjectID); err != nil {
			return false, err
		}
	}
	if p.LecturerID != nil {
		if err := refs.RequireLecturer(ctx, r.store, *p.LecturerID); err != nil {
			return false, err
		}
	}

	updates := []ds.Update{{Path: "updatedAt", Value: ds.ServerTimestamp}}
	if p.Name != nil {
		updates = append(updates, ds.Update{Path: "name", Value: *p.Name})
	}
	if p.SubjectID != nil {
		updates = append(updates, ds.Update{Path: "subjectId", Value: *p.SubjectID})
	}
	if p.LecturerID != nil {
		updates = append(updates, ds.Update{Path: "lecturerId", Value: *p.LecturerID})
	}
	return r.write(ctx, id, updates)
}

func (r *Repo) Delete(ctx context.Context, id string) (bool, error) {
	if err := r.docs.Delete(ctx, id); err != nil {
		return false, err
	}
	return true, nil
}

// AddStudent relies on the store's atomic union, so concurrent adds of
// different students never lose one another.
func (r *Repo) AddStudent(ctx context.Context, groupID, studentID string) (bool, error) {
	if err := r.requireStudent(ctx, studentID); err != nil {
		return false, err
	}
	g, err := r.GetByID(ctx, groupID)
	if err != nil {
		return false, err
	}
	if g == nil {
		return false, nil
	}
	if g.HasStudent(studentID) {
		return false, fmt.Errorf("%w: %s", repositories.ErrStudentAlreadyAssigned, studentID)
	}
	return r.write(ctx, groupID, []ds.Update{
		{Path: "studentIds", Value: ds.ArrayUnion(studentID)},
		{Path: "updatedAt", Value: ds.ServerTimestamp},
	})
}

// RemoveStudent is a no-op for non-members.
func (r *Repo) RemoveStudent(ctx context.Context, groupID, studentID string) (bool, error) {
	if err := r.requireStudent(ctx, studentID); err != nil {
		return false, err
	}
	return r.write(ctx, groupID, []ds.Update{
		{Path: "studentIds", Value: ds.ArrayRemove(studentID)},
		{Path: "updatedAt", Value: ds.ServerTimestamp},
	})
}

func (r *Repo) ChangeLecturer(ctx context.Context, groupID, lecturerID string) (bool, error) {
	if err := refs.RequireLecturer(ctx, r.store, lecturerID); err != nil {
		return false, err
	}
	return r.write(ctx, groupID, []ds.Update{
		{Path: "lecturerId", Value: lecturerID},
		{Path: "updatedAt", Value: ds.ServerTimestamp},
	})
}

func (r *Repo) requireStudent(ctx context.Context, id string) error {
	_, err := refs.RequireRole(ctx, r.store, id, users.RoleStudent, repositories.ErrUserNotFound, repositories.ErrNotStudent)
	return err
}

// write maps a vanished document to false.
func (r *Repo) write(ctx context.Context, id string, updates []ds.Update) (bool, error) {
	err := r.docs.Update(ctx, id, updates)
	if errors.Is(err, ds.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func decodeAll(snaps []*ds.Snapshot) ([]*groups.Group, error) {
	out := make([]*groups.Group, 0, len(snaps))
	for _, s := range snaps {
		var g groups.Group
		if err := s.DataTo(&g); err != nil {
			return nil, fmt.Errorf("decode group %s: %w", s.ID, err)
		}
		g.ID = s.ID
		if g.StudentIDs == nil {
			g.StudentIDs = []string{}
		}
		out = append(out, &g)
	}
	return out, nil
}
