// Package refs resolves cross-collection references for the integrity checks
// shared by the group and grade repositories.
package refs

import (
	"context"
	"fmt"

	ds "github.com/quipper/poc/sis/be/pkg/docstore"
	"github.com/quipper/poc/sis/be/pkg/repositories"
	"github.com/quipper/poc/sis/be/pkg/repositories/groups"
	"github.com/quipper/poc/sis/be/pkg/repositories/users"
)

// Collection names.
const (
	Users    = "users"
	Subjects = "subjects"
	Groups   = "groups"
	Grades   = "grades"
)

// User loads a profile mirror; nil when absent.
func User(ctx context.Context, store ds.Store, id string) (*users.User, error) {
	snap, err := store.Collection(Users).Get(ctx, id)
	if err != nil || snap == nil {
		return nil, err
	}
	var u users.User
	if err := snap.DataTo(&u); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", id, err)
	}
	u.ID = snap.ID
	return &u, nil
}

// Group loads a group; nil when absent.
func Group(ctx context.Context, store ds.Store, id string) (*groups.Group, error) {
	snap, err := store.Collection(Groups).Get(ctx, id)
	if err != nil || snap == nil {
		return nil, err
	}
	var g groups.Group
	if err := snap.DataTo(&g); err != nil {
		return nil, fmt.Errorf("decode group %s: %w", id, err)
	}
	g.ID = snap.ID
	if g.StudentIDs == nil {
		g.StudentIDs = []string{}
	}
	return &g, nil
}

// RequireSubject fails with ErrSubjectNotFound unless the subject exists.
func RequireSubject(ctx context.Context, store ds.Store, id string) error {
	snap, err := store.Collection(Subjects).Get(ctx, id)
	if err != nil {
		return err
	}
	if snap == nil {
		return fmt.Errorf("%w: %s", repositories.ErrSubjectNotFound, id)
	}
	return nil
}

// RequireRole loads the user and checks its role. A missing user yields
// missing; a role mismatch yields wrongRole.
func RequireRole(ctx context.Context, store ds.Store, id string, role users.Role, missing, wrongRole error) (*users.User, error) {
	u, err := User(ctx, store, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: %s", missing, id)
	}
	if u.Role != role {
		return nil, fmt.Errorf("%w: %s", wrongRole, id)
	}
	return u, nil
}

// RequireLecturer checks the user exists and is a lecturer.
func RequireLecturer(ctx context.Context, store ds.Store, id string) error {
	_, err := RequireRole(ctx, store, id, users.RoleLecturer, repositories.ErrUserNotFound, repositories.ErrNotLecturer)
	return err
}
