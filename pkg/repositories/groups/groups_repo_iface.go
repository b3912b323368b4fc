package groups

import (
	"context"
	"time"
)

// Group is a section of a subject with an optional lecturer and a set of students.
type Group struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	SubjectID  string     `json:"subjectId"`
	LecturerID *string    `json:"lecturerId"`
	StudentIDs []string   `json:"studentIds"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
}

// HasStudent reports whether id is a member.
func (g *Group) HasStudent(id string) bool {
	for _, s := range g.StudentIDs {
		if s == id {
			return true
		}
	}
	return false
}

type Patch struct {
	Name       *string `json:"name,omitempty"`
	SubjectID  *string `json:"subjectId,omitempty"`
	LecturerID *string `json:"lecturerId,omitempty"`
}

func (p Patch) Empty() bool { return p.Name == nil && p.SubjectID == nil && p.LecturerID == nil }

// Repository enforces the group invariants: an existing subject, a lecturer
// with the lecturer role, and a duplicate-free set of students.
type Repository interface {
	// Create fails with ErrSubjectNotFound. lecturerID may be nil.
	Create(ctx context.Context, name, subjectID string, lecturerID *string) (*Group, error)
	GetByID(ctx context.Context, id string) (*Group, error)
	ListAll(ctx context.Context) ([]*Group, error)
	ListByLecturer(ctx context.Context, lecturerID string) ([]*Group, error)
	ListByStudent(ctx context.Context, studentID string) ([]*Group, error)
	ListBySubject(ctx context.Context, subjectID string) ([]*Group, error)
	Update(ctx context.Context, id string, p Patch) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)

	// Membership operations return false when the group does not exist.
	AddStudent(ctx context.Context, groupID, studentID string) (bool, error)
	RemoveStudent(ctx context.Context, groupID, studentID string) (bool, error)
	ChangeLecturer(ctx context.Context, groupID, lecturerID string) (bool, error)
}
