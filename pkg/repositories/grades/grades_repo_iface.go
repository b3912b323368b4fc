package grades

import (
	"context"
	"time"
)

// Grade is a mark given to a student within a group. Value is opaque.
type Grade struct {
	ID        string     `json:"id"`
	StudentID string     `json:"studentId"`
	GroupID   string     `json:"groupId"`
	IssuerID  string     `json:"issuerId"`
	Value     string     `json:"value"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

type Patch struct {
	StudentID *string `json:"studentId,omitempty"`
	GroupID   *string `json:"groupId,omitempty"`
	IssuerID  *string `json:"issuerId,omitempty"`
	Value     *string `json:"value,omitempty"`
}

func (p Patch) Empty() bool {
	return p.StudentID == nil && p.GroupID == nil && p.IssuerID == nil && p.Value == nil
}

// Repository guarantees that every stored grade references an existing student
// who was a member of an existing group at write time.
type Repository interface {
	Create(ctx context.Context, studentID, groupID, issuerID, value string) (*Grade, error)
	GetByID(ctx context.Context, id string) (*Grade, error)
	ListAll(ctx context.Context) ([]*Grade, error)
	ListByStudent(ctx context.Context, studentID string) ([]*Grade, error)
	ListByGroup(ctx context.Context, groupID string) ([]*Grade, error)
	// Update fails with ErrGradeNotFound when the grade is absent.
	Update(ctx context.Context, id string, p Patch) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}
