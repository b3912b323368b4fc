package subjects

import (
	"context"
	"time"
)

// Subject is a course of study; groups are sections of a subject.
type Subject struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

type Patch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (p Patch) Empty() bool { return p.Name == nil && p.Description == nil }

type Repository interface {
	Create(ctx context.Context, name, description string) (*Subject, error)
	GetByID(ctx context.Context, id string) (*Subject, error)
	ListAll(ctx context.Context) ([]*Subject, error)
	Update(ctx context.Context, id string, p Patch) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}
