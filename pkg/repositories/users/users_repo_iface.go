package users

import (
	"context"
	"time"
)

// Role is the authorization class of a user.
type Role string

const (
	RoleStudent   Role = "student"
	RoleLecturer  Role = "lecturer"
	RoleRegistrar Role = "registrar"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleLecturer, RoleRegistrar:
		return true
	}
	return false
}

// User is the mirrored profile stored alongside the identity-provider account.
// ID equals the provider account id.
type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Role      Role       `json:"role"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// NewUser is the input to Create.
type NewUser struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
}

// Patch lists the fields to change; nil fields are left alone.
type Patch struct {
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
	Name     *string `json:"name,omitempty"`
	Role     *Role   `json:"role,omitempty"`
}

func (p Patch) Empty() bool {
	return p.Email == nil && p.Password == nil && p.Name == nil && p.Role == nil
}

// Repository spans the identity provider and the profile mirror.
// Writes are not transactional across the two systems.
type Repository interface {
	Create(ctx context.Context, u NewUser) (string, error)
	// GetByID returns nil, nil when no mirror exists.
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	ListAll(ctx context.Context) ([]*User, error)
	// Update returns false when no mirror exists.
	Update(ctx context.Context, id string, p Patch) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}
