package service

import (
	"context"

	"github.com/quipper/poc/sis/be/pkg/common/metrics"
	"github.com/quipper/poc/sis/be/pkg/repositories/users"
)

type UserService struct {
	repo    users.Repository
	metrics *metrics.Metrics
}

func NewUserService(repo users.Repository, m *metrics.Metrics) *UserService {
	return &UserService{repo: repo, metrics: m}
}

// Create returns the stored profile of the new user.
func (s *UserService) Create(ctx context.Context, u users.NewUser) (*users.User, error) {
	id, err := s.repo.Create(ctx, u)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) Get(ctx context.Context, id string) (*users.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *UserService) List(ctx context.Context) ([]*users.User, error) {
	return s.repo.ListAll(ctx)
}

// Update returns nil, nil when the user does not exist.
func (s *UserService) Update(ctx context.Context, id string, p users.Patch) (*users.User, error) {
	if p.Empty() {
		return nil, ErrNoUpdateFields
	}
	ok, err := s.repo.Update(ctx, id, p)
	if err != nil || !ok {
		return nil, observe(s.metrics, "update user", err)
	}
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) Delete(ctx context.Context, id string) (bool, error) {
	return s.repo.Delete(ctx, id)
}
