package service

import (
	"context"
	"fmt"

	"github.com/quipper/poc/sis/be/pkg/common/metrics"
	"github.com/quipper/poc/sis/be/pkg/repositories/groups"
	"github.com/quipper/poc/sis/be/pkg/repositories/subjects"
)

type SubjectService struct {
	repo    subjects.Repository
	groups  groups.Repository
	metrics *metrics.Metrics
}

func NewSubjectService(repo subjects.Repository, groups groups.Repository, m *metrics.Metrics) *SubjectService {
	return &SubjectService{repo: repo, groups: groups, metrics: m}
}

func (s *SubjectService) Create(ctx context.Context, name, description string) (*subjects.Subject, error) {
	return s.repo.Create(ctx, name, description)
}

func (s *SubjectService) Get(ctx context.Context, id string) (*subjects.Subject, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *SubjectService) List(ctx context.Context) ([]*subjects.Subject, error) {
	return s.repo.ListAll(ctx)
}

func (s *SubjectService) Update(ctx context.Context, id string, p subjects.Patch) (*subjects.Subject, error) {
	if p.Empty() {
		return nil, ErrNoUpdateFields
	}
	ok, err := s.repo.Update(ctx, id, p)
	if err != nil || !ok {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// Delete refuses while any group still belongs to the subject.
func (s *SubjectService) Delete(ctx context.Context, id string) (bool, error) {
	refs, err := s.groups.ListBySubject(ctx, id)
	if err != nil {
		return false, err
	}
	if len(refs) > 0 {
		s.metrics.RejectedWrite(ErrSubjectInUse.Error())
		return false, fmt.Errorf("%w: %d group(s)", ErrSubjectInUse, len(refs))
	}
	return s.repo.Delete(ctx, id)
}
