package service

import (
	"context"
	"fmt"

	"github.com/quipper/poc/sis/be/pkg/common/metrics"
	"github.com/quipper/poc/sis/be/pkg/repositories/grades"
	"github.com/quipper/poc/sis/be/pkg/repositories/groups"
)

type GroupService struct {
	repo    groups.Repository
	grades  grades.Repository
	metrics *metrics.Metrics
}

func NewGroupService(repo groups.Repository, grades grades.Repository, m *metrics.Metrics) *GroupService {
	return &GroupService{repo: repo, grades: grades, metrics: m}
}

func (s *GroupService) Create(ctx context.Context, name, subjectID string, lecturerID *string) (*groups.Group, error) {
	g, err := s.repo.Create(ctx, name, subjectID, lecturerID)
	return g, observe(s.metrics, "create group", err)
}

func (s *GroupService) Get(ctx context.Context, id string) (*groups.Group, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *GroupService) List(ctx context.Context) ([]*groups.Group, error) {
	return s.repo.ListAll(ctx)
}

func (s *GroupService) ListByLecturer(ctx context.Context, lecturerID string) ([]*groups.Group, error) {
	return s.repo.ListByLecturer(ctx, lecturerID)
}

func (s *GroupService) ListByStudent(ctx context.Context, studentID string) ([]*groups.Group, error) {
	return s.repo.ListByStudent(ctx, studentID)
}

func (s *GroupService) Update(ctx context.Context, id string, p groups.Patch) (*groups.Group, error) {
	if p.Empty() {
		return nil, ErrNoUpdateFields
	}
	ok, err := s.repo.Update(ctx, id, p)
	if err != nil || !ok {
		return nil, observe(s.metrics, "update group", err)
	}
	return s.repo.GetByID(ctx, id)
}

// Delete refuses while grades still reference the group.
func (s *GroupService) Delete(ctx context.Context, id string) (bool, error) {
	refs, err := s.grades.ListByGroup(ctx, id)
	if err != nil {
		return false, err
	}
	if len(refs) > 0 {
		s.metrics.RejectedWrite(ErrGroupInUse.Error())
		return false, fmt.Errorf("%w: %d grade(s)", ErrGroupInUse, len(refs))
	}
	return s.repo.Delete(ctx, id)
}

func (s *GroupService) AddStudent(ctx context.Context, groupID, studentID string) (bool, error) {
	ok, err := s.repo.AddStudent(ctx, groupID, studentID)
	return ok, observe(s.metrics, "add student", err)
}

func (s *GroupService) RemoveStudent(ctx context.Context, groupID, studentID string) (bool, error) {
	ok, err := s.repo.RemoveStudent(ctx, groupID, studentID)
	return ok, observe(s.metrics, "remove student", err)
}

func (s *GroupService) ChangeLecturer(ctx context.Context, groupID, lecturerID string) (bool, error) {
	ok, err := s.repo.ChangeLecturer(ctx, groupID, lecturerID)
	return ok, observe(s.metrics, "change lecturer", err)
}
