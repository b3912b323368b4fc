package service

import (
	"context"
	"io"

	"github.com/quipper/poc/sis/be/internal/export"
	"github.com/quipper/poc/sis/be/pkg/common/metrics"
	"github.com/quipper/poc/sis/be/pkg/repositories/grades"
	"github.com/quipper/poc/sis/be/pkg/repositories/groups"
	"github.com/quipper/poc/sis/be/pkg/repositories/subjects"
	"github.com/quipper/poc/sis/be/pkg/repositories/users"
)

type GradeService struct {
	repo     grades.Repository
	groups   groups.Repository
	subjects subjects.Repository
	users    users.Repository
	metrics  *metrics.Metrics
}

func NewGradeService(repo grades.Repository, groups groups.Repository, subjects subjects.Repository, users users.Repository, m *metrics.Metrics) *GradeService {
	return &GradeService{repo: repo, groups: groups, subjects: subjects, users: users, metrics: m}
}

func (s *GradeService) Create(ctx context.Context, studentID, groupID, issuerID, value string) (*grades.Grade, error) {
	g, err := s.repo.Create(ctx, studentID, groupID, issuerID, value)
	return g, observe(s.metrics, "create grade", err)
}

func (s *GradeService) Get(ctx context.Context, id string) (*grades.Grade, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *GradeService) List(ctx context.Context) ([]*grades.Grade, error) {
	return s.repo.ListAll(ctx)
}

func (s *GradeService) ListByStudent(ctx context.Context, studentID string) ([]*grades.Grade, error) {
	return s.repo.ListByStudent(ctx, studentID)
}

func (s *GradeService) ListByGroup(ctx context.Context, groupID string) ([]*grades.Grade, error) {
	return s.repo.ListByGroup(ctx, groupID)
}

func (s *GradeService) Update(ctx context.Context, id string, p grades.Patch) (*grades.Grade, error) {
	if p.Empty() {
		return nil, ErrNoUpdateFields
	}
	if _, err := s.repo.Update(ctx, id, p); err != nil {
		return nil, observe(s.metrics, "update grade", err)
	}
	return s.repo.GetByID(ctx, id)
}

func (s *GradeService) Delete(ctx context.Context, id string) (bool, error) {
	return s.repo.Delete(ctx, id)
}

// ExportGroupSheet writes the group's grades as XLSX to w.
// It returns false when the group does not exist.
func (s *GradeService) ExportGroupSheet(ctx context.Context, groupID string, w io.Writer) (bool, error) {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil || g == nil {
		return false, err
	}
	list, err := s.repo.ListByGroup(ctx, groupID)
	if err != nil {
		return false, err
	}

	title := g.Name
	if sub, err := s.subjects.GetByID(ctx, g.SubjectID); err != nil {
		return false, err
	} else if sub != nil {
		title = sub.Name + " - " + g.Name
	}

	people := map[string]*users.User{}
	lookup := func(id string) (*users.User, error) {
		if u, ok := people[id]; ok {
			return u, nil
		}
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		people[id] = u
		return u, nil
	}

	rows := make([]export.Row, 0, len(list))
	for _, gr := range list {
		row := export.Row{StudentName: gr.StudentID, Value: gr.Value, IssuerName: gr.IssuerID, GivenAt: gr.CreatedAt}
		if gr.UpdatedAt != nil {
			row.GivenAt = *gr.UpdatedAt
		}
		student, err := lookup(gr.StudentID)
		if err != nil {
			return false, err
		}
		if student != nil {
			row.StudentName, row.StudentEmail = student.Name, student.Email
		}
		issuer, err := lookup(gr.IssuerID)
		if err != nil {
			return false, err
		}
		if issuer != nil {
			row.IssuerName = issuer.Name
		}
		rows = append(rows, row)
	}
	if err := export.WriteGradeSheet(w, title, rows); err != nil {
		return false, err
	}
	return true, nil
}
