package service

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	gradesrepo "github.com/quipper/poc/sis/be/internal/repositories/grades/docstore"
	groupsrepo "github.com/quipper/poc/sis/be/internal/repositories/groups/docstore"
	"github.com/quipper/poc/sis/be/internal/repositories/revocation"
	subjectsrepo "github.com/quipper/poc/sis/be/internal/repositories/subjects/docstore"
	usersrepo "github.com/quipper/poc/sis/be/internal/repositories/users/docstore"
	"github.com/quipper/poc/sis/be/internal/testutil"
	"github.com/quipper/poc/sis/be/pkg/common/cache"
	"github.com/quipper/poc/sis/be/pkg/common/metrics"
	"github.com/quipper/poc/sis/be/pkg/repositories"
	"github.com/quipper/poc/sis/be/pkg/repositories/grades"
	"github.com/quipper/poc/sis/be/pkg/repositories/subjects"
	"github.com/quipper/poc/sis/be/pkg/repositories/users"
)

type fixture struct {
	users    *UserService
	subjects *SubjectService
	groups   *GroupService
	grades   *GradeService
	session  *SessionService
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewStore(t)
	idp := testutil.NewProvider(t)
	m, err := metrics.New()
	require.NoError(t, err)
	revoked, err := revocation.NewSQLiteRepo(filepath.Join(t.TempDir(), "revoked.db"))
	require.NoError(t, err)
	t.Cleanup(revoked.Disconnect)

	ur := usersrepo.NewRepo(store, idp)
	sr := subjectsrepo.NewRepo(store)
	gr := groupsrepo.NewRepo(store)
	grr := gradesrepo.NewRepo(store)
	return &fixture{
		users:    NewUserService(ur, m),
		subjects: NewSubjectService(sr, gr, m),
		groups:   NewGroupService(gr, grr, m),
		grades:   NewGradeService(grr, gr, sr, ur, m),
		session: NewSessionService(SessionDeps{
			Provider: idp,
			Users:    ur,
			Revoked:  revoked,
			Cache:    cache.NewMemory("test:", time.Minute),
			Metrics:  m,
		}),
		metrics: m,
	}
}

func (f *fixture) user(t *testing.T, name string, role users.Role) *users.User {
	t.Helper()
	u, err := f.users.Create(context.Background(), users.NewUser{
		Email: name + "@uni.test", Password: "secret-" + name, Name: name, Role: role,
	})
	require.NoError(t, err)
	return u
}

func TestUserUpdateReturnsFreshProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "ana", users.RoleStudent)

	_, err := f.users.Update(ctx, u.ID, users.Patch{})
	require.ErrorIs(t, err, ErrNoUpdateFields)

	got, err := f.users.Update(ctx, u.ID, users.Patch{Name: testutil.Ptr("Ana Maria")})
	require.NoError(t, err)
	require.Equal(t, "Ana Maria", got.Name)
	require.NotNil(t, got.UpdatedAt)

	got, err = f.users.Update(ctx, "missing", users.Patch{Name: testutil.Ptr("x")})
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSubjectDeleteRefusedWhileGroupsExist(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sub, err := f.subjects.Create(ctx, "Algebra", "Linear algebra")
	require.NoError(t, err)
	g, err := f.groups.Create(ctx, "A1", sub.ID, nil)
	require.NoError(t, err)

	_, err = f.subjects.Delete(ctx, sub.ID)
	require.ErrorIs(t, err, ErrSubjectInUse)

	ok, err := f.groups.Delete(ctx, g.ID)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = f.subjects.Delete(ctx, sub.ID)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSubjectUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sub, err := f.subjects.Create(ctx, "Algebra", "")
	require.NoError(t, err)

	got, err := f.subjects.Update(ctx, sub.ID, subjects.Patch{Description: testutil.Ptr("Vectors")})
	require.NoError(t, err)
	require.Equal(t, "Algebra", got.Name)
	require.Equal(t, "Vectors", got.Description)

	got, err = f.subjects.Update(ctx, "missing", subjects.Patch{Name: testutil.Ptr("x")})
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestGroupMembershipAndGradeFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	lecturer := f.user(t, "lee", users.RoleLecturer)
	student := f.user(t, "sam", users.RoleStudent)
	sub, err := f.subjects.Create(ctx, "Physics", "")
	require.NoError(t, err)
	g, err := f.groups.Create(ctx, "P1", sub.ID, &lecturer.ID)
	require.NoError(t, err)

	_, err = f.grades.Create(ctx, student.ID, g.ID, lecturer.ID, "5")
	require.ErrorIs(t, err, repositories.ErrStudentNotInGroup)

	ok, err := f.groups.AddStudent(ctx, g.ID, student.ID)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = f.groups.AddStudent(ctx, g.ID, student.ID)
	require.ErrorIs(t, err, repositories.ErrStudentAlreadyAssigned)

	byStudent, err := f.groups.ListByStudent(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, byStudent, 1)

	gr, err := f.grades.Create(ctx, student.ID, g.ID, lecturer.ID, "5")
	require.NoError(t, err)

	_, err = f.groups.Delete(ctx, g.ID)
	require.ErrorIs(t, err, ErrGroupInUse)

	updated, err := f.grades.Update(ctx, gr.ID, grades.Patch{Value: testutil.Ptr("4")})
	require.NoError(t, err)
	require.Equal(t, "4", updated.Value)

	_, err = f.grades.Update(ctx, gr.ID, grades.Patch{})
	require.ErrorIs(t, err, ErrNoUpdateFields)
}

func TestExportGroupSheet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	lecturer := f.user(t, "lee", users.RoleLecturer)
	student := f.user(t, "sam", users.RoleStudent)
	sub, err := f.subjects.Create(ctx, "Physics", "")
	require.NoError(t, err)
	g, err := f.groups.Create(ctx, "P1", sub.ID, &lecturer.ID)
	require.NoError(t, err)
	_, err = f.groups.AddStudent(ctx, g.ID, student.ID)
	require.NoError(t, err)
	_, err = f.grades.Create(ctx, student.ID, g.ID, lecturer.ID, "5")
	require.NoError(t, err)

	var buf bytes.Buffer
	ok, err := f.grades.ExportGroupSheet(ctx, g.ID, &buf)
	require.NoError(t, err)
	require.True(t, ok)

	book, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows(book.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "sam", rows[1][0])
	require.Equal(t, "sam@uni.test", rows[1][1])
	require.Equal(t, "5", rows[1][2])
	require.Equal(t, "lee", rows[1][3])

	ok, err = f.grades.ExportGroupSheet(ctx, "missing", &buf)
	require.NoError(t, err)
	require.False(t, ok)
}
