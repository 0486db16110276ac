package classroom

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursehub/models"
	"coursehub/models/course"
	"coursehub/testutil"
	"coursehub/tree"
)

func titles(forest []*tree.Node[ModuleView]) []string {
	var out []string
	tree.Walk(forest, func(n *tree.Node[ModuleView], _ int) bool {
		out = append(out, n.Value.Title)
		return true
	})
	return out
}

func TestOutlineFiltersByEnrollment(t *testing.T) {
	db := testutil.DB(t)
	student := testutil.SeedUser(t, db, models.RoleStudent)
	portal := testutil.SeedPortal(t, db, "go-basics")

	intro := testutil.SeedModule(t, db, portal.ID, nil, "Intro", 0)
	advanced := testutil.SeedModule(t, db, portal.ID, nil, "Advanced", 1)
	testutil.SeedLesson(t, db, intro, "Welcome", 0, true)
	testutil.SeedLesson(t, db, intro, "Draft", 1, false)
	paid := testutil.SeedLesson(t, db, advanced, "Generics", 0, true)
	preview := testutil.SeedLesson(t, db, advanced, "Teaser", 1, true)
	require.NoError(t, db.Model(&preview).Update("is_free_preview", true).Error)

	testutil.SeedEnrollment(t, db, student.ID, portal.ID, false, intro.ID)

	v, err := LoadViewer(db, student, portal.ID)
	require.NoError(t, err)
	forest, err := Outline(db, v, portal.ID, time.Now())
	require.NoError(t, err)

	require.Len(t, forest, 2)
	assert.False(t, forest[0].Value.Locked)
	require.Len(t, forest[0].Value.Lessons, 1)
	assert.Equal(t, "Welcome", forest[0].Value.Lessons[0].Title)

	assert.True(t, forest[1].Value.Locked)
	require.Len(t, forest[1].Value.Lessons, 1)
	assert.Equal(t, "Teaser", forest[1].Value.Lessons[0].Title)

	assert.ErrorIs(t, LessonAccess(db, v, paid, time.Now()), ErrLessonHidden)
	assert.NoError(t, LessonAccess(db, v, preview, time.Now()))
}

func TestOutlineHidesUnreleasedAndInactiveBranches(t *testing.T) {
	db := testutil.DB(t)
	student := testutil.SeedUser(t, db, models.RoleStudent)
	portal := testutil.SeedPortal(t, db, "drip")

	root := testutil.SeedModule(t, db, portal.ID, nil, "Week 1", 0)
	child := testutil.SeedModule(t, db, portal.ID, &root.ID, "Day 1", 0)
	testutil.SeedModule(t, db, portal.ID, &child.ID, "Extra", 0)
	hidden := testutil.SeedModule(t, db, portal.ID, nil, "Hidden", 1)
	testutil.SeedModule(t, db, portal.ID, &hidden.ID, "Under hidden", 0)
	require.NoError(t, db.Model(&hidden).Update("is_active", false).Error)
	drip := testutil.SeedModule(t, db, portal.ID, nil, "Week 2", 2)
	require.NoError(t, db.Model(&drip).Update("release_after_days", 7).Error)

	testutil.SeedEnrollment(t, db, student.ID, portal.ID, true)
	v, err := LoadViewer(db, student, portal.ID)
	require.NoError(t, err)

	forest, err := Outline(db, v, portal.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"Week 1", "Day 1", "Extra"}, titles(forest))

	later, err := Outline(db, v, portal.ID, time.Now().AddDate(0, 0, 8))
	require.NoError(t, err)
	assert.Equal(t, []string{"Week 1", "Day 1", "Extra", "Week 2"}, titles(later))
}

func TestLoadViewerRequiresEnrollmentForStudents(t *testing.T) {
	db := testutil.DB(t)
	student := testutil.SeedUser(t, db, models.RoleStudent)
	staff := testutil.SeedUser(t, db, models.RoleStaff)
	portal := testutil.SeedPortal(t, db, "closed")

	_, err := LoadViewer(db, student, portal.ID)
	assert.ErrorIs(t, err, ErrNotEnrolled)

	v, err := LoadViewer(db, staff, portal.ID)
	require.NoError(t, err)
	assert.Nil(t, v.Enrollment)
	assert.NoError(t, LessonAccess(db, v, course.Lesson{IsPublished: false}, time.Now()))
}

func TestArrangeHangsLessonsOnModules(t *testing.T) {
	parent := uint(1)
	forest := Arrange(
		[]course.Module{
			{Model: models.Model{ID: 2}, ParentID: &parent, Title: "child"},
			{Model: models.Model{ID: 1}, Title: "root"},
		},
		[]course.Lesson{{Model: models.Model{ID: 9}, ModuleID: 2, Title: "l"}},
	)
	require.Len(t, forest, 1)
	assert.Empty(t, forest[0].Value.Lessons)
	require.Len(t, forest[0].Children, 1)
	assert.Equal(t, "l", forest[0].Children[0].Value.Lessons[0].Title)
}
