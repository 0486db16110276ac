// Package classroom builds the member-facing outline of a portal and decides lesson access.
package classroom

import (
	"errors"
	"time"

	"coursehub/models"
	"coursehub/models/course"
	"coursehub/tree"

	"gorm.io/gorm"
)

var (
	ErrNotEnrolled  = errors.New("classroom: not enrolled in portal")
	ErrLessonHidden = errors.New("classroom: lesson not available")
)

// ModuleView is one outline node: the module and the lessons its viewer may open.
// Locked modules are visible but outside the viewer's allow-list; they only
// carry free-preview lessons.
type ModuleView struct {
	course.Module
	Locked  bool            `json:"locked"`
	Lessons []course.Lesson `json:"lessons"`
}

// Viewer is who the outline is built for. Staff see every active module.
type Viewer struct {
	User       models.User
	Enrollment *course.Enrollment
}

func (v Viewer) allows(moduleID uint) bool {
	if v.User.IsStaff() {
		return true
	}
	return v.Enrollment != nil && v.Enrollment.Allows(moduleID)
}

func (v Viewer) released(m course.Module, at time.Time) bool {
	if v.User.IsStaff() {
		return true
	}
	if v.Enrollment == nil {
		return false
	}
	return m.Released(at, v.Enrollment.CreatedAt)
}

// LoadViewer resolves the enrollment of user in portalID. Students without an
// enrollment get ErrNotEnrolled.
func LoadViewer(db *gorm.DB, user models.User, portalID uint) (Viewer, error) {
	v := Viewer{User: user}
	var e course.Enrollment
	err := db.Where("user_id = ? AND portal_id = ?", user.ID, portalID).First(&e).Error
	switch {
	case err == nil:
		v.Enrollment = &e
	case errors.Is(err, gorm.ErrRecordNotFound):
		if !user.IsStaff() {
			return v, ErrNotEnrolled
		}
	default:
		return v, err
	}
	return v, nil
}

// ModuleForest arranges modules into their outline.
func ModuleForest(modules []course.Module) []*tree.Node[course.Module] {
	records := make([]tree.Record[course.Module], len(modules))
	for i, m := range modules {
		records[i] = tree.Record[course.Module]{ID: m.ID, ParentID: m.ParentID, Ordinal: m.OrderIndex, Value: m}
	}
	return tree.Build(records)
}

// Arrange builds the full admin outline with every lesson hung on its module.
func Arrange(modules []course.Module, lessons []course.Lesson) []*tree.Node[ModuleView] {
	byModule := groupLessons(lessons)
	records := make([]tree.Record[ModuleView], len(modules))
	for i, m := range modules {
		records[i] = tree.Record[ModuleView]{
			ID: m.ID, ParentID: m.ParentID, Ordinal: m.OrderIndex,
			Value: ModuleView{Module: m, Lessons: nonNil(byModule[m.ID])},
		}
	}
	return tree.Build(records)
}

func groupLessons(lessons []course.Lesson) map[uint][]course.Lesson {
	out := make(map[uint][]course.Lesson)
	for _, l := range lessons {
		out[l.ModuleID] = append(out[l.ModuleID], l)
	}
	return out
}

func nonNil(ls []course.Lesson) []course.Lesson {
	if ls == nil {
		return []course.Lesson{}
	}
	return ls
}

// Outline returns what v may see of portalID at time at. A module is shown
// when it and every ancestor are active and released. Lessons must be
// published; locked modules only show free-preview lessons.
func Outline(db *gorm.DB, v Viewer, portalID uint, at time.Time) ([]*tree.Node[ModuleView], error) {
	var modules []course.Module
	if err := db.Where("portal_id = ? AND is_deleted = ? AND is_active = ?", portalID, false, true).
		Order("order_index asc").Find(&modules).Error; err != nil {
		return nil, err
	}
	var lessons []course.Lesson
	if err := db.Where("portal_id = ? AND is_deleted = ? AND is_published = ?", portalID, false, true).
		Order("order_index asc").Find(&lessons).Error; err != nil {
		return nil, err
	}
	return project(v, modules, lessons, at), nil
}

func project(v Viewer, modules []course.Module, lessons []course.Lesson, at time.Time) []*tree.Node[ModuleView] {
	byModule := groupLessons(lessons)
	full := ModuleForest(modules)

	var visible []tree.Record[ModuleView]
	shown := map[uint]bool{}
	tree.Walk(full, func(n *tree.Node[course.Module], _ int) bool {
		m := n.Value
		// an inactive ancestor makes its subtree a set of orphans; only true roots start a visible branch
		if n.ParentID != nil && !shown[*n.ParentID] {
			return false
		}
		if !v.released(m, at) {
			return false
		}
		view := ModuleView{Module: m, Locked: !v.allows(m.ID), Lessons: []course.Lesson{}}
		for _, l := range byModule[m.ID] {
			if !view.Locked || l.IsFreePreview {
				view.Lessons = append(view.Lessons, l)
			}
		}
		shown[m.ID] = true
		visible = append(visible, tree.Record[ModuleView]{ID: m.ID, ParentID: m.ParentID, Ordinal: m.OrderIndex, Value: view})
		return true
	})
	return tree.Build(visible)
}

// LessonAccess returns nil when v may open lesson at time at.
func LessonAccess(db *gorm.DB, v Viewer, lesson course.Lesson, at time.Time) error {
	if v.User.IsStaff() {
		return nil
	}
	if lesson.IsDeleted || !lesson.IsPublished {
		return ErrLessonHidden
	}
	forest, err := Outline(db, v, lesson.PortalID, at)
	if err != nil {
		return err
	}
	node := tree.Find(forest, lesson.ModuleID)
	if node == nil {
		return ErrLessonHidden
	}
	for _, l := range node.Value.Lessons {
		if l.ID == lesson.ID {
			return nil
		}
	}
	return ErrLessonHidden
}
