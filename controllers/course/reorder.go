package controllers

import (
	"errors"

	"coursehub/config"
	"coursehub/database"
	"coursehub/middleware"
	"coursehub/models/course"
	"coursehub/realtime"
	"coursehub/reorder"
	validators "coursehub/validators/course"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func parentKey(parentID *uint) uint {
	if parentID == nil {
		return reorder.Root
	}
	return *parentID
}

func moduleOptions() reorder.Options {
	return reorder.Options{Nested: true, MaxDepth: config.AppConfig.MaxModuleDepth}
}

func moduleItems(db *gorm.DB, portalID uint) ([]reorder.Item, error) {
	modules, err := portalModules(db, portalID)
	if err != nil {
		return nil, err
	}
	items := make([]reorder.Item, len(modules))
	for i, m := range modules {
		items[i] = reorder.Item{ID: m.ID, Parent: parentKey(m.ParentID), Ordinal: m.OrderIndex}
	}
	return items, nil
}

func lessonItems(db *gorm.DB, portalID uint) ([]reorder.Item, error) {
	var lessons []course.Lesson
	if err := db.Where("portal_id = ? AND is_deleted = ?", portalID, false).Find(&lessons).Error; err != nil {
		return nil, err
	}
	items := make([]reorder.Item, len(lessons))
	for i, l := range lessons {
		items[i] = reorder.Item{ID: l.ID, Parent: l.ModuleID, Ordinal: l.OrderIndex}
	}
	return items, nil
}

// sortable describes one reorderable list family of a portal.
type sortable struct {
	table string
	items func(db *gorm.DB, portalID uint) ([]reorder.Item, error)
	opts  func() reorder.Options
	// container reports whether id may hold items; only needed for flat boards
	container func(db *gorm.DB, portalID, id uint) bool
	reparent  func(tx *gorm.DB, portalID uint, r reorder.Reparent) error
	position  func(tx *gorm.DB, portalID uint, p reorder.Position) error
	reload    func(db *gorm.DB, ids []uint) ([]interface{}, error)
}

var moduleSortable = sortable{
	table: realtime.TableModules,
	items: moduleItems,
	opts:  moduleOptions,
	reparent: func(tx *gorm.DB, portalID uint, r reorder.Reparent) error {
		var parent interface{}
		if r.To != reorder.Root {
			parent = r.To
		}
		return tx.Model(&course.Module{}).Where("id = ? AND portal_id = ?", r.ID, portalID).UpdateColumn("parent_id", parent).Error
	},
	position: func(tx *gorm.DB, portalID uint, p reorder.Position) error {
		return tx.Model(&course.Module{}).Where("id = ? AND portal_id = ?", p.ID, portalID).UpdateColumn("order_index", p.Ordinal).Error
	},
	reload: func(db *gorm.DB, ids []uint) ([]interface{}, error) {
		var rows []course.Module
		if err := db.Where("id IN ?", ids).Order("order_index asc").Find(&rows).Error; err != nil {
			return nil, err
		}
		out := make([]interface{}, len(rows))
		for i, r := range rows {
			out[i] = r
		}
		return out, nil
	},
}

var lessonSortable = sortable{
	table: realtime.TableLessons,
	items: lessonItems,
	opts:  func() reorder.Options { return reorder.Options{} },
	container: func(db *gorm.DB, portalID, id uint) bool {
		var count int64
		db.Model(&course.Module{}).Where("id = ? AND portal_id = ? AND is_deleted = ?", id, portalID, false).Count(&count)
		return count > 0
	},
	reparent: func(tx *gorm.DB, portalID uint, r reorder.Reparent) error {
		return tx.Model(&course.Lesson{}).Where("id = ? AND portal_id = ?", r.ID, portalID).UpdateColumn("module_id", r.To).Error
	},
	position: func(tx *gorm.DB, portalID uint, p reorder.Position) error {
		return tx.Model(&course.Lesson{}).Where("id = ? AND portal_id = ?", p.ID, portalID).UpdateColumn("order_index", p.Ordinal).Error
	},
	reload: func(db *gorm.DB, ids []uint) ([]interface{}, error) {
		var rows []course.Lesson
		if err := db.Where("id IN ?", ids).Order("order_index asc").Find(&rows).Error; err != nil {
			return nil, err
		}
		out := make([]interface{}, len(rows))
		for i, r := range rows {
			out[i] = r
		}
		return out, nil
	},
}

// persist writes the whole plan in one transaction so a batch never lands half applied.
func (s sortable) persist(portalID uint, plan reorder.Plan) ([]interface{}, error) {
	err := database.Database.Db.Transaction(func(tx *gorm.DB) error {
		if plan.Reparent != nil {
			if err := s.reparent(tx, portalID, *plan.Reparent); err != nil {
				return err
			}
		}
		for _, p := range plan.Positions {
			if err := s.position(tx, portalID, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(plan.Positions)+1)
	seen := map[uint]bool{}
	if plan.Reparent != nil {
		ids = append(ids, plan.Reparent.ID)
		seen[plan.Reparent.ID] = true
	}
	for _, p := range plan.Positions {
		if !seen[p.ID] {
			ids = append(ids, p.ID)
			seen[p.ID] = true
		}
	}
	if len(ids) == 0 {
		return []interface{}{}, nil
	}
	rows, err := s.reload(database.Database.Db, ids)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		realtime.Emit(s.table, realtime.Update, row)
	}
	return rows, nil
}

func reorderError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, reorder.ErrUnknownItem):
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Item not found in this portal!", nil)
	case errors.Is(err, reorder.ErrCycle):
		return middleware.ValidationErrorResponse(c, map[string]string{"over_id": "A module cannot be moved inside itself!"})
	case errors.Is(err, reorder.ErrTooDeep):
		return middleware.ValidationErrorResponse(c, map[string]string{"over_id": "Maximum module nesting depth exceeded!"})
	}
	return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to reorder!", nil)
}

func (s sortable) move(c *fiber.Ctx) error {
	portal, ok, err := portalOr404(c)
	if !ok {
		return err
	}
	reqData := c.Locals("validatedMove").(*validators.MoveRequest)
	db := database.Database.Db

	drop := reorder.Drop{ActiveID: reqData.ActiveID, OverID: reqData.OverID, OverIsContainer: reqData.OverIsContainer}
	if s.container != nil && drop.OverIsContainer && !s.container(db, portal.ID, drop.OverID) {
		return reorderError(c, reorder.ErrUnknownItem)
	}

	items, err := s.items(db, portal.ID)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to load items!", nil)
	}
	plan, err := reorder.NewBoard(items, s.opts()).Plan(drop)
	if err != nil {
		return reorderError(c, err)
	}

	rows, err := s.persist(portal.ID, plan)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to save order!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Order updated successfully!", fiber.Map{
		"plan":  plan,
		"items": rows,
	})
}

func (s sortable) order(c *fiber.Ctx) error {
	portal, ok, err := portalOr404(c)
	if !ok {
		return err
	}
	reqData := c.Locals("validatedOrder").(*validators.OrderRequest)
	db := database.Database.Db

	plan := reorder.Plan{Reparent: reqData.Reparent, Positions: reqData.Positions}
	if s.container != nil && plan.Reparent != nil && !s.container(db, portal.ID, plan.Reparent.To) {
		return reorderError(c, reorder.ErrUnknownItem)
	}

	items, err := s.items(db, portal.ID)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to load items!", nil)
	}
	if err := reorder.NewBoard(items, s.opts()).Validate(plan); err != nil {
		return reorderError(c, err)
	}

	rows, err := s.persist(portal.ID, plan)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to save order!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Order updated successfully!", fiber.Map{
		"plan":  plan,
		"items": rows,
	})
}

// AdminMoveModule computes and stores the result of a module drag-and-drop
func AdminMoveModule(c *fiber.Ctx) error { return moduleSortable.move(c) }

// AdminOrderModules stores a module reorder computed by the client
func AdminOrderModules(c *fiber.Ctx) error { return moduleSortable.order(c) }

// AdminMoveLesson computes and stores the result of a lesson drag-and-drop
func AdminMoveLesson(c *fiber.Ctx) error { return lessonSortable.move(c) }

// AdminOrderLessons stores a lesson reorder computed by the client
func AdminOrderLessons(c *fiber.Ctx) error { return lessonSortable.order(c) }
