package controllers

import (
	"errors"
	"time"

	"coursehub/classroom"
	"coursehub/config"
	"coursehub/database"
	"coursehub/middleware"
	"coursehub/models/course"
	"coursehub/realtime"
	"coursehub/reorder"
	"coursehub/tree"
	validators "coursehub/validators/course"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func portalModules(db *gorm.DB, portalID uint) ([]course.Module, error) {
	var modules []course.Module
	err := db.Where("portal_id = ? AND is_deleted = ?", portalID, false).Order("order_index asc").Find(&modules).Error
	return modules, err
}

// nextModuleOrder is one past the highest ordinal among the children of parentID.
func nextModuleOrder(db *gorm.DB, portalID uint, parentID *uint) int {
	q := db.Model(&course.Module{}).Where("portal_id = ? AND is_deleted = ?", portalID, false)
	if parentID == nil {
		q = q.Where("parent_id IS NULL")
	} else {
		q = q.Where("parent_id = ?", *parentID)
	}
	var maxOrder int
	q.Select("COALESCE(MAX(order_index), -1)").Scan(&maxOrder)
	return maxOrder + 1
}

func moduleOr404(c *fiber.Ctx, portalID uint) (course.Module, bool, error) {
	moduleID := c.Locals("module_id").(uint)
	var module course.Module
	err := database.Database.Db.Where("id = ? AND portal_id = ? AND is_deleted = ?", moduleID, portalID, false).First(&module).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return module, false, middleware.JsonResponse(c, fiber.StatusNotFound, false, "Module not found!", nil)
		}
		return module, false, middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch module!", nil)
	}
	return module, true, nil
}

func nestingError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, reorder.ErrCycle):
		return middleware.ValidationErrorResponse(c, map[string]string{"parent_id": "A module cannot be moved inside itself!"})
	case errors.Is(err, reorder.ErrTooDeep):
		return middleware.ValidationErrorResponse(c, map[string]string{"parent_id": "Maximum module nesting depth exceeded!"})
	case errors.Is(err, reorder.ErrUnknownItem):
		return middleware.ValidationErrorResponse(c, map[string]string{"parent_id": "Parent module not found in this portal!"})
	}
	return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to check module nesting!", nil)
}

// AdminCreateModule creates a module in a portal, optionally under a parent module
func AdminCreateModule(c *fiber.Ctx) error {
	portal, ok, err := portalOr404(c)
	if !ok {
		return err
	}
	reqData := c.Locals("validatedModule").(*validators.CreateModuleRequest)
	db := database.Database.Db

	if reqData.ParentID != nil {
		modules, err := portalModules(db, portal.ID)
		if err != nil {
			return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch modules!", nil)
		}
		depth := tree.Depth(classroom.ModuleForest(modules), *reqData.ParentID)
		if depth == 0 {
			return nestingError(c, reorder.ErrUnknownItem)
		}
		if depth+1 > config.AppConfig.MaxModuleDepth {
			return nestingError(c, reorder.ErrTooDeep)
		}
	}

	orderIndex := nextModuleOrder(db, portal.ID, reqData.ParentID)
	if reqData.OrderIndex != nil {
		orderIndex = *reqData.OrderIndex
	}

	// a module with a future release date stays inactive until the release scheduler opens it
	isActive := reqData.ReleaseAt == nil || !reqData.ReleaseAt.After(time.Now())
	if reqData.IsActive != nil {
		isActive = *reqData.IsActive
	}

	module := course.Module{
		PortalID:         portal.ID,
		ParentID:         reqData.ParentID,
		Title:            reqData.Title,
		Description:      reqData.Description,
		OrderIndex:       orderIndex,
		IsActive:         isActive,
		ReleaseAt:        reqData.ReleaseAt,
		ReleaseAfterDays: reqData.ReleaseAfterDays,
	}
	if err := db.Create(&module).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to create module!", nil)
	}
	realtime.Emit(realtime.TableModules, realtime.Insert, module)

	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Module created successfully!", module)
}

// AdminUpdateModule updates a module. Moving it under another parent is checked
// for cycles and depth and appends it to the new sibling list.
func AdminUpdateModule(c *fiber.Ctx) error {
	portal, ok, err := portalOr404(c)
	if !ok {
		return err
	}
	module, ok, err := moduleOr404(c, portal.ID)
	if !ok {
		return err
	}
	reqData := c.Locals("validatedModuleUpdate").(*validators.UpdateModuleRequest)
	db := database.Database.Db

	var newParent *uint
	reparent := false
	switch {
	case reqData.MoveToRoot && module.ParentID != nil:
		reparent = true
	case reqData.ParentID != nil && (module.ParentID == nil || *module.ParentID != *reqData.ParentID):
		newParent = reqData.ParentID
		reparent = true
	}

	if reparent {
		items, err := moduleItems(db, portal.ID)
		if err != nil {
			return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch modules!", nil)
		}
		board := reorder.NewBoard(items, moduleOptions())
		to := reorder.Root
		if newParent != nil {
			to = *newParent
		}
		if err := board.Validate(reorder.Plan{Reparent: &reorder.Reparent{ID: module.ID, From: parentKey(module.ParentID), To: to}}); err != nil {
			return nestingError(c, err)
		}
		module.OrderIndex = nextModuleOrder(db, portal.ID, newParent)
		module.ParentID = newParent
	}

	if reqData.Title != nil {
		module.Title = *reqData.Title
	}
	if reqData.Description != nil {
		module.Description = *reqData.Description
	}
	if reqData.IsActive != nil {
		module.IsActive = *reqData.IsActive
	}
	if reqData.ClearReleaseAt {
		module.ReleaseAt = nil
	}
	if reqData.ReleaseAt != nil {
		module.ReleaseAt = reqData.ReleaseAt
	}
	if reqData.ReleaseAfterDays != nil {
		module.ReleaseAfterDays = *reqData.ReleaseAfterDays
	}

	if err := db.Save(&module).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to update module!", nil)
	}
	realtime.Emit(realtime.TableModules, realtime.Update, module)

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Module updated successfully!", module)
}

// AdminDeleteModule soft deletes a module, every module below it and all their lessons
func AdminDeleteModule(c *fiber.Ctx) error {
	portal, ok, err := portalOr404(c)
	if !ok {
		return err
	}
	module, ok, err := moduleOr404(c, portal.ID)
	if !ok {
		return err
	}

	modules, err := portalModules(database.Database.Db, portal.ID)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch modules!", nil)
	}
	moduleIDs := tree.Descendants(classroom.ModuleForest(modules), module.ID)

	var lessonIDs []uint
	tx := database.Database.Db.Begin()

	if err := tx.Model(&course.Lesson{}).Where("module_id IN ? AND is_deleted = ?", moduleIDs, false).Pluck("id", &lessonIDs).Error; err != nil {
		tx.Rollback()
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to delete module lessons!", nil)
	}
	if err := tx.Model(&course.Module{}).Where("id IN ?", moduleIDs).Update("is_deleted", true).Error; err != nil {
		tx.Rollback()
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to delete module!", nil)
	}
	if err := tx.Model(&course.Lesson{}).Where("module_id IN ?", moduleIDs).Update("is_deleted", true).Error; err != nil {
		tx.Rollback()
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to delete module lessons!", nil)
	}

	if err := tx.Commit().Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to delete module!", nil)
	}

	for _, id := range moduleIDs {
		realtime.Emit(realtime.TableModules, realtime.Delete, map[string]interface{}{"id": id})
	}
	for _, id := range lessonIDs {
		realtime.Emit(realtime.TableLessons, realtime.Delete, map[string]interface{}{"id": id})
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Module deleted successfully!", fiber.Map{
		"module_ids": moduleIDs,
		"lesson_ids": lessonIDs,
	})
}

// AdminListModules lists the modules of a portal as a flat list
func AdminListModules(c *fiber.Ctx) error {
	portal, ok, err := portalOr404(c)
	if !ok {
		return err
	}

	modules, err := portalModules(database.Database.Db, portal.ID)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch modules!", nil)
	}

	type ModuleWithCount struct {
		course.Module
		LessonCount int64 `json:"lesson_count"`
	}

	modulesWithCount := make([]ModuleWithCount, len(modules))
	for i, mod := range modules {
		var count int64
		database.Database.Db.Model(&course.Lesson{}).Where("module_id = ? AND is_deleted = ?", mod.ID, false).Count(&count)
		modulesWithCount[i] = ModuleWithCount{Module: mod, LessonCount: count}
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Modules fetched successfully!", fiber.Map{
		"modules": modulesWithCount,
	})
}

// AdminModuleTree returns the portal outline with every lesson, published or not
func AdminModuleTree(c *fiber.Ctx) error {
	portal, ok, err := portalOr404(c)
	if !ok {
		return err
	}
	db := database.Database.Db

	modules, err := portalModules(db, portal.ID)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch modules!", nil)
	}
	var lessons []course.Lesson
	if err := db.Where("portal_id = ? AND is_deleted = ?", portal.ID, false).Order("order_index asc").Find(&lessons).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch lessons!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Module tree fetched successfully!", fiber.Map{
		"tree": classroom.Arrange(modules, lessons),
	})
}
