package controllers

import (
	"errors"

	"coursehub/database"
	"coursehub/middleware"
	"coursehub/models/course"
	"coursehub/realtime"
	validators "coursehub/validators/course"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func lessonOr404(c *fiber.Ctx, portalID uint) (course.Lesson, bool, error) {
	lessonID := c.Locals("lesson_id").(uint)
	var lesson course.Lesson
	err := database.Database.Db.Where("id = ? AND portal_id = ? AND is_deleted = ?", lessonID, portalID, false).First(&lesson).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return lesson, false, middleware.JsonResponse(c, fiber.StatusNotFound, false, "Lesson not found!", nil)
		}
		return lesson, false, middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch lesson!", nil)
	}
	return lesson, true, nil
}

// mergeSettings applies patch onto base. A nil value removes the key.
func mergeSettings(base datatypes.JSONMap, patch map[string]interface{}) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

// AdminCreateLesson adds a lesson to the end of a module unless an order is given
func AdminCreateLesson(c *fiber.Ctx) error {
	portal, ok, err := portalOr404(c)
	if !ok {
		return err
	}
	module, ok, err := moduleOr404(c, portal.ID)
	if !ok {
		return err
	}
	reqData := c.Locals("validatedLesson").(*validators.CreateLessonRequest)
	db := database.Database.Db

	orderIndex := 0
	if reqData.OrderIndex != nil {
		orderIndex = *reqData.OrderIndex
	} else {
		var maxOrder int
		db.Model(&course.Lesson{}).Where("module_id = ? AND is_deleted = ?", module.ID, false).Select("COALESCE(MAX(order_index), -1)").Scan(&maxOrder)
		orderIndex = maxOrder + 1
	}

	lesson := course.Lesson{
		PortalID:      portal.ID,
		ModuleID:      module.ID,
		Title:         reqData.Title,
		MediaURL:      reqData.MediaURL,
		ContentType:   reqData.ContentType,
		OrderIndex:    orderIndex,
		IsFreePreview: reqData.IsFreePreview,
		IsPublished:   reqData.IsPublished,
		Settings:      mergeSettings(nil, reqData.Settings),
	}
	if err := db.Create(&lesson).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to create lesson!", nil)
	}
	realtime.Emit(realtime.TableLessons, realtime.Insert, lesson)

	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Lesson created successfully!", lesson)
}

// AdminUpdateLesson applies a partial update. Settings are merged key by key.
func AdminUpdateLesson(c *fiber.Ctx) error {
	portal, ok, err := portalOr404(c)
	if !ok {
		return err
	}
	lesson, ok, err := lessonOr404(c, portal.ID)
	if !ok {
		return err
	}
	reqData := c.Locals("validatedLessonUpdate").(*validators.UpdateLessonRequest)

	if reqData.Title != nil {
		lesson.Title = *reqData.Title
	}
	if reqData.MediaURL != nil {
		lesson.MediaURL = *reqData.MediaURL
	}
	if reqData.ContentType != nil {
		lesson.ContentType = *reqData.ContentType
	}
	if reqData.IsFreePreview != nil {
		lesson.IsFreePreview = *reqData.IsFreePreview
	}
	if reqData.Settings != nil {
		lesson.Settings = mergeSettings(lesson.Settings, reqData.Settings)
	}

	if err := database.Database.Db.Save(&lesson).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to update lesson!", nil)
	}
	realtime.Emit(realtime.TableLessons, realtime.Update, lesson)

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Lesson updated successfully!", lesson)
}

// AdminDeleteLesson soft deletes a lesson
func AdminDeleteLesson(c *fiber.Ctx) error {
	portal, ok, err := portalOr404(c)
	if !ok {
		return err
	}
	lesson, ok, err := lessonOr404(c, portal.ID)
	if !ok {
		return err
	}

	if err := database.Database.Db.Model(&lesson).Update("is_deleted", true).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to delete lesson!", nil)
	}
	realtime.Emit(realtime.TableLessons, realtime.Delete, lesson)

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Lesson deleted successfully!", nil)
}

// AdminPublishLesson publishes or unpublishes a lesson
func AdminPublishLesson(c *fiber.Ctx) error {
	portal, ok, err := portalOr404(c)
	if !ok {
		return err
	}
	lesson, ok, err := lessonOr404(c, portal.ID)
	if !ok {
		return err
	}
	reqData := c.Locals("validatedLessonPublish").(*validators.PublishLessonRequest)

	if err := database.Database.Db.Model(&lesson).Update("is_published", reqData.IsPublished).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to update lesson status!", nil)
	}
	lesson.IsPublished = reqData.IsPublished
	realtime.Emit(realtime.TableLessons, realtime.Update, lesson)

	message := "Lesson unpublished successfully!"
	if reqData.IsPublished {
		message = "Lesson published successfully!"
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, message, lesson)
}

// AdminListLessons lists the lessons of one module in display order
func AdminListLessons(c *fiber.Ctx) error {
	portal, ok, err := portalOr404(c)
	if !ok {
		return err
	}
	module, ok, err := moduleOr404(c, portal.ID)
	if !ok {
		return err
	}

	var lessons []course.Lesson
	if err := database.Database.Db.Where("module_id = ? AND is_deleted = ?", module.ID, false).Order("order_index asc").Find(&lessons).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch lessons!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Lessons fetched successfully!", fiber.Map{
		"lessons": lessons,
	})
}
