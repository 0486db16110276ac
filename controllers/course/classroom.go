package controllers

import (
	"errors"
	"time"

	"coursehub/classroom"
	"coursehub/database"
	"coursehub/middleware"
	"coursehub/models/course"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func portalBySlug(c *fiber.Ctx) (course.Portal, bool, error) {
	var portal course.Portal
	err := database.Database.Db.Where("slug = ? AND is_deleted = ? AND is_active = ?", c.Params("slug"), false, true).First(&portal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return portal, false, middleware.JsonResponse(c, fiber.StatusNotFound, false, "Portal not found!", nil)
		}
		return portal, false, middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch portal!", nil)
	}
	return portal, true, nil
}

func viewerOr403(c *fiber.Ctx, portalID uint) (classroom.Viewer, bool, error) {
	user, _ := middleware.CurrentUser(c)
	viewer, err := classroom.LoadViewer(database.Database.Db, user, portalID)
	if err != nil {
		if errors.Is(err, classroom.ErrNotEnrolled) {
			return viewer, false, middleware.JsonResponse(c, fiber.StatusForbidden, false, "You are not enrolled in this portal!", nil)
		}
		return viewer, false, middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch enrollment!", nil)
	}
	return viewer, true, nil
}

// GetClassroom returns the portal outline the member may see
func GetClassroom(c *fiber.Ctx) error {
	portal, ok, err := portalBySlug(c)
	if !ok {
		return err
	}
	viewer, ok, err := viewerOr403(c, portal.ID)
	if !ok {
		return err
	}

	outline, err := classroom.Outline(database.Database.Db, viewer, portal.ID, time.Now())
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch classroom!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Classroom fetched successfully!", fiber.Map{
		"portal":     portal,
		"enrollment": viewer.Enrollment,
		"modules":    outline,
	})
}

// GetLesson returns one lesson when the member may open it
func GetLesson(c *fiber.Ctx) error {
	portal, ok, err := portalBySlug(c)
	if !ok {
		return err
	}
	viewer, ok, err := viewerOr403(c, portal.ID)
	if !ok {
		return err
	}

	lessonID := c.Locals("lesson_id").(uint)
	var lesson course.Lesson
	if err := database.Database.Db.Where("id = ? AND portal_id = ? AND is_deleted = ?", lessonID, portal.ID, false).First(&lesson).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Lesson not found!", nil)
	}

	if err := classroom.LessonAccess(database.Database.Db, viewer, lesson, time.Now()); err != nil {
		if errors.Is(err, classroom.ErrLessonHidden) {
			return middleware.JsonResponse(c, fiber.StatusForbidden, false, "This lesson is not available to you!", nil)
		}
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to check lesson access!", nil)
	}

	var module course.Module
	database.Database.Db.Where("id = ?", lesson.ModuleID).First(&module)

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Lesson fetched successfully!", fiber.Map{
		"lesson": lesson,
		"module": module,
	})
}
