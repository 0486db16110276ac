package controllers

import (
	"errors"

	"coursehub/database"
	"coursehub/middleware"
	"coursehub/models/course"
	validators "coursehub/validators/course"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func findPortal(db *gorm.DB, portalID uint) (course.Portal, error) {
	var portal course.Portal
	err := db.Where("id = ? AND is_deleted = ?", portalID, false).First(&portal).Error
	return portal, err
}

// portalOr404 loads :portal_id. ok is false when a response was already written.
func portalOr404(c *fiber.Ctx) (course.Portal, bool, error) {
	portalID := c.Locals("portal_id").(uint)
	portal, err := findPortal(database.Database.Db, portalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return portal, false, middleware.JsonResponse(c, fiber.StatusNotFound, false, "Portal not found!", nil)
		}
		return portal, false, middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch portal!", nil)
	}
	return portal, true, nil
}

func slugTaken(slug string, exceptID uint) bool {
	var count int64
	database.Database.Db.Model(&course.Portal{}).Where("slug = ? AND id <> ?", slug, exceptID).Count(&count)
	return count > 0
}

// AdminCreatePortal creates a new portal
func AdminCreatePortal(c *fiber.Ctx) error {
	user, _ := middleware.CurrentUser(c)
	reqData := c.Locals("validatedPortal").(*validators.CreatePortalRequest)

	if slugTaken(reqData.Slug, 0) {
		return middleware.ValidationErrorResponse(c, map[string]string{"slug": "slug is already taken!"})
	}

	portal := course.Portal{
		Name:        reqData.Name,
		Slug:        reqData.Slug,
		Description: reqData.Description,
		OwnerID:     user.ID,
		Theme:       datatypes.JSONMap(reqData.Theme),
		IsActive:    reqData.IsActive == nil || *reqData.IsActive,
	}
	if err := database.Database.Db.Create(&portal).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to create portal!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Portal created successfully!", portal)
}

// AdminUpdatePortal updates name, slug, description, theme or status
func AdminUpdatePortal(c *fiber.Ctx) error {
	portal, ok, err := portalOr404(c)
	if !ok {
		return err
	}
	reqData := c.Locals("validatedPortalUpdate").(*validators.UpdatePortalRequest)

	if reqData.Slug != nil && *reqData.Slug != portal.Slug {
		if slugTaken(*reqData.Slug, portal.ID) {
			return middleware.ValidationErrorResponse(c, map[string]string{"slug": "slug is already taken!"})
		}
		portal.Slug = *reqData.Slug
	}
	if reqData.Name != nil {
		portal.Name = *reqData.Name
	}
	if reqData.Description != nil {
		portal.Description = *reqData.Description
	}
	if reqData.Theme != nil {
		portal.Theme = datatypes.JSONMap(reqData.Theme)
	}
	if reqData.IsActive != nil {
		portal.IsActive = *reqData.IsActive
	}

	if err := database.Database.Db.Save(&portal).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to update portal!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Portal updated successfully!", portal)
}

// AdminDeletePortal soft deletes a portal. Its modules and lessons become unreachable with it.
func AdminDeletePortal(c *fiber.Ctx) error {
	portal, ok, err := portalOr404(c)
	if !ok {
		return err
	}

	if err := database.Database.Db.Model(&portal).Updates(map[string]interface{}{"is_deleted": true, "is_active": false}).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to delete portal!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Portal deleted successfully!", nil)
}

// AdminListPortals lists every portal that is not deleted
func AdminListPortals(c *fiber.Ctx) error {
	var portals []course.Portal
	if err := database.Database.Db.Where("is_deleted = ?", false).Order("created_at desc").Find(&portals).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch portals!", nil)
	}

	type PortalWithCounts struct {
		course.Portal
		ModuleCount int64 `json:"module_count"`
		LessonCount int64 `json:"lesson_count"`
	}

	out := make([]PortalWithCounts, len(portals))
	for i, p := range portals {
		out[i] = PortalWithCounts{Portal: p}
		database.Database.Db.Model(&course.Module{}).Where("portal_id = ? AND is_deleted = ?", p.ID, false).Count(&out[i].ModuleCount)
		database.Database.Db.Model(&course.Lesson{}).Where("portal_id = ? AND is_deleted = ?", p.ID, false).Count(&out[i].LessonCount)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Portals fetched successfully!", fiber.Map{
		"portals": out,
	})
}

// AdminGetPortal returns one portal
func AdminGetPortal(c *fiber.Ctx) error {
	portal, ok, err := portalOr404(c)
	if !ok {
		return err
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Portal fetched successfully!", portal)
}
