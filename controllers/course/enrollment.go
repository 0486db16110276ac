package controllers

import (
	"context"
	"errors"
	"fmt"

	"coursehub/database"
	"coursehub/middleware"
	"coursehub/models"
	"coursehub/models/course"
	"coursehub/permissions"
	validators "coursehub/validators/course"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// enrollmentStore writes enrollments inside one transaction.
type enrollmentStore struct {
	tx *gorm.DB
}

func (s enrollmentStore) DeleteEnrollment(ctx context.Context, userID, portalID uint) error {
	return s.tx.WithContext(ctx).
		Where("user_id = ? AND portal_id = ?", userID, portalID).
		Delete(&course.Enrollment{}).Error
}

func (s enrollmentStore) UpsertEnrollment(ctx context.Context, userID uint, rec permissions.Record) error {
	enrollment := course.Enrollment{
		UserID:     userID,
		PortalID:   rec.PortalID,
		FullAccess: rec.FullAccess,
		ModuleIDs:  rec.ModuleIDs,
	}
	return s.tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "portal_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"full_access", "module_ids", "updated_at"}),
	}).Create(&enrollment).Error
}

// PortalAccessView is one row of the enrollment editor.
type PortalAccessView struct {
	PortalID   uint   `json:"portal_id"`
	PortalName string `json:"portal_name"`
	Enabled    bool   `json:"enabled"`
	FullAccess bool   `json:"full_access"`
	ModuleIDs  []uint `json:"module_ids"`
}

func targetUserOr404(c *fiber.Ctx) (models.User, bool, error) {
	userID := c.Locals("user_id").(uint)
	var user models.User
	err := database.Database.Db.Where("id = ? AND is_deleted = ?", userID, false).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user, false, middleware.JsonResponse(c, fiber.StatusNotFound, false, "User not found!", nil)
		}
		return user, false, middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch user!", nil)
	}
	return user, true, nil
}

func enrollmentState(db *gorm.DB, userID uint) ([]course.Portal, permissions.State, error) {
	var portals []course.Portal
	if err := db.Where("is_deleted = ?", false).Order("name asc").Find(&portals).Error; err != nil {
		return nil, nil, err
	}
	var enrollments []course.Enrollment
	if err := db.Where("user_id = ?", userID).Find(&enrollments).Error; err != nil {
		return nil, nil, err
	}

	portalIDs := make([]uint, len(portals))
	for i, p := range portals {
		portalIDs[i] = p.ID
	}
	records := make([]permissions.Record, 0, len(enrollments))
	for _, e := range enrollments {
		records = append(records, permissions.Record{PortalID: e.PortalID, FullAccess: e.FullAccess, ModuleIDs: e.ModuleIDs})
	}
	return portals, permissions.FromRecords(portalIDs, records), nil
}

// AdminGetEnrollments returns the editor state of a user: every portal with its access
func AdminGetEnrollments(c *fiber.Ctx) error {
	user, ok, err := targetUserOr404(c)
	if !ok {
		return err
	}

	portals, state, err := enrollmentState(database.Database.Db, user.ID)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch enrollments!", nil)
	}

	rows := make([]PortalAccessView, 0, len(portals))
	for _, p := range portals {
		a := state[p.ID]
		rows = append(rows, PortalAccessView{
			PortalID:   p.ID,
			PortalName: p.Name,
			Enabled:    a.Enabled,
			FullAccess: a.FullAccess,
			ModuleIDs:  a.Modules(),
		})
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Enrollments fetched successfully!", fiber.Map{
		"user_id": user.ID,
		"portals": rows,
	})
}

// checkModules reports explicit module ids that do not belong to their portal.
func checkModules(db *gorm.DB, state permissions.State) (map[string]string, error) {
	errs := make(map[string]string)
	for _, portalID := range state.Portals() {
		a := state[portalID]
		if !a.Enabled {
			continue
		}
		if _, err := findPortal(db, portalID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				errs[fmt.Sprintf("portals.%d", portalID)] = "Portal not found!"
				continue
			}
			return nil, err
		}
		wanted := a.Modules()
		if len(wanted) == 0 {
			continue
		}
		var found []uint
		if err := db.Model(&course.Module{}).
			Where("portal_id = ? AND is_deleted = ? AND id IN ?", portalID, false, wanted).
			Pluck("id", &found).Error; err != nil {
			return nil, err
		}
		if len(found) != len(wanted) {
			errs[fmt.Sprintf("portals.%d.module_ids", portalID)] = "Some modules do not belong to this portal!"
		}
	}
	return errs, nil
}

// AdminSaveEnrollments replaces the access of a user for every portal in the request.
// Disabled portals lose their enrollment; enabled ones are upserted. All or nothing.
func AdminSaveEnrollments(c *fiber.Ctx) error {
	user, ok, err := targetUserOr404(c)
	if !ok {
		return err
	}
	reqData := c.Locals("validatedEnrollments").(*validators.SaveEnrollmentsRequest)
	state := reqData.State()

	errs, err := checkModules(database.Database.Db, state)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to check modules!", nil)
	}
	if len(errs) > 0 {
		return middleware.ValidationErrorResponse(c, errs)
	}

	err = database.Database.Db.Transaction(func(tx *gorm.DB) error {
		return permissions.Save(c.UserContext(), user.ID, state, enrollmentStore{tx: tx})
	})
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to save enrollments!", nil)
	}

	var enrollments []course.Enrollment
	database.Database.Db.Where("user_id = ?", user.ID).Order("portal_id asc").Find(&enrollments)

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Enrollments saved successfully!", fiber.Map{
		"enrollments": enrollments,
	})
}
