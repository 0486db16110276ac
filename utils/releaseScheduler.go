package utils

import (
	"time"

	"coursehub/logger"
	"coursehub/models/course"
	"coursehub/realtime"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// InitializeReleaseScheduler activates modules whose release date has passed, on schedule.
// The caller stops the returned cron on shutdown.
func InitializeReleaseScheduler(db *gorm.DB, schedule string, log *logger.Logger) (*cron.Cron, error) {
	log = log.With("service", "ReleaseScheduler")
	c := cron.New()

	_, err := c.AddFunc(schedule, func() {
		released, err := ReleaseDueModules(db, time.Now())
		if err != nil {
			log.Error("release run failed", "error", err)
			return
		}
		if len(released) > 0 {
			log.Info("modules released", "count", len(released))
		}
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	log.Info("release scheduler started", "schedule", schedule)
	return c, nil
}

// ReleaseDueModules activates inactive modules whose release_at is due.
// A module is only released when release_at is later than its last edit, so a
// module switched off by an admin after its release date stays off.
func ReleaseDueModules(db *gorm.DB, now time.Time) ([]course.Module, error) {
	var due []course.Module
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("is_active = ? AND is_deleted = ? AND release_at IS NOT NULL AND release_at <= ? AND release_at > updated_at",
			false, false, now).Find(&due).Error; err != nil {
			return err
		}
		if len(due) == 0 {
			return nil
		}
		ids := make([]uint, len(due))
		for i, m := range due {
			ids[i] = m.ID
		}
		return tx.Model(&course.Module{}).Where("id IN ?", ids).
			Updates(map[string]interface{}{"is_active": true, "updated_at": now}).Error
	})
	if err != nil {
		return nil, err
	}

	for i := range due {
		due[i].IsActive = true
		due[i].UpdatedAt = now
		realtime.Emit(realtime.TableModules, realtime.Update, due[i])
	}
	return due, nil
}
