package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"coursehub/config"
	"coursehub/database"
	"coursehub/models/course"

	"gorm.io/gorm"
)

// Imports a portal outline from CSV. Columns:
//
//	module_path   "Week 1/Day 1", one segment per nesting level
//	lesson        lesson title, empty for a module-only row
//	content_type  video, text, quiz, file, pdf or external
//	media_url
//	free_preview  true/false
//
// Existing modules and lessons are matched by title and left untouched.
func main() {
	slug := flag.String("portal", "", "slug of the target portal")
	path := flag.String("file", "curriculum.csv", "CSV file to import")
	flag.Parse()

	config.LoadConfig()
	database.ConnectDb()

	var portal course.Portal
	if err := database.Database.Db.Where("slug = ? AND is_deleted = ?", *slug, false).First(&portal).Error; err != nil {
		log.Fatalf("Portal %q not found: %v", *slug, err)
	}

	file, err := os.Open(*path)
	if err != nil {
		log.Fatalf("Failed to open CSV file: %v", err)
	}
	defer file.Close()

	stats, err := importCurriculum(database.Database.Db, portal.ID, file, config.AppConfig.MaxModuleDepth)
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}

	log.Printf("=== Import Complete ===")
	log.Printf("Modules created: %d", stats.Modules)
	log.Printf("Lessons created: %d", stats.Lessons)
	log.Printf("Skipped: %d", stats.Skipped)
}

type importStats struct {
	Modules int
	Lessons int
	Skipped int
}

func importCurriculum(db *gorm.DB, portalID uint, r io.Reader, maxDepth int) (importStats, error) {
	var stats importStats

	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return stats, fmt.Errorf("read csv: %w", err)
	}
	if len(records) < 2 {
		return stats, fmt.Errorf("csv file is empty or has only headers")
	}

	headerIndex := make(map[string]int)
	for i, h := range records[0] {
		headerIndex[strings.TrimSpace(h)] = i
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		modules := map[string]course.Module{}

		for i, row := range records[1:] {
			segments := splitPath(getField(row, headerIndex, "module_path"))
			if len(segments) == 0 || len(segments) > maxDepth {
				log.Printf("Row %d: skipping module path %q", i+2, getField(row, headerIndex, "module_path"))
				stats.Skipped++
				continue
			}

			var parent *uint
			key := ""
			var module course.Module
			for _, title := range segments {
				key += "/" + title
				m, ok := modules[key]
				if !ok {
					created := false
					m, created, err = findOrCreateModule(tx, portalID, parent, title)
					if err != nil {
						return err
					}
					if created {
						stats.Modules++
					}
					modules[key] = m
				}
				id := m.ID
				parent = &id
				module = m
			}

			title := getField(row, headerIndex, "lesson")
			if title == "" {
				continue
			}
			var existing int64
			if err := tx.Model(&course.Lesson{}).Where("module_id = ? AND title = ? AND is_deleted = ?", module.ID, title, false).Count(&existing).Error; err != nil {
				return err
			}
			if existing > 0 {
				stats.Skipped++
				continue
			}

			var maxOrder int
			tx.Model(&course.Lesson{}).Where("module_id = ? AND is_deleted = ?", module.ID, false).Select("COALESCE(MAX(order_index), -1)").Scan(&maxOrder)

			contentType := strings.ToLower(getField(row, headerIndex, "content_type"))
			if contentType == "" {
				contentType = "video"
			}
			if !course.LessonContentTypes[contentType] {
				log.Printf("Row %d: unknown content type %q", i+2, contentType)
				stats.Skipped++
				continue
			}
			lesson := course.Lesson{
				PortalID:      portalID,
				ModuleID:      module.ID,
				Title:         title,
				ContentType:   contentType,
				MediaURL:      getField(row, headerIndex, "media_url"),
				OrderIndex:    maxOrder + 1,
				IsFreePreview: parseBool(getField(row, headerIndex, "free_preview")),
			}
			if err := tx.Create(&lesson).Error; err != nil {
				return fmt.Errorf("row %d: create lesson %q: %w", i+2, title, err)
			}
			stats.Lessons++
		}
		return nil
	})
	return stats, err
}

func findOrCreateModule(tx *gorm.DB, portalID uint, parent *uint, title string) (course.Module, bool, error) {
	q := tx.Where("portal_id = ? AND title = ? AND is_deleted = ?", portalID, title, false)
	if parent == nil {
		q = q.Where("parent_id IS NULL")
	} else {
		q = q.Where("parent_id = ?", *parent)
	}
	var m course.Module
	if err := q.First(&m).Error; err == nil {
		return m, false, nil
	}

	var maxOrder int
	siblings := tx.Model(&course.Module{}).Where("portal_id = ? AND is_deleted = ?", portalID, false)
	if parent == nil {
		siblings = siblings.Where("parent_id IS NULL")
	} else {
		siblings = siblings.Where("parent_id = ?", *parent)
	}
	siblings.Select("COALESCE(MAX(order_index), -1)").Scan(&maxOrder)

	m = course.Module{PortalID: portalID, ParentID: parent, Title: title, OrderIndex: maxOrder + 1, IsActive: true}
	if err := tx.Create(&m).Error; err != nil {
		return m, false, fmt.Errorf("create module %q: %w", title, err)
	}
	return m, true, nil
}

func splitPath(p string) []string {
	var out []string
	for _, seg := range strings.Split(p, "/") {
		if seg = strings.TrimSpace(seg); seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// getField safely gets a field from the row by header name
func getField(row []string, headerIndex map[string]int, field string) string {
	if idx, ok := headerIndex[field]; ok && idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}
