// Package testutil wires an in-memory database and fixtures for handler tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"coursehub/config"
	"coursehub/database"
	"coursehub/middleware"
	"coursehub/models"
	"coursehub/models/course"
	"coursehub/realtime"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Config installs a test configuration unless one is already loaded.
func Config(tb testing.TB) *config.Config {
	tb.Helper()
	if config.AppConfig == nil {
		config.AppConfig = &config.Config{
			JWTKey:         "test-secret",
			MaxModuleDepth: 3,
			ReleaseCron:    "* * * * *",
			PingInterval:   time.Second,
		}
	}
	return config.AppConfig
}

// DB opens a fresh in-memory SQLite database, migrates it and installs it as
// database.Database for the duration of the test.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	Config(tb)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("failed to get test db: %v", err)
	}
	// one connection keeps the in-memory database alive and serializes writers
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		tb.Fatalf("failed to migrate test db: %v", err)
	}

	prev := database.Database
	database.Database = database.DbInstance{Db: db}
	tb.Cleanup(func() {
		database.Database = prev
		_ = sqlDB.Close()
	})
	return db
}

// Token signs a bearer token for user.
func Token(tb testing.TB, user models.User) string {
	tb.Helper()
	Config(tb)
	tok, err := middleware.GenerateJWT(user.ID, user.Role, time.Hour)
	if err != nil {
		tb.Fatalf("failed to sign token: %v", err)
	}
	return "Bearer " + tok
}

func SeedUser(tb testing.TB, db *gorm.DB, role string) models.User {
	tb.Helper()
	u := models.User{Name: role + " user", Email: uuid.NewString() + "@example.com", Role: role}
	if err := db.Create(&u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedPortal(tb testing.TB, db *gorm.DB, slug string) course.Portal {
	tb.Helper()
	p := course.Portal{Name: slug, Slug: slug, IsActive: true}
	if err := db.Create(&p).Error; err != nil {
		tb.Fatalf("seed portal: %v", err)
	}
	return p
}

// SeedModule creates an active module under parent (nil for a root module).
func SeedModule(tb testing.TB, db *gorm.DB, portalID uint, parent *uint, title string, order int) course.Module {
	tb.Helper()
	m := course.Module{PortalID: portalID, ParentID: parent, Title: title, OrderIndex: order, IsActive: true}
	if err := db.Create(&m).Error; err != nil {
		tb.Fatalf("seed module: %v", err)
	}
	return m
}

func SeedLesson(tb testing.TB, db *gorm.DB, m course.Module, title string, order int, published bool) course.Lesson {
	tb.Helper()
	l := course.Lesson{PortalID: m.PortalID, ModuleID: m.ID, Title: title, ContentType: "video", OrderIndex: order, IsPublished: published}
	if err := db.Create(&l).Error; err != nil {
		tb.Fatalf("seed lesson: %v", err)
	}
	return l
}

func SeedEnrollment(tb testing.TB, db *gorm.DB, userID, portalID uint, full bool, moduleIDs ...uint) course.Enrollment {
	tb.Helper()
	if moduleIDs == nil {
		moduleIDs = []uint{}
	}
	e := course.Enrollment{UserID: userID, PortalID: portalID, FullAccess: full, ModuleIDs: moduleIDs}
	if err := db.Create(&e).Error; err != nil {
		tb.Fatalf("seed enrollment: %v", err)
	}
	return e
}

// Changes records every change emitted through realtime.Emit.
type Changes struct {
	mu  sync.Mutex
	all []realtime.Change
}

// RecordChanges installs a publisher on an in-memory bus as realtime.Default
// for the duration of the test.
func RecordChanges(tb testing.TB) *Changes {
	tb.Helper()
	rec := &Changes{}
	bus := realtime.NewMemoryBus()
	if err := bus.StartForwarder(context.Background(), func(ch realtime.Change) {
		rec.mu.Lock()
		rec.all = append(rec.all, ch)
		rec.mu.Unlock()
	}); err != nil {
		tb.Fatalf("start recorder: %v", err)
	}
	prev := realtime.Default
	realtime.Default = realtime.NewPublisher(nil, bus, nil)
	tb.Cleanup(func() { realtime.Default = prev })
	return rec
}

// Of returns the recorded changes for table, in publish order.
func (r *Changes) Of(table string) []realtime.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []realtime.Change
	for _, ch := range r.all {
		if ch.Table == table {
			out = append(out, ch)
		}
	}
	return out
}

// Response is a decoded {status, message, data} envelope.
type Response struct {
	Code    int
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Decode unmarshals the envelope data into out.
func (r Response) Decode(tb testing.TB, out interface{}) {
	tb.Helper()
	if err := json.Unmarshal(r.Data, out); err != nil {
		tb.Fatalf("decode %s: %v", string(r.Data), err)
	}
}

// App builds a fiber app with the given route setups.
func App(setups ...func(*fiber.App)) *fiber.App {
	app := fiber.New()
	for _, setup := range setups {
		setup(app)
	}
	return app
}

// Call sends a JSON request through app with the given bearer token ("" for none).
func Call(tb testing.TB, app *fiber.App, method, path, token string, body interface{}) Response {
	tb.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			tb.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		tb.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	out := Response{Code: resp.StatusCode}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			tb.Fatalf("%s %s: decode %q: %v", method, path, string(raw), err)
		}
	}
	out.Code = resp.StatusCode
	return out
}
