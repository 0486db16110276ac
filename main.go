package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coursehub/classroom"
	"coursehub/config"
	"coursehub/database"
	"coursehub/logger"
	"coursehub/middleware"
	"coursehub/realtime"
	"coursehub/routers"
	"coursehub/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberLogger "github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	config.LoadConfig()

	appLog, err := logger.New(config.AppConfig.LogMode)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer appLog.Sync()

	database.ConnectDb()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Realtime: every instance runs a hub; Redis fans changes out across instances.
	hub := realtime.NewHub(appLog)
	hub.SetKeepAlive(config.AppConfig.PingInterval)
	hub.SetAuthorizer(classroom.SubscriptionPolicy(database.Database.Db))
	bus := realtime.NewMemoryBus()
	if config.AppConfig.RedisAddr != "" {
		bus, err = realtime.NewRedisBus(appLog, config.AppConfig.RedisAddr, config.AppConfig.RedisChannel)
		if err != nil {
			appLog.Fatal("redis bus unavailable", "addr", config.AppConfig.RedisAddr, "error", err)
		}
	}
	publisher := realtime.NewPublisher(hub, bus, appLog)
	if err := publisher.Start(ctx); err != nil {
		appLog.Fatal("start change forwarder", "error", err)
	}
	defer publisher.Close()
	realtime.Default = publisher

	realtimeServer := &http.Server{
		Addr: ":" + config.AppConfig.RealtimePort,
		Handler: &realtime.Handler{
			Hub:                hub,
			Authenticate:       middleware.ParseUserID,
			InsecureSkipVerify: config.AppConfig.WSInsecureSkipVerify,
		},
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		appLog.Info("realtime server listening", "port", config.AppConfig.RealtimePort)
		if err := realtimeServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("realtime server stopped", "error", err)
		}
	}()

	scheduler, err := utils.InitializeReleaseScheduler(database.Database.Db, config.AppConfig.ReleaseCron, appLog)
	if err != nil {
		appLog.Fatal("invalid RELEASE_CRON", "schedule", config.AppConfig.ReleaseCron, "error", err)
	}
	defer scheduler.Stop()

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE",
		AllowHeaders: "Content-Type,Authorization",
	}))

	app.Use(fiberLogger.New(fiberLogger.Config{
		Format: "[${time}] ${ip} ${method} ${path} ${status} ${latency}\n",
	}))

	routers.SetupRoutes(app)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = realtimeServer.Shutdown(shutdownCtx)
		_ = app.ShutdownWithContext(shutdownCtx)
	}()

	appLog.Info("server is running", "port", config.AppConfig.Port)
	if err := app.Listen(":" + config.AppConfig.Port); err != nil {
		appLog.Error("server stopped", "error", err)
	}
}
