package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron"

	config "github.com/crosspost-io/crosspost/configs"
	"github.com/crosspost-io/crosspost/internal/api/handlers"
	"github.com/crosspost-io/crosspost/internal/database"
	"github.com/crosspost-io/crosspost/internal/dispatch"
	job "github.com/crosspost-io/crosspost/internal/jobs"
	"github.com/crosspost-io/crosspost/internal/models"
	"github.com/crosspost-io/crosspost/internal/repository"
	"github.com/crosspost-io/crosspost/internal/scheduler"
	"github.com/crosspost-io/crosspost/internal/storage"
	"github.com/crosspost-io/crosspost/internal/upload"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}
	if err := database.Migrate(context.Background(), db); err != nil {
		log.Fatalf("Failed to prepare database schema: %v", err)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, X-Upload-Token",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	contentRepo := repository.NewContentRepository(db)
	uploadRepo := repository.NewUploadSessionRepository(db)

	chunkStore := storage.NewFSChunkStore(cfg.Upload.ChunkDir)
	r2Store := storage.NewR2Store(*cfg)

	uploadManager := upload.NewManager(
		uploadRepo,
		chunkStore,
		r2Store,
		cfg.SecretKey,
		cfg.Upload.MediaDir,
		cfg.Upload.ChunkSize,
		cfg.Upload.SimpleThreshold,
		time.Duration(cfg.Upload.SessionTTLHours)*time.Hour,
	)

	registry := dispatch.NewRegistry()
	for platform, url := range map[string]string{
		models.PlatformTwitter:   cfg.TwitterWebhook,
		models.PlatformTelegram:  cfg.TelegramWebhook,
		models.PlatformInstagram: cfg.InstagramWebhook,
		models.PlatformTiktok:    cfg.TiktokWebhook,
	} {
		if url != "" {
			registry.Register(platform, dispatch.NewWebhookDispatcher(platform, url))
		}
	}

	executor := scheduler.NewJobExecutor(contentRepo, registry, cfg.Upload.ScheduledDir)
	sched := scheduler.New(contentRepo, executor)

	restored, err := sched.RestoreAll(context.Background())
	if err != nil {
		log.Fatalf("Failed to restore scheduled jobs: %v", err)
	}
	log.Printf("Restored %d scheduled jobs", restored)

	reaper := job.NewSessionReaperJob(uploadManager)
	c := cron.New()
	c.AddFunc("@every 01h00m00s", reaper.ReapExpiredSessions)
	c.Start()

	api := app.Group("/api")

	schedule := handlers.NewScheduleHandler(sched, contentRepo)
	api.Post("/schedule", schedule.CreateSchedule)
	api.Get("/schedule", schedule.ListSchedules)
	api.Delete("/schedule/:id", schedule.CancelSchedule)

	uploads := handlers.NewUploadHandler(uploadManager)
	api.Post("/upload/media", uploads.UploadMedia)
	api.Post("/upload/init", uploads.InitUpload)
	api.Post("/upload/chunk/:id", uploads.UploadChunk)
	api.Post("/upload/complete/:id", uploads.CompleteUpload)
	api.Get("/upload/status/:id", uploads.UploadStatus)
	api.Delete("/upload/:id", uploads.CancelUpload)

	go func() {
		if err := app.Listen(cfg.ListenAddr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("Server is running on %s", cfg.ListenAddr)

	gracefulShutdown(app, db, sched)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB, sched *scheduler.Scheduler) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	sched.Stop()
	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
