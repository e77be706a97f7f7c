package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/nilai-go-api/internal/config"
	"github.com/noah-isme/nilai-go-api/internal/database"
	"github.com/noah-isme/nilai-go-api/internal/grading"
	"github.com/noah-isme/nilai-go-api/internal/handler"
	"github.com/noah-isme/nilai-go-api/internal/middleware"
	"github.com/noah-isme/nilai-go-api/internal/models"
	"github.com/noah-isme/nilai-go-api/internal/repository"
	"github.com/noah-isme/nilai-go-api/internal/router"
	"github.com/noah-isme/nilai-go-api/internal/service"
	cloud "github.com/noah-isme/nilai-go-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.CriteriaSet{},
		&models.GradingBatch{},
		&models.Submission{},
		&models.GradeRecord{},
		&models.GradeAdjustment{},
		&models.ActivityLog{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	}

	var uploader service.FileUploader
	if cfg.CloudinaryCloudName != "" {
		cloudService, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.ReportUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		uploader = cloudService
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	engine := grading.NewEngine(cfg.Heuristics())

	batchRepo := repository.NewBatchRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	criteriaRepo := repository.NewCriteriaSetRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)

	activityService := service.NewActivityService(activityRepo, logger)
	criteriaService := service.NewCriteriaService(criteriaRepo, validate, activityService, logger)
	progressService := service.NewProgressService(redisClient, natsConn, logger)
	progressService.Start(ctx)
	analyticsService := service.NewAnalyticsService(analyticsRepo, batchRepo, redisClient, cfg.AnalyticsCacheTTL, logger)
	batchService := service.NewBatchService(batchRepo, submissionRepo, criteriaRepo, validate, uploader, activityService, logger, cfg.MaxArchiveBytes())
	runService := service.NewGradingRunService(batchRepo, submissionRepo, gradeRepo, criteriaService, engine, progressService, analyticsService, activityService, logger, cfg.GradingWorkers)
	submissionService := service.NewSubmissionService(submissionRepo, gradeRepo, criteriaService, engine, validate, activityService, logger)
	reportService := service.NewReportService(batchRepo, submissionRepo, uploader, activityService, logger)

	if _, err := criteriaService.EnsureDefault(ctx); err != nil {
		log.Fatalf("failed to seed default criteria: %v", err)
	}

	batchHandler := handler.NewBatchHandler(batchService, runService, reportService, logger)
	submissionHandler := handler.NewSubmissionHandler(submissionService, logger)
	criteriaHandler := handler.NewCriteriaHandler(criteriaService, logger)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsService, logger)
	activityHandler := handler.NewActivityHandler(activityService, progressService, logger, cfg.ProgressKeepAlive)
	progressHandler := handler.NewProgressHandler(progressService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	healthProbes := map[string]handler.Probe{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	}
	if natsConn != nil {
		healthProbes["nats"] = func(ctx context.Context) error {
			if !natsConn.IsConnected() {
				return nats.ErrConnectionClosed
			}
			return nil
		}
	}

	router.Register(app, cfg, router.Dependencies{
		BatchHandler:      batchHandler,
		SubmissionHandler: submissionHandler,
		CriteriaHandler:   criteriaHandler,
		AnalyticsHandler:  analyticsHandler,
		ActivityHandler:   activityHandler,
		ProgressHandler:   progressHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
		HealthProbes:      healthProbes,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(ctx, app)
}

func waitForShutdown(ctx context.Context, app *fiber.App) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
