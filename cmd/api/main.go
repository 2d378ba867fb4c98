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
	"github.com/rs/zerolog"

	"github.com/gradepilot/gradepilot-api/internal/config"
	"github.com/gradepilot/gradepilot-api/internal/database"
	"github.com/gradepilot/gradepilot-api/internal/handler"
	"github.com/gradepilot/gradepilot-api/internal/middleware"
	"github.com/gradepilot/gradepilot-api/internal/models"
	"github.com/gradepilot/gradepilot-api/internal/queue"
	"github.com/gradepilot/gradepilot-api/internal/repository"
	"github.com/gradepilot/gradepilot-api/internal/router"
	"github.com/gradepilot/gradepilot-api/internal/service"
	"github.com/gradepilot/gradepilot-api/pkg/ai"
	cloud "github.com/gradepilot/gradepilot-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Assignment{},
		&models.Submission{},
		&models.Grade{},
		&models.GradeReviewEvent{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	var uploader service.FileUploader
	if cfg.CloudinaryCloudName != "" {
		cloudService, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		uploader = cloudService
	}

	grader, err := buildGrader(cfg, logger)
	if err != nil {
		log.Fatalf("failed to create grading oracle: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	gradeRepo := repository.NewGradeRepository(db)

	gradingQueue := queue.New(redisClient, cfg.GradingQueueKey, logger)
	gradingLock := queue.NewLock(redisClient, 10*time.Minute)
	notifier := service.NewStatusNotifier(natsConn, cfg.NATSSubject, logger)

	authService := service.NewAuthService(userRepo, validate, cfg.JWTSecret, cfg.JWTTTL, logger)
	assignmentService := service.NewAssignmentService(assignmentRepo, validate, logger)
	submissionService := service.NewSubmissionService(submissionRepo, assignmentRepo, validate, uploader, gradingQueue, notifier, logger)
	gradingService := service.NewGradingService(submissionRepo, assignmentRepo, grader, gradingLock, notifier, service.GradingConfig{
		OracleRetries: cfg.OracleRetries,
		Concurrency:   cfg.GradingConcurrency,
	}, logger)
	reviewService := service.NewReviewService(gradeRepo, submissionRepo, assignmentRepo, logger)
	dashboardService := service.NewDashboardService(assignmentRepo, submissionRepo, gradeRepo, redisClient, cfg.DashboardCacheTTL, logger)

	authHandler := handler.NewAuthHandler(authService, logger)
	assignmentHandler := handler.NewAssignmentHandler(assignmentService, logger)
	submissionHandler := handler.NewSubmissionHandler(submissionService, logger)
	gradeHandler := handler.NewGradeHandler(reviewService, logger)
	dashboardHandler := handler.NewDashboardHandler(dashboardService, logger)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	pool := queue.NewPool(gradingQueue, gradingService.Grade, cfg.GradingWorkers, 5*time.Minute, logger)
	pool.Start(workerCtx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:       authHandler,
		AssignmentHandler: assignmentHandler,
		SubmissionHandler: submissionHandler,
		GradeHandler:      gradeHandler,
		DashboardHandler:  dashboardHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, stopWorkers, pool)
}

func buildGrader(cfg config.Config, logger zerolog.Logger) (ai.Grader, error) {
	switch cfg.AIProvider {
	case "anthropic":
		return ai.NewAnthropicGrader(ai.AnthropicConfig{
			APIKey: cfg.AnthropicAPIKey,
			Model:  cfg.AIModel,
		})
	default:
		return ai.NewOpenAIGrader(ai.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.AIModel,
			Logger: logger,
		})
	}
}

func waitForShutdown(app *fiber.App, stopWorkers context.CancelFunc, pool *queue.Pool) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	stopWorkers()
	pool.Wait()

	log.Println("server stopped")
}
