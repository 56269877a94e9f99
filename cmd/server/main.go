package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fadilmartias/ticket-router/internal/config"
	"github.com/fadilmartias/ticket-router/internal/database"
	"github.com/fadilmartias/ticket-router/internal/domain/fiber/handler"
	"github.com/fadilmartias/ticket-router/internal/logging"
	"github.com/fadilmartias/ticket-router/internal/middleware"
	"github.com/fadilmartias/ticket-router/internal/queue"
	"github.com/fadilmartias/ticket-router/internal/repository"
	"github.com/fadilmartias/ticket-router/internal/routing"
	"github.com/fadilmartias/ticket-router/internal/service"
	"github.com/fadilmartias/ticket-router/internal/usecase"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/pprof"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("could not load .env file")
	}

	appConfig := config.LoadAppConfig()
	logging.Init(appConfig.IsProduction(), logging.ParseLevel(appConfig.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect()
	if err != nil {
		slog.Error("database", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		slog.Error("database", "error", err)
		os.Exit(1)
	}

	embedder, err := service.NewEmbeddingService(ctx)
	if err != nil {
		slog.Error("embedding provider", "error", err)
		os.Exit(1)
	}

	store := repository.NewVectorStoreRepository(db)
	departments := repository.NewDepartmentRepository(db)
	routingConfig := config.LoadRoutingConfig()

	embeddingQueue := queue.NewEmbeddingQueue(store, embedder, *config.LoadQueueConfig())
	embeddingQueue.Start()

	scorer := routing.NewScorer(departments, routingConfig.Weights)
	routingUC, err := usecase.NewRoutingUsecase(store, embedder, embeddingQueue, scorer, *routingConfig)
	if err != nil {
		slog.Error("routing usecase", "error", err)
		os.Exit(1)
	}
	indexingUC := usecase.NewIndexingUsecase(store, embeddingQueue)

	app := fiber.New(fiber.Config{
		AppName: appConfig.Name,
		ErrorHandler: func(ctx *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}

			message := err.Error()
			if message == "" {
				message = "Internal Server Error"
			}
			return ctx.Status(code).JSON(fiber.Map{"error": message})
		},
	})
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
	}))
	app.Use(recover.New(recover.Config{
		EnableStackTrace: !appConfig.IsProduction(),
	}))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(pprof.New(pprof.Config{
		Next: func(c *fiber.Ctx) bool {
			return appConfig.IsProduction()
		},
	}))
	app.Use(healthcheck.New())
	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))
	app.Use(middleware.RateLimiter(120, 1*time.Minute))

	handler.NewRoutingHandler(routingUC, indexingUC, embeddingQueue).RegisterRoutes(app)

	go logQueueStats(ctx, embeddingQueue)

	go func() {
		slog.Info("server running", "port", appConfig.Port)
		if err := app.Listen(appConfig.Port); err != nil {
			slog.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("http shutdown", "error", err)
	}
	if err := embeddingQueue.Shutdown(shutdownCtx); err != nil {
		slog.Error("embedding queue shutdown", "error", err)
	}
}

func logQueueStats(ctx context.Context, q *queue.EmbeddingQueue) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := q.Stats()
			slog.Info("embedding queue",
				"pending", s.Pending,
				"running", s.Running,
				"retrying", s.Retrying,
				"succeeded", s.Succeeded,
				"failed", s.Failed,
				"coalesced", s.Coalesced,
			)
		}
	}
}
