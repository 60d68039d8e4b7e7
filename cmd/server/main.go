package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/vocalsmith/api/internal/client"
	"github.com/vocalsmith/api/internal/config"
	"github.com/vocalsmith/api/internal/handler"
	"github.com/vocalsmith/api/internal/middleware"
	"github.com/vocalsmith/api/internal/service"
	"github.com/vocalsmith/api/internal/store"
	"github.com/vocalsmith/api/internal/worker"
	ws "github.com/vocalsmith/api/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize external clients
	elevenClient := client.NewElevenLabsClient(&cfg.ElevenLabs)
	transcribeClient := client.NewTranscribeClient(&cfg.Transcribe)

	// Initialize R2 client (optional - continues if not configured)
	var r2Client *client.R2Client
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		var err error
		r2Client, err = client.NewR2Client(&cfg.R2)
		if err != nil {
			log.Printf("Warning: R2 client not initialized: %v", err)
		}
	} else {
		log.Println("Info: R2 storage not configured, artifacts stay on local disk only")
	}

	// Initialize stores and services
	songStore := store.NewRedisSongStore(redisClient)
	jobStore := store.NewRedisJobStore(redisClient)
	jobService := service.NewJobService(jobStore, asynqClient)
	songService := service.NewSongService(songStore, jobService, cfg)

	// Initialize handlers
	songHandler := handler.NewSongHandler(songService, validate)
	jobHandler := handler.NewJobHandler(jobService)
	voicesHandler := handler.NewVoicesHandler(elevenClient)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    110 * 1024 * 1024, // two audio uploads plus headroom
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"synthesis":     elevenClient.IsConfigured(),
				"transcription": transcribeClient.IsConfigured(),
				"r2":            r2Client != nil,
				"auth":          authMiddleware.Enabled(),
			},
		})
	})

	// API routes
	api := app.Group("/api", authMiddleware.Authenticate())

	songs := api.Group("/songs")
	songs.Post("/", rateLimiter.SongsLimit(cfg.RateLimit.SongsPerHour), songHandler.Create)
	songs.Get("/:id", songHandler.Get)
	songs.Post("/:id/improve", rateLimiter.ImproveLimit(cfg.RateLimit.ImprovePerHour), songHandler.Improve)
	songs.Get("/:id/lyrics", songHandler.Lyrics)
	songs.Get("/:id/download", songHandler.Download)

	jobs := api.Group("/jobs")
	jobs.Get("/:jobId", jobHandler.Status)
	jobs.Get("/:jobId/result", jobHandler.Result)

	api.Get("/voices", rateLimiter.VoicesLimit(cfg.RateLimit.VoicesPerMin), voicesHandler.List)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Start Asynq worker server
	go startWorkerServer(cfg, jobService, songStore, songService, hub, r2Client, elevenClient, transcribeClient)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(
	cfg *config.Config,
	jobService *service.JobService,
	songStore store.SongStore,
	songService *service.SongService,
	hub *ws.Hub,
	r2Client *client.R2Client,
	elevenClient *client.ElevenLabsClient,
	transcribeClient *client.TranscribeClient,
) {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				"pipeline": 10,
			},
			LogLevel: asynqLogLevel,
		},
	)

	var storage client.StorageClient
	if r2Client != nil {
		storage = r2Client
	}
	pipelineWorker := worker.NewPipelineWorker(
		cfg, jobService, songStore, songService, hub, storage, elevenClient, transcribeClient,
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypePerfect, pipelineWorker.ProcessTask)
	mux.HandleFunc(service.TaskTypePerformance, pipelineWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
