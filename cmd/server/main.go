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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"

	"fable-server/internal/ai"
	"fable-server/internal/config"
	"fable-server/internal/handler"
	"fable-server/internal/imaging"
	"fable-server/internal/logger"
	"fable-server/internal/messaging"
	"fable-server/internal/repository"
	"fable-server/internal/service"
	"fable-server/migrations"
	"fable-server/pkg/database"
	"fable-server/pkg/migration"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, cfg.GetDSN(), cfg.DBMaxConns, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	migrator := migration.NewMigrator(migration.Config{
		MigrationsPath: ".",
		MigrationsFS:   migrations.FS,
	}, db.Pool, zapLogger)
	if err := migrator.Up(ctx); err != nil {
		zapLogger.Fatal("failed to apply migrations", zap.Error(err))
	}

	publisher, err := messaging.NewRabbitPublisher(cfg.RabbitMQURL,
		cfg.GenerationTaskQueue, cfg.GenerationRetryQueue, cfg.DomainEventsQueue, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to initialize RabbitMQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	generator, err := ai.NewStoryGenerator(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to initialize story generator", zap.Error(err))
	}

	imageProvider, err := imaging.NewProvider(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to initialize image provider", zap.Error(err))
	}
	if err := imageProvider.TestConnection(ctx); err != nil {
		zapLogger.Warn("image provider connectivity check failed", zap.Error(err))
	}
	coordinator := imaging.NewCoordinator(imageProvider, zapLogger)

	storyRepo := repository.NewPgStoryRepository(db.Pool, zapLogger)
	settingsRepo := repository.NewPgSettingsRepository(db.Pool, zapLogger)
	quota := service.NewQuotaService(storyRepo, cfg.MonthlyStoryLimit, nil, zapLogger)
	storyService := service.NewStoryService(storyRepo, settingsRepo, quota, publisher, publisher, generator, coordinator, zapLogger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())
	ginprometheus.NewPrometheus("gin").Use(router)

	handler.NewStoryHandler(storyService, quota, zapLogger).RegisterRoutes(router)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		zapLogger.Info("HTTP server listening", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("HTTP server shutdown failed", zap.Error(err))
		os.Exit(1)
	}
	zapLogger.Info("shutdown complete")
}
