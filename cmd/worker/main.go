package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"fable-server/internal/ai"
	"fable-server/internal/config"
	"fable-server/internal/imaging"
	"fable-server/internal/logger"
	"fable-server/internal/messaging"
	"fable-server/internal/repository"
	"fable-server/internal/translation"
	"fable-server/internal/worker"
	"fable-server/pkg/database"
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

	inbox, err := repository.NewRedisJobInbox(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer inbox.Close()

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

	var primary translation.Provider
	if cfg.DeepLAPIKey != "" {
		primary = translation.NewDeepLClient(cfg.DeepLAPIURL, cfg.DeepLAPIKey, cfg.TranslationTimeout, zapLogger)
	}
	fallback := translation.NewOpenAITranslator(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel, cfg.TranslationTimeout, zapLogger)
	router := translation.NewRouter(
		config.SplitLanguageCodes(cfg.DirectLanguages),
		config.SplitLanguageCodes(cfg.ProviderALanguages),
		primary, fallback, cfg.TranslationMaxChars, zapLogger)

	storyRepo := repository.NewPgStoryRepository(db.Pool, zapLogger)
	settingsRepo := repository.NewPgSettingsRepository(db.Pool, zapLogger)
	taskHandler := worker.NewHandler(storyRepo, settingsRepo, generator, router, coordinator, zapLogger)

	rescue := func(payload messaging.GenerationTaskPayload, reason string) {
		zapLogger.Error("generation job exhausted all attempts",
			zap.String("job_id", payload.JobID),
			zap.String("story_id", payload.StoryID),
			zap.String("reason", reason))
	}

	policy := messaging.NewRetryPolicy(cfg.RetryMaxAttempts, cfg.RetryBackoff())
	consumer, err := messaging.NewTaskConsumer(cfg.RabbitMQURL,
		cfg.GenerationTaskQueue, cfg.GenerationRetryQueue, cfg.DomainEventsQueue,
		policy, taskHandler, inbox, rescue, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to initialize task consumer", zap.Error(err))
	}

	if err := consumer.Start(ctx); err != nil {
		zapLogger.Fatal("failed to start task consumer", zap.Error(err))
	}

	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: promhttp.Handler(),
	}
	go func() {
		zapLogger.Info("metrics server listening", zap.String("port", cfg.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Error("metrics server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("shutting down")

	if err := consumer.Stop(); err != nil {
		zapLogger.Error("consumer shutdown failed", zap.Error(err))
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("metrics server shutdown failed", zap.Error(err))
	}
	zapLogger.Info("shutdown complete")
}
