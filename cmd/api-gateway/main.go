package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/org-recognition-api/api/swagger"
	"github.com/noah-isme/org-recognition-api/internal/handler"
	internalmiddleware "github.com/noah-isme/org-recognition-api/internal/middleware"
	"github.com/noah-isme/org-recognition-api/internal/repository"
	"github.com/noah-isme/org-recognition-api/internal/service"
	"github.com/noah-isme/org-recognition-api/pkg/cache"
	"github.com/noah-isme/org-recognition-api/pkg/config"
	"github.com/noah-isme/org-recognition-api/pkg/database"
	"github.com/noah-isme/org-recognition-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/org-recognition-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/org-recognition-api/pkg/middleware/requestid"
	"github.com/noah-isme/org-recognition-api/pkg/storage"
)

// @title Organization Recognition API
// @version 1.0.0
// @description Academic calendar, compliance gate and two-stage approval of student organization documents
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(context.Background(), cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.RunMigrations {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, continuing without cache", zap.Error(err))
			redisClient = nil
		}
	}

	artifacts, err := storage.NewLocalStorage(cfg.Archival.ArtifactsDir)
	if err != nil {
		logr.Fatal("failed to prepare artifacts directory", zap.Error(err))
	}

	loc := cfg.Calendar.Location()
	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	termRepo := repository.NewTermRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	proposalRepo := repository.NewEventProposalRepository(db)
	archivalRepo := repository.NewArchivalRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Aggregates.CacheTTL, logr, redisClient != nil)

	notificationSvc := service.NewNotificationService(newNotifier(cfg, redisClient, logr), service.NotificationConfig{
		Workers:    cfg.Notifications.Workers,
		Retries:    cfg.Notifications.Retries,
		RetryDelay: cfg.Notifications.RetryDelay,
	}, metricsSvc, logr)

	archivalSvc := service.NewArchivalService(termRepo, archivalRepo, service.ArchivalConfig{
		Schedule: cfg.Archival.SweepSchedule,
		Timeout:  cfg.Archival.SweepTimeout,
		Location: loc,
	}, logr,
		service.WithArchivalCache(cacheSvc),
		service.WithArchivalArtifacts(artifacts),
		service.WithArchivalMetrics(metricsSvc),
	)

	termSvc := service.NewTermService(termRepo, validate, logr, service.TermPolicy{
		MinDays:  cfg.Calendar.MinTermDays,
		MaxDays:  cfg.Calendar.MaxTermDays,
		Location: loc,
	}, service.WithTermArchiver(archivalSvc))

	complianceSvc := service.NewComplianceService(termRepo, submissionRepo, service.CompliancePolicy{
		BlockOnMissedDeadline: cfg.Compliance.BlockOnMissedDeadline,
		Location:              loc,
	}, logr, nil)

	submissionSvc := service.NewSubmissionService(submissionRepo, complianceSvc, notificationSvc, validate, logr,
		service.WithSubmissionCache(cacheSvc),
		service.WithArtifactRemover(artifacts),
		service.WithSubmissionMetrics(metricsSvc),
	)
	proposalSvc := service.NewEventProposalService(proposalRepo, complianceSvc, cacheSvc, cfg.Aggregates.CacheTTL, validate, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	if err := archivalSvc.Start(ctx); err != nil {
		logr.Fatal("failed to schedule archival sweep", zap.Error(err))
	}
	defer archivalSvc.Stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	if cfg.Metrics.Enabled {
		r.Use(internalmiddleware.Metrics(metricsSvc, "/metrics", "/health"))
	}

	deps := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		deps["redis"] = handler.PingerFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	handler.RegisterOps(r, handler.NewMetricsHandler(metricsSvc, deps), cfg.Metrics.Enabled)

	handler.Register(r.Group(cfg.APIPrefix), handler.Handlers{
		Terms:          handler.NewTermHandler(termSvc, archivalSvc),
		Compliance:     handler.NewComplianceHandler(complianceSvc),
		Submissions:    handler.NewSubmissionHandler(submissionSvc),
		EventProposals: handler.NewEventProposalHandler(proposalSvc),
	}, logr)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newNotifier(cfg *config.Config, client *redis.Client, logr *zap.Logger) service.Notifier {
	if cfg.Notifications.Driver == "redis" {
		if client == nil {
			logr.Warn("redis notifier requested without redis, falling back to log notifier")
		} else {
			return service.NewRedisNotifier(cache.NewPublisher(client, cfg.Notifications.Channel))
		}
	}
	return service.NewLogNotifier(logr)
}
