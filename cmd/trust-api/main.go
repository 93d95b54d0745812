package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/promoteur-trust-api/api/swagger"
	"github.com/noah-isme/promoteur-trust-api/internal/handler"
	"github.com/noah-isme/promoteur-trust-api/internal/repository"
	"github.com/noah-isme/promoteur-trust-api/internal/service"
	"github.com/noah-isme/promoteur-trust-api/pkg/cache"
	"github.com/noah-isme/promoteur-trust-api/pkg/config"
	"github.com/noah-isme/promoteur-trust-api/pkg/database"
	"github.com/noah-isme/promoteur-trust-api/pkg/events"
	"github.com/noah-isme/promoteur-trust-api/pkg/jobs"
	"github.com/noah-isme/promoteur-trust-api/pkg/logger"
	"github.com/noah-isme/promoteur-trust-api/pkg/storage"
)

// @title Promoteur Trust API
// @version 1.0.0
// @description Trust scoring, automated sanctions and appeals for promoteurs
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.NotificationTopic)
		if err != nil {
			return fmt.Errorf("init kafka publisher: %w", err)
		}
		defer kafka.Close() //nolint:errcheck
		publisher = kafka
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	promoteurRepo := repository.NewPromoteurRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	signalRepo := repository.NewSignalRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)
	configRepo := repository.NewTrustConfigRepository(db)
	appealRepo := repository.NewAppealRepository(db)
	badgeRepo := repository.NewBadgeRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	userRepo := repository.NewUserRepository(db)

	locker := service.NewLocker(nil, cfg.Trust.LockTTL, logr)
	cacheSvc := service.NewCacheService(nil, metrics, cfg.Trust.CacheTTL, logr, false)
	if redisClient != nil {
		locker = service.NewLocker(repository.NewLockRepository(redisClient, cfg.Redis.KeyPrefix), cfg.Trust.LockTTL, logr)
		cacheSvc = service.NewCacheService(repository.NewCacheRepository(redisClient, cfg.Redis.KeyPrefix, logr), metrics, cfg.Trust.CacheTTL, logr, true)
	}

	audit := service.NewAuditTrail(auditRepo, logr, "trust-engine")
	notifier := service.NewNotificationService(notificationRepo, userRepo, publisher, metrics, logr)
	configSvc := service.NewTrustConfigService(configRepo, validate, audit, logr)
	configSvc.UseScoreCache(cacheSvc)
	gaming := service.NewGamingDetector(projectRepo, nil)

	mux := jobs.NewMux()
	queue := jobs.NewQueue("trust-score", mux.Dispatch, jobs.QueueConfig{
		Workers:    cfg.Queue.Workers,
		MaxRetries: cfg.Queue.Retries,
		RetryDelay: cfg.Queue.RetryDelay,
		JobTimeout: cfg.Trust.BatchItemTimeout,
		Logger:     logr,
	})

	trustSvc := service.NewTrustScoreService(promoteurRepo, signalRepo, projectRepo, snapshotRepo, configSvc, gaming, audit, logr,
		service.TrustScoreConfig{
			CacheTTL:    cfg.Trust.CacheTTL,
			Concurrency: cfg.Trust.BatchConcurrency,
			ItemTimeout: cfg.Trust.BatchItemTimeout,
		},
		service.WithTrustScoreCache(cacheSvc),
		service.WithTrustScoreQueue(queue),
		service.WithTrustScoreMetrics(metrics),
		service.WithTrustScoreLocker(locker),
	)
	mux.Handle(service.JobTypeTrustRecalculation, trustSvc.HandleRecalculationJob)
	queue.Start(ctx)
	defer queue.Stop()

	sanctionSvc := service.NewSanctionService(promoteurRepo, projectRepo, notifier, audit, locker, metrics, logr, service.SanctionConfig{
		Concurrency: cfg.Trust.BatchConcurrency,
		ItemTimeout: cfg.Trust.BatchItemTimeout,
	})
	appealSvc := service.NewAppealService(appealRepo, promoteurRepo, notifier, audit, locker, validate, metrics, logr, nil)
	tx := database.NewTransactor(db)
	sanctionSvc.UseTransactions(tx)
	appealSvc.UseTransactions(tx)
	badgeSvc := service.NewBadgeService(badgeRepo, promoteurRepo, audit, locker, metrics, logr, nil)
	tokens := service.NewTokenService(service.TokenConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
	})

	deps := handler.RouterDeps{
		Logger:         logr,
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Tokens:         tokens,
		Metrics:        metrics,
		AuditLogs:      auditRepo,
		Readiness: map[string]handler.ReadinessCheck{
			"postgres": database.Ping(db),
		},
		TrustScores: trustSvc,
		Badges:      badgeSvc,
		Sanctions:   sanctionSvc,
		Appeals:     appealSvc,
		Configs:     configSvc,
	}
	if redisClient != nil {
		deps.Readiness["redis"] = cache.Ping(redisClient)
	}

	var reportSvc *service.ReportService
	if cfg.Reports.Enabled {
		files, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			return fmt.Errorf("init report storage: %w", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		reportSvc = service.NewReportService(promoteurRepo, files, signer, audit, logr, service.ReportServiceConfig{
			DownloadPrefix: cfg.APIPrefix + "/exports",
		})
		deps.Reports = reportSvc
	}

	if cfg.Scheduler.Enabled {
		var cleaner interface {
			CleanupExpired(ctx context.Context) int
		}
		if reportSvc != nil {
			cleaner = reportSvc
		}
		scheduler := service.NewSchedulerService(trustSvc, badgeSvc, sanctionSvc, appealSvc, cleaner, metrics, logr, service.SchedulerConfig{
			TrustScoreCron:    cfg.Scheduler.TrustScoreCron,
			SanctionsCron:     cfg.Scheduler.SanctionsCron,
			CleanupCron:       cfg.Scheduler.CleanupCron,
			AppealOverdueCron: cfg.Scheduler.AppealOverdueCron,
			JobTimeout:        cfg.Scheduler.JobTimeout,
		})
		if err := scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer scheduler.Stop()
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", server.Addr), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logr.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
