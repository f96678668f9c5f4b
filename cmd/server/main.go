package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ignatzorin/youth-governance-backend/internal/config"
	"github.com/ignatzorin/youth-governance-backend/internal/db"
	httpHandlers "github.com/ignatzorin/youth-governance-backend/internal/http/handlers"
	httpRouter "github.com/ignatzorin/youth-governance-backend/internal/http/router"
	"github.com/ignatzorin/youth-governance-backend/internal/logger"
	"github.com/ignatzorin/youth-governance-backend/internal/metrics"
	"github.com/ignatzorin/youth-governance-backend/internal/notify"
	"github.com/ignatzorin/youth-governance-backend/internal/repository"
	"github.com/ignatzorin/youth-governance-backend/internal/service"
	"github.com/ignatzorin/youth-governance-backend/internal/storage"
	"github.com/ignatzorin/youth-governance-backend/internal/ws"
)

func main() {
	// Root context for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: load config: %v", err)
	}

	if cfg.Env == "development" {
		logger.Init("debug")
		logger.SetTextFormatter()
	} else {
		logger.Init("info")
	}

	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: connect database: %v", err)
	}
	defer safeClose(dbConn)

	if _, err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: migrations: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(collectors.NewDBStatsCollector(dbConn.DB, "youth_portal"))
	m := metrics.New(registry)

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	files, err := newAttachmentStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("main: attachment storage: %v", err)
	}

	cache := newCache(ctx, cfg)
	if closer, ok := cache.(io.Closer); ok {
		defer closer.Close()
	}

	// Repositories.
	userRepo := repository.NewUserRepository(dbConn)
	committeeRepo := repository.NewCommitteeRepository(dbConn)
	proposalRepo := repository.NewProposalRepository(dbConn)
	profileRepo := repository.NewYouthProfileRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)
	activityRepo := repository.NewActivityLogRepository(dbConn)
	dashboardRepo := repository.NewDashboardRepository(dbConn)

	// Websockets.
	hub := ws.NewHub(ctx, m)
	go hub.Run()

	// Services.
	notificationService := service.NewNotificationService(
		notificationRepo, userRepo, hub, newSMSSender(cfg), newEmailSender(cfg), m)
	authService := service.NewAuthService(userRepo, tokenManager)
	userService := service.NewUserService(userRepo)
	committeeService := service.NewCommitteeService(committeeRepo, cache)
	proposalService := service.NewProposalService(service.ProposalDeps{
		Repo:       proposalRepo,
		Committees: committeeRepo,
		Staff:      userRepo,
		Interests:  profileRepo,
		Files:      files,
		Notifier:   notificationService,
		Cache:      cache,
		Metrics:    m,
	})
	profileService := service.NewYouthProfileService(profileRepo, userRepo, notificationService, cache, m)
	importService := service.NewImportService(profileRepo, cache, m)
	dashboardService := service.NewDashboardService(
		dashboardRepo, activityRepo, profileRepo, notificationRepo, cache, cfg.DashboardCacheTTL, m)
	activityService := service.NewActivityService(activityRepo)

	engine := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		Auth:          httpHandlers.NewAuthHandler(authService),
		Proposals:     httpHandlers.NewProposalHandler(proposalService, cfg.MaxUploadSizeMB),
		YouthProfiles: httpHandlers.NewYouthProfileHandler(profileService),
		Notifications: httpHandlers.NewNotificationHandler(notificationService),
		Dashboards:    httpHandlers.NewDashboardHandler(dashboardService),
		Committees:    httpHandlers.NewCommitteeHandler(committeeService),
		Activity:      httpHandlers.NewActivityHandler(activityService),
		Users:         httpHandlers.NewUserHandler(userService),
		Webhooks:      httpHandlers.NewWebhookHandler(importService),
		WS:            httpHandlers.NewWSHandler(hub, tokenManager, cfg.AllowedOrigins),
		Health:        httpHandlers.NewHealthHandler(dbConn, cache),
	}, tokenManager, m, promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.Errorf("main: http shutdown: %v", err)
		}
	}()

	logger.Log.WithField("port", cfg.HTTPPort).Info("main: http server started")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("main: http server: %v", err)
	}
}

// newAttachmentStorage builds the configured attachment store.
func newAttachmentStorage(ctx context.Context, cfg *config.Config) (storage.AttachmentStorage, error) {
	if cfg.Storage.Driver == "s3" {
		return storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:          cfg.Storage.S3Bucket,
			Region:          cfg.Storage.S3Region,
			Endpoint:        cfg.Storage.S3Endpoint,
			PathStyle:       cfg.Storage.S3PathStyle,
			AccessKeyID:     cfg.Storage.S3AccessKeyID,
			SecretAccessKey: cfg.Storage.S3SecretKey,
			MaxUploadMB:     cfg.MaxUploadSizeMB,
		})
	}
	return storage.NewLocalStorage(cfg.Storage.LocalPath, cfg.MaxUploadSizeMB)
}

// newCache prefers Redis so every instance sees the same invalidations and
// falls back to the in-process cache.
func newCache(ctx context.Context, cfg *config.Config) service.Cache {
	if cfg.RedisURL != "" {
		redisCache, err := service.NewRedisCache(ctx, cfg.RedisURL)
		if err == nil {
			return redisCache
		}
		logger.Log.Warnf("main: redis unavailable, using in-memory dashboard cache: %v", err)
	}
	return service.NewMemoryCache(ctx)
}

func newSMSSender(cfg *config.Config) notify.SMSSender {
	if cfg.SMS.APIURL == "" {
		logger.Log.Info("main: SMS_API_URL not set, SMS delivery disabled")
		return notify.NoopSMS{}
	}
	return notify.NewSMSClient(cfg.SMS.APIURL, cfg.SMS.APIKey, cfg.SMS.SenderName)
}

func newEmailSender(cfg *config.Config) notify.EmailSender {
	if cfg.SMTP.Host == "" {
		logger.Log.Info("main: SMTP_HOST not set, email delivery disabled")
		return notify.NoopEmail{}
	}
	return notify.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
}

// safeClose closes the database pool.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: close database: %v", err)
	}
}
