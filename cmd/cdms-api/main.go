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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/coordoffice/cdms-api/api/swagger"
	"github.com/coordoffice/cdms-api/internal/handler"
	"github.com/coordoffice/cdms-api/internal/middleware"
	"github.com/coordoffice/cdms-api/internal/repository"
	"github.com/coordoffice/cdms-api/internal/service"
	"github.com/coordoffice/cdms-api/pkg/cache"
	"github.com/coordoffice/cdms-api/pkg/config"
	"github.com/coordoffice/cdms-api/pkg/database"
	"github.com/coordoffice/cdms-api/pkg/jobs"
	"github.com/coordoffice/cdms-api/pkg/logger"
	corsmiddleware "github.com/coordoffice/cdms-api/pkg/middleware/cors"
	reqidmiddleware "github.com/coordoffice/cdms-api/pkg/middleware/requestid"
	"github.com/coordoffice/cdms-api/pkg/storage"
)

// @title CDMS API
// @version 1.0.0
// @description Coordination office API: school directory, visit scheduling, summary reports, visitor feedback.
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	// Redis is optional: without it the API runs uncached.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close()

	reportStorage, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init report storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	schoolRepo := repository.NewSchoolRepository(db)
	visitRepo := repository.NewVisitRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)
	reportRepo := repository.NewReportRepository(db)
	userRepo := repository.NewUserRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "cdms-api",
	})
	schoolSvc := service.NewSchoolService(schoolRepo, cacheRepo, logr, cfg.Schools.NameListCacheTTL)
	visitSvc := service.NewVisitService(visitRepo, schoolRepo, cacheRepo, logr)
	feedbackSvc := service.NewFeedbackService(feedbackRepo, cacheRepo, logr)
	dashboardSvc := service.NewDashboardService(dashboardRepo, cacheRepo, metricsSvc, logr, cfg.Dashboard.CacheTTL)

	reportSvc := service.NewReportService(
		reportRepo, visitRepo, schoolRepo, reportStorage, signer,
		logr, cfg.Reports.ResultTTL, cfg.APIPrefix,
	)
	reportSvc.SetMetrics(metricsSvc)

	reportQueue := jobs.NewQueue("reports", reportSvc.Generate, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		Logger:     logr,
	})
	reportSvc.SetQueue(reportQueue)
	reportQueue.Start(ctx)
	defer reportQueue.Stop()

	if err := reportSvc.RecoverQueuedJobs(ctx, 50); err != nil {
		logr.Warn("failed to recover queued report jobs", zap.Error(err))
	}
	reportSvc.StartCleanup(ctx, cfg.Reports.CleanupInterval)

	authHandler := handler.NewAuthHandler(authSvc)
	schoolHandler := handler.NewSchoolHandler(schoolSvc)
	visitHandler := handler.NewVisitHandler(visitSvc)
	feedbackHandler := handler.NewFeedbackHandler(feedbackSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	auth := middleware.JWT(authSvc)

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)
	api.POST("/auth/logout", auth, authHandler.Logout)
	api.GET("/auth/me", auth, authHandler.Me)

	api.GET("/schools/names", schoolHandler.Names)
	api.GET("/schools", auth, schoolHandler.List)
	api.POST("/schools", auth, schoolHandler.Create)
	api.GET("/schools/:id", auth, schoolHandler.Get)
	api.PUT("/schools/:id", auth, schoolHandler.Update)
	api.DELETE("/schools/:id", auth, schoolHandler.Delete)

	api.GET("/visits", auth, visitHandler.List)
	api.POST("/visits", auth, visitHandler.Schedule)
	api.GET("/visits/:id", auth, visitHandler.Get)
	api.PATCH("/visits/:id/status", auth, visitHandler.UpdateStatus)
	api.DELETE("/visits/:id", auth, visitHandler.Cancel)

	api.POST("/reports", auth, reportHandler.Request)
	api.GET("/reports", auth, reportHandler.List)
	api.GET("/reports/download/:filename", auth, reportHandler.Download)
	api.GET("/reports/export/:token", reportHandler.Export)
	api.GET("/reports/:id", auth, reportHandler.Get)

	if cfg.Feedback.PublicIntakeEnabled {
		api.POST("/feedback", feedbackHandler.Submit)
	}
	api.GET("/feedback", auth, feedbackHandler.List)
	api.DELETE("/feedback/:id", auth, feedbackHandler.Delete)

	if cfg.Dashboard.Enabled {
		api.GET("/dashboard", auth, dashboardHandler.Counts)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
