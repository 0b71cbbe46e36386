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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/merchant-review-api/api/swagger"
	"github.com/noah-isme/merchant-review-api/internal/handler"
	internalmiddleware "github.com/noah-isme/merchant-review-api/internal/middleware"
	"github.com/noah-isme/merchant-review-api/internal/repository"
	"github.com/noah-isme/merchant-review-api/internal/service"
	"github.com/noah-isme/merchant-review-api/pkg/cache"
	"github.com/noah-isme/merchant-review-api/pkg/config"
	"github.com/noah-isme/merchant-review-api/pkg/database"
	"github.com/noah-isme/merchant-review-api/pkg/export"
	"github.com/noah-isme/merchant-review-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/merchant-review-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/merchant-review-api/pkg/middleware/requestid"
)

// @title Merchant Review API
// @version 1.0.0
// @description Maker-checker review of merchant classification rows.
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
	if len(cfg.Review.Tables) == 0 {
		logr.Warn("no review tables configured; set REVIEW_TABLES_FILE or REVIEW_TABLE_NAME")
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect record store", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}

	var cacheRepo service.CacheRepository = repository.NewMemoryCacheRepository()
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, keeping sessions in process", zap.Error(err))
		} else {
			redisRepo := repository.NewCacheRepository(client, logr)
			defer redisRepo.Close() //nolint:errcheck
			cacheRepo = redisRepo
		}
	}

	location := service.ResolveLocation(cfg.Review.Timezone, logr)
	validate := validator.New()

	directory := service.NewRoleDirectory(cfg.Roles, logr)
	identities := service.NewIdentityService(cfg.Identity, logr)
	tables := service.NewTableRegistry(cfg.Review.Tables, cfg.Review.RowLimit)
	sessionCache := service.NewCacheService(cacheRepo, metricsSvc, cfg.Review.SessionTTL, logr, true)
	sessions := service.NewSessionService(sessionCache, directory, tables, cfg.Review.SessionTTL, logr)
	records := repository.NewRecordRepository(db, metricsSvc)
	reviews := service.NewReviewService(records, sessions, tables, metricsSvc, validate,
		service.ReviewConfig{QueryTimeout: cfg.Review.QueryTimeout, Location: location}, logr)
	exporter := service.NewExportService(&export.CSVExporter{BOM: true}, export.NewPDFExporter(), location, logr)

	tableHandler := handler.NewTableHandler(reviews)
	sessionHandler := handler.NewSessionHandler(reviews, exporter)
	reviewHandler := handler.NewReviewHandler(reviews)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, internalmiddleware.ContextEmailKey))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins, cfg.Identity.Headers...))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if metricsSvc != nil {
		r.GET("/metrics", metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.Identity(identities, directory))
	api.GET("/me", tableHandler.Me)

	secured := api.Group("")
	secured.Use(internalmiddleware.RequireReviewer())
	secured.GET("/tables", tableHandler.List)
	secured.GET("/tables/:key/schema", tableHandler.Schema)
	if metricsSvc != nil {
		secured.GET("/metrics/summary", metricsHandler.Summary)
	}

	sessionsGroup := secured.Group("/sessions")
	sessionsGroup.POST("", sessionHandler.Open)
	sessionsGroup.GET("/:id", sessionHandler.Get)
	sessionsGroup.DELETE("/:id", sessionHandler.Close)
	sessionsGroup.POST("/:id/load", sessionHandler.Load)
	sessionsGroup.GET("/:id/records", sessionHandler.Records)
	sessionsGroup.GET("/:id/export", sessionHandler.Export)
	sessionsGroup.POST("/:id/batch", internalmiddleware.Audit(logr, "batch"), reviewHandler.Batch)
	sessionsGroup.POST("/:id/approve", internalmiddleware.Audit(logr, "approve_many"), reviewHandler.ApproveMany)
	sessionsGroup.POST("/:id/reject", internalmiddleware.Audit(logr, "reject_many"), reviewHandler.RejectMany)
	sessionsGroup.POST("/:id/records/:identity/submit", internalmiddleware.Audit(logr, "submit"), reviewHandler.Submit)
	sessionsGroup.POST("/:id/records/:identity/approve", internalmiddleware.Audit(logr, "approve"), reviewHandler.Approve)
	sessionsGroup.POST("/:id/records/:identity/reject", internalmiddleware.Audit(logr, "reject"), reviewHandler.Reject)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "tables", len(cfg.Review.Tables))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Review.QueryTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
