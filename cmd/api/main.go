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

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/course-admin-api/api/swagger"
	"github.com/noah-isme/course-admin-api/internal/handler"
	internalmiddleware "github.com/noah-isme/course-admin-api/internal/middleware"
	"github.com/noah-isme/course-admin-api/internal/repository"
	"github.com/noah-isme/course-admin-api/internal/service"
	"github.com/noah-isme/course-admin-api/pkg/cache"
	"github.com/noah-isme/course-admin-api/pkg/config"
	"github.com/noah-isme/course-admin-api/pkg/database"
	"github.com/noah-isme/course-admin-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/course-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/course-admin-api/pkg/middleware/requestid"
	"github.com/noah-isme/course-admin-api/pkg/storage"
)

// @title Course Admin API
// @version 1.0.0
// @description Students, courses, enrollments and payments of a training business
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
	decimal.MarshalJSONWithoutQuotes = true

	ctx := context.Background()
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect redis", zap.Error(err))
	}

	files, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare upload storage", zap.Error(err))
	}

	metrics := service.NewMetricsService()
	validate := service.NewValidator()

	checks := map[string]handler.Pinger{"postgres": handler.PingFunc(db.PingContext)}
	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close() //nolint:errcheck
		cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, true)
		checks["redis"] = cacheRepo
	}

	studentRepo := repository.NewStudentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)

	documentSvc := service.NewDocumentService(
		files,
		storage.NewLinkSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL),
		service.DocumentServiceConfig{MaxFileSize: cfg.Uploads.MaxFileSizeBytes, AllowedMIMEs: cfg.Uploads.AllowedMIMEs},
		cfg.APIPrefix+handler.DocumentDownloadPath,
		logr,
	)
	studentSvc := service.NewStudentService(service.StudentServiceParams{
		Repo:        studentRepo,
		Enrollments: enrollmentRepo,
		Payments:    paymentRepo,
		Documents:   documentSvc,
		Cache:       cacheSvc,
		Validator:   validate,
		Logger:      logr,
	})
	courseSvc := service.NewCourseService(service.CourseServiceParams{
		DB:          db,
		Repo:        courseRepo,
		Enrollments: enrollmentRepo,
		Cache:       cacheSvc,
		Validator:   validate,
		Logger:      logr,
	})
	enrollmentSvc := service.NewEnrollmentService(service.EnrollmentServiceParams{
		DB:        db,
		Repo:      enrollmentRepo,
		Students:  studentRepo,
		Courses:   courseRepo,
		Payments:  paymentRepo,
		Cache:     cacheSvc,
		Validator: validate,
		Logger:    logr,
	})
	paymentSvc := service.NewPaymentService(service.PaymentServiceParams{
		DB:          db,
		Repo:        paymentRepo,
		Enrollments: enrollmentRepo,
		Students:    studentRepo,
		Cache:       cacheSvc,
		Metrics:     metrics,
		Validator:   validate,
		Logger:      logr,
	})
	dashboardSvc := service.NewDashboardService(dashboardRepo, cacheSvc, service.DashboardServiceConfig{
		CacheTTL:          cfg.Dashboard.CacheTTL,
		RecentLimit:       cfg.Dashboard.RecentLimit,
		OutstandingLimit:  cfg.Dashboard.OutstandingLimit,
		MonthlyWindowSize: cfg.Dashboard.MonthlyWindowSize,
	}, logr)
	importSvc := service.NewImportService(service.ImportServiceParams{
		DB:          db,
		Students:    studentRepo,
		Courses:     courseRepo,
		Enrollments: enrollmentRepo,
		Cache:       cacheSvc,
		Metrics:     metrics,
		Validator:   validate,
		Logger:      logr,
		Config:      service.ImportServiceConfig{MaxRows: cfg.Import.MaxRows, SampleSize: cfg.Import.SampleSize},
	})
	registrationSvc := service.NewRegistrationService(service.RegistrationServiceParams{
		DB:          db,
		Students:    studentRepo,
		Courses:     courseRepo,
		Enrollments: enrollmentRepo,
		Payments:    paymentRepo,
		Documents:   documentSvc,
		Cache:       cacheSvc,
		Metrics:     metrics,
		Validator:   validate,
		Logger:      logr,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics, "/metrics", "/health", "/ready"))
	r.Use(internalmiddleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handler.Handlers{
		Students:      handler.NewStudentHandler(studentSvc),
		Courses:       handler.NewCourseHandler(courseSvc),
		Enrollments:   handler.NewEnrollmentHandler(enrollmentSvc),
		Payments:      handler.NewPaymentHandler(paymentSvc),
		Dashboard:     handler.NewDashboardHandler(dashboardSvc),
		Uploads:       handler.NewUploadHandler(importSvc),
		Registrations: handler.NewRegistrationHandler(registrationSvc),
		Documents:     handler.NewDocumentHandler(documentSvc),
	})

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

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
