package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/lms-submission-api/api/swagger"
	"github.com/noah-isme/lms-submission-api/internal/handler"
	"github.com/noah-isme/lms-submission-api/internal/middleware"
	"github.com/noah-isme/lms-submission-api/internal/models"
	"github.com/noah-isme/lms-submission-api/internal/repository"
	"github.com/noah-isme/lms-submission-api/internal/service"
	"github.com/noah-isme/lms-submission-api/pkg/cache"
	"github.com/noah-isme/lms-submission-api/pkg/classifier"
	"github.com/noah-isme/lms-submission-api/pkg/config"
	"github.com/noah-isme/lms-submission-api/pkg/database"
	"github.com/noah-isme/lms-submission-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/lms-submission-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lms-submission-api/pkg/middleware/requestid"
)

// @title LMS Submission API
// @version 0.1.0
// @description Assignment submission and AI integrity moderation service
// @BasePath /
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, flag aggregates will not be cached", "error", err)
			redisClient = nil
		}
	}

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	offeringRepo := repository.NewOfferingRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	flagRepo := repository.NewFlagRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "lms-submission-api",
	})
	notificationSvc := service.NewNotificationService(notificationRepo, offeringRepo, logr)
	flagSvc := service.NewFlagService(flagRepo, submissionRepo, offeringRepo, cacheRepo, cfg.Flags.CacheTTL, logr)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, offeringRepo, nil, logr)

	var submissionSvc *service.SubmissionService
	if cfg.Classifier.Enabled {
		cls := classifier.NewClient(classifier.Config{URL: cfg.Classifier.URL, Timeout: cfg.Classifier.Timeout})
		submissionSvc = service.NewSubmissionService(
			submissionRepo, assignmentRepo, userRepo, cls,
			notificationSvc, flagSvc, metricsSvc, nil, logr)
	} else {
		logr.Warn("classifier disabled, submissions will not be checked")
		submissionSvc = service.NewSubmissionService(
			submissionRepo, assignmentRepo, userRepo, nil,
			notificationSvc, flagSvc, metricsSvc, nil, logr)
	}

	var reportSvc *service.ReportService
	if cfg.Reports.Enabled {
		reportSvc = service.NewReportService(flagSvc, logr)
	}

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc)
	submissionHandler := handler.NewSubmissionHandler(submissionSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)

	var offeringHandler *handler.OfferingHandler
	if reportSvc != nil {
		offeringHandler = handler.NewOfferingHandler(flagSvc, reportSvc)
	} else {
		offeringHandler = handler.NewOfferingHandler(flagSvc, nil)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

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
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	{
		authed.GET("/auth/me", authHandler.Me)
		authed.GET("/notifications", notificationHandler.ListMine)

		authed.GET("/assignments", assignmentHandler.List)
		authed.GET("/assignments/:id", assignmentHandler.Get)
		authed.POST("/assignments",
			middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), assignmentHandler.Create)

		authed.POST("/assignments/:id/submissions",
			middleware.RequireRoles(models.RoleStudent), submissionHandler.Submit)
		authed.GET("/students/me/submission-stats",
			middleware.RequireRoles(models.RoleStudent), submissionHandler.MyStats)

		teacherOnly := authed.Group("")
		teacherOnly.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher))
		{
			teacherOnly.PATCH("/submissions/:id/grade", submissionHandler.Grade)
			teacherOnly.PATCH("/submissions/:id/grant-chance", submissionHandler.GrantChance)
			teacherOnly.GET("/offerings/:id/flags", offeringHandler.OfferingFlags)
			teacherOnly.GET("/offerings/:id/flags/:studentId", offeringHandler.StudentFlags)
			teacherOnly.GET("/offerings/:id/integrity-report", offeringHandler.IntegrityReport)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
