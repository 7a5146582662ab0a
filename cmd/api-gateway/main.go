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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/DanialBetres/stepful-scheduling/api/swagger"
	"github.com/DanialBetres/stepful-scheduling/internal/handler"
	"github.com/DanialBetres/stepful-scheduling/internal/middleware"
	"github.com/DanialBetres/stepful-scheduling/internal/repository"
	"github.com/DanialBetres/stepful-scheduling/internal/service"
	"github.com/DanialBetres/stepful-scheduling/migrations"
	"github.com/DanialBetres/stepful-scheduling/pkg/cache"
	"github.com/DanialBetres/stepful-scheduling/pkg/config"
	"github.com/DanialBetres/stepful-scheduling/pkg/database"
	"github.com/DanialBetres/stepful-scheduling/pkg/jobs"
	"github.com/DanialBetres/stepful-scheduling/pkg/lock"
	"github.com/DanialBetres/stepful-scheduling/pkg/logger"
	corsmiddleware "github.com/DanialBetres/stepful-scheduling/pkg/middleware/cors"
	reqidmiddleware "github.com/DanialBetres/stepful-scheduling/pkg/middleware/requestid"
)

// @title Coaching Ledger API
// @version 1.0.0
// @description Coach availability, slot booking and meeting listings
// @BasePath /api/v1
// @schemes http
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

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if cfg.Migrations.AutoRun {
		migrator, err := database.NewMigrator(db.DB, migrations.FS, logr)
		if err != nil {
			return fmt.Errorf("init migrator: %w", err)
		}
		if err := migrator.Up(ctx); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	var redisClient *redis.Client
	if cfg.Cache.MeetingsEnabled || cfg.Booking.LockBackend == config.LockBackendRedis {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()
	}

	lockOpts := lock.Options{TTL: cfg.Booking.LockTTL, Wait: cfg.Booking.LockWait, Prefix: cfg.Booking.LockKeySpace}
	var locker lock.Locker = lock.NewLocal(lockOpts)
	if cfg.Booking.LockBackend == config.LockBackendRedis {
		locker = lock.NewRedis(redisClient, lockOpts, logr)
	}
	logr.Info("booking lock ready", zap.String("backend", cfg.Booking.LockBackend))

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	var cacheRepo *repository.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	} else {
		cacheRepo = repository.NewCacheRepository(nil, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.MeetingsTTL, logr, cfg.Cache.MeetingsEnabled)

	queue := jobs.NewQueue("cache-invalidation", jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		MaxRetries: cfg.Jobs.MaxRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logr,
	})
	invalidator := service.NewMeetingInvalidator(queue, cacheSvc, logr)
	queue.Start(ctx)
	defer queue.Stop()

	availabilityRepo := repository.NewAvailabilityRepository(db)
	meetingRepo := repository.NewMeetingRepository(db)
	coachRepo := repository.NewCoachRepository(db)
	studentRepo := repository.NewStudentRepository(db)

	availabilitySvc := service.NewAvailabilityService(availabilityRepo, meetingRepo, locker, validate, metricsSvc, logr,
		service.AvailabilityConfig{MaxAttempts: cfg.Booking.MaxAttempts})
	bookingSvc := service.NewBookingService(availabilityRepo, meetingRepo, db, locker, invalidator, validate, metricsSvc, logr,
		service.BookingConfig{MaxAttempts: cfg.Booking.MaxAttempts})
	meetingSvc := service.NewMeetingQueryService(meetingRepo, coachRepo, studentRepo, cacheSvc, logr, service.MeetingQueryConfig{
		Location: cfg.Booking.Location(),
		CacheTTL: cfg.Cache.MeetingsTTL,
	})
	exportSvc := service.NewExportService(meetingSvc)
	coachSvc := service.NewCoachService(coachRepo, availabilityRepo, meetingSvc)
	verifier := service.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if verifier == nil {
		logr.Warn("AUTH_JWT_SECRET not set, actor checks are disabled")
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

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		Coaches:      handler.NewCoachHandler(coachSvc),
		Availability: handler.NewAvailabilityHandler(availabilitySvc),
		Bookings:     handler.NewBookingHandler(bookingSvc),
		Meetings:     handler.NewMeetingHandler(meetingSvc, exportSvc),
		Metrics:      handler.NewMetricsHandler(metricsSvc, db),
	}, verifier)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
