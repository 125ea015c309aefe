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

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/broker"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/config"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/database"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/handler"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/middleware"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/repository"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/service"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/spool"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/storage/nextcloud"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const spoolReplayInterval = time.Minute

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := logger.Init(!cfg.IsProduction()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Log.Fatal("Failed to migrate database", zap.Error(err))
	}

	// Redis is optional: without it the live log feed is local-only and
	// login attempts are not rate limited.
	var (
		redisClient  *redis.Client
		logBroker    broker.LogBroker = broker.NopBroker{}
		loginLimiter *middleware.RateLimiter
	)
	if cfg.RedisURL != "" {
		redisClient, err = broker.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()

		logBroker = broker.NewRedisLogBroker(redisClient)
		loginLimiter = middleware.NewRateLimiter(redisClient, middleware.RateLimiterConfig{
			Prefix:      "ratelimit:login",
			MaxRequests: cfg.RateLimitMaxRequests,
			Window:      cfg.RateLimitWindow,
			BlockTime:   cfg.RateLimitBlockTime,
		})
	} else {
		logger.Log.Warn("REDIS_URL not set, live log feed and login rate limiting disabled")
	}
	defer logBroker.Close()

	auditSpool, err := spool.Open(cfg.AuditSpoolPath)
	if err != nil {
		logger.Log.Fatal("Failed to open audit spool", zap.Error(err), zap.String("path", cfg.AuditSpoolPath))
	}
	defer auditSpool.Close()

	store := nextcloud.NewClient(nextcloud.Config{
		BaseURL:  cfg.NextcloudURL,
		User:     cfg.NextcloudUser,
		Password: cfg.NextcloudPassword,
		Timeout:  cfg.NextcloudTimeout,
	})
	if err := store.Ping(ctx); err != nil {
		// Reads and writes fail with upstream errors until it comes back.
		logger.Log.Warn("Asset store unreachable at startup", zap.Error(err))
	}

	// Repositories
	userRepo := repository.NewUserRepository(db)
	modelRepo := repository.NewModelRepository(db)
	deletedRepo := repository.NewDeletedModelRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	sphereRepo := repository.NewSphereRepository(db)
	logRepo := repository.NewLogRepository(db)

	// Services
	audit := service.NewAuditService(logRepo, auditSpool, logBroker)
	if n, err := audit.ReplaySpool(ctx); err != nil {
		logger.Log.Warn("Audit spool replay failed, will retry", zap.Error(err))
	} else if n > 0 {
		logger.Log.Info("Recovered spooled audit entries", zap.Int("entries", n))
	}
	go audit.ReplayLoop(ctx, spoolReplayInterval)

	sessions := service.NewSessionService(userRepo, audit, cfg.JWTSecret, cfg.JWTExpiry)
	assets := service.NewAssetService(store, cfg.AssetCacheSize, cfg.AssetCacheTTL)
	deletion := service.NewDeletionService(modelRepo, deletedRepo, store, audit)
	modelService := service.NewModelService(modelRepo, projectRepo, sphereRepo, userRepo, assets, audit)
	projectService := service.NewProjectService(projectRepo, audit)
	sphereService := service.NewSphereService(sphereRepo, audit)
	employeeService := service.NewEmployeeService(userRepo, sphereRepo, audit)

	// Handlers
	healthDeps := map[string]handler.Pinger{"assets": store}
	if redisClient != nil {
		healthDeps["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	logStream := handler.NewLogStreamHandler(audit, cfg.CORSOrigins)

	router := handler.NewRouter(handler.RouterConfig{
		Sessions:     sessions,
		LoginLimiter: loginLimiter,
		CORSOrigins:  cfg.CORSOrigins,
		IsProduction: cfg.IsProduction(),
	}, handler.Handlers{
		Auth:          handler.NewAuthHandler(sessions, loginLimiter, cfg.IsProduction()),
		Models:        handler.NewModelHandler(modelService, deletion),
		DeletedModels: handler.NewDeletedModelHandler(deletion),
		Projects:      handler.NewProjectHandler(projectService),
		Spheres:       handler.NewSphereHandler(sphereService),
		Employees:     handler.NewEmployeeHandler(employeeService),
		Logs:          handler.NewLogHandler(audit),
		LogStream:     logStream,
		Assets:        handler.NewAssetHandler(assets),
		Health:        handler.NewHealthHandler(db, healthDeps),
	})

	srv := &http.Server{
		Addr:              cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("Server starting",
			zap.String("addr", cfg.ServerPort),
			zap.String("environment", cfg.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Log.Info("Shutting down")

	logStream.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Graceful shutdown failed", zap.Error(err))
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Log.Info("Server stopped")
}
