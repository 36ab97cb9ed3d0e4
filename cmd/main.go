package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sandipay/auth-service/config"
	"github.com/sandipay/auth-service/internal/audit"
	"github.com/sandipay/auth-service/internal/constants"
	"github.com/sandipay/auth-service/internal/handler"
	"github.com/sandipay/auth-service/internal/middleware"
	"github.com/sandipay/auth-service/internal/repository"
	"github.com/sandipay/auth-service/internal/router"
	"github.com/sandipay/auth-service/internal/service"
	"github.com/sandipay/auth-service/pkg/circuit"
	"github.com/sandipay/auth-service/pkg/database"
	"github.com/sandipay/auth-service/pkg/logger"
	"github.com/sandipay/auth-service/pkg/redis"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	// Initialize Zap logger
	if err := logger.InitLogger(cfg); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	logger.GetLogger().Info("Application starting",
		zap.String("app_name", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
		zap.String("version", constants.AppVersion),
	)

	db, err := database.NewPostgresDB(database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Name,
		SSLMode:         cfg.Database.SSLMode,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		logger.GetLogger().Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.CloseDB(db)

	// Run auto migrations
	if err := database.AutoMigrate(db); err != nil {
		logger.GetLogger().Fatal("Failed to run database migrations", zap.Error(err))
	}
	logger.GetLogger().Info("Database migrated successfully")

	if err := database.OptimizedIndexes(db); err != nil {
		logger.GetLogger().Warn("Index creation incomplete", zap.Error(err))
	}

	// Seed initial data
	if err := database.Seed(db); err != nil {
		logger.GetLogger().Error("Failed to seed database", zap.Error(err))
		// Don't fail - seed data may already exist
	}

	// Redis backs the audit stream and the login rate limiter. Both
	// degrade gracefully, so a missing redis only disables them.
	var redisClient *redis.Client
	var auditor audit.Emitter = audit.NopEmitter{}
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(cfg)
		if err != nil {
			logger.GetLogger().Warn("Redis unavailable, audit stream and rate limiting disabled",
				zap.Error(err))
		} else {
			defer redisClient.Close()
			breaker := circuit.NewBreaker("audit-stream", circuit.DefaultConfig(), logger.GetLogger())
			auditor = audit.NewStreamEmitter(redisClient, cfg.Audit, breaker)
			defer auditor.Close()
		}
	}

	// Repositories
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	// Services
	jwtService := service.NewJWTService(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessLifetime,
		cfg.JWT.RefreshLifetime,
	)
	authService := service.NewAuthService(userRepo, sessionRepo, jwtService, auditor, cfg.Lockout)
	sessionService := service.NewSessionService(userRepo, sessionRepo, jwtService, auditor, cfg.Rotation.TxTimeout)
	userService := service.NewUserService(userRepo, sessionRepo, jwtService, auditor)

	// Expired-session cleanup runs on a fixed schedule for the life of
	// the process. Rotation and revocation never depend on it.
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(cfg.Rotation.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-cleanupCtx.Done():
				return
			case <-ticker.C:
				if _, err := sessionService.PurgeExpired(cleanupCtx); err != nil {
					logger.GetLogger().Error("Session cleanup failed", zap.Error(err))
				}
			}
		}
	}()

	// Handlers
	authHandler := handler.NewAuthHandler(authService, sessionService, userService)
	healthHandler := handler.NewHealthHandler(db, redisClient)

	// Middleware
	validationMiddleware := middleware.NewValidationMiddleware()
	jwtMiddleware := middleware.NewJWTMiddleware(jwtService, service.NewRevocationGate(), userRepo)

	r := router.NewRouter(
		authHandler,
		healthHandler,

		validationMiddleware,
		jwtMiddleware,

		redisClient,
		cfg,
	).SetupRoutes()

	go func() {
		logger.GetLogger().Info("Server starting",
			zap.String("port", cfg.App.Port),
			zap.String("host", "0.0.0.0"),
		)
		if err := r.Run(":" + cfg.App.Port); err != nil {
			logger.GetLogger().Fatal("Failed to start server",
				zap.Error(err),
				zap.String("port", cfg.App.Port),
			)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.GetLogger().Info("Shutting down server...")
}
