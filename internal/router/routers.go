package router

import (
	"github.com/gin-gonic/gin"
	"github.com/sandipay/auth-service/config"
	"github.com/sandipay/auth-service/internal/handler"
	"github.com/sandipay/auth-service/internal/middleware"
	"github.com/sandipay/auth-service/pkg/redis"
)

type Router struct {
	authHandler   *handler.AuthHandler
	healthHandler *handler.HealthHandler

	validMw *middleware.ValidationMiddleware
	jwtMw   *middleware.JWTMiddleware

	redisClient *redis.Client
	Config      *config.Config
}

func NewRouter(
	auth *handler.AuthHandler,
	health *handler.HealthHandler,

	validMw *middleware.ValidationMiddleware,
	jwtMw *middleware.JWTMiddleware,

	redisClient *redis.Client,
	config *config.Config,
) *Router {
	return &Router{
		authHandler:   auth,
		healthHandler: health,

		validMw: validMw,
		jwtMw:   jwtMw,

		redisClient: redisClient,
		Config:      config,
	}
}

func (r *Router) SetupRoutes() *gin.Engine {
	// Create Gin router
	router := gin.New()

	// Use custom logging and recovery middleware
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.RecoveryMiddleware())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestContext(r.Config.App.Timeout))

	api := router.Group("/api")
	{
		api.GET("/health", r.healthHandler.BasicHealth)
		api.GET("/health/detail", r.healthHandler.HealthCheck)

		v1 := api.Group("/v1")
		{
			r.authRoutes(v1)
		}
	}

	return router
}
