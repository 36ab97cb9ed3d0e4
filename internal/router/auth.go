package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sandipay/auth-service/internal/dto"
	"github.com/sandipay/auth-service/internal/middleware"
)

func (r *Router) authRoutes(version *gin.RouterGroup) {
	auth := version.Group("/auth")
	{
		// Credential endpoints share one per-address rate limit
		limited := auth.Group("")
		limited.Use(middleware.LoginRateLimit(
			r.redisClient,
			r.Config.RateLimit.Request,
			time.Duration(r.Config.RateLimit.Duration)*time.Second,
		))
		{
			limited.POST("/register",
				r.validMw.ValidateRequestBody(func() interface{} { return &dto.RegisterRequest{} }),
				r.authHandler.Register)
			limited.POST("/login",
				r.validMw.ValidateRequestBody(func() interface{} { return &dto.UserLoginRequest{} }),
				r.authHandler.Login)
		}

		// Token-bearing routes: the refresh token itself is the credential
		auth.POST("/refresh", r.authHandler.RefreshToken)
		auth.POST("/logout", r.authHandler.Logout)

		// Protected routes (JWT authentication required)
		protected := auth.Group("")
		protected.Use(r.jwtMw.RequireAuth())
		{
			protected.POST("/logout-all", r.authHandler.LogoutAll)
			protected.POST("/change-password", r.authHandler.ChangePassword)
		}
	}
}
