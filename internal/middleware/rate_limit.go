package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sandipay/auth-service/internal/constants"
	"github.com/sandipay/auth-service/pkg/logger"
	"github.com/sandipay/auth-service/pkg/redis"
	"go.uber.org/zap"
)

// LoginRateLimit throttles credential-guessing per client address with
// a redis counter. The window starts on the first attempt and the key
// expires with it, so redis does the bookkeeping across instances.
// When redis is unavailable the limiter fails open: availability of
// login outranks throttling, the lockout counter still protects
// individual accounts.
func LoginRateLimit(client *redis.Client, maxRequest int, duration time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil {
			c.Next()
			return
		}

		key := fmt.Sprintf("%s%s", constants.RateLimitKeyLogin, c.ClientIP())

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		count, err := client.IncrWithTTL(ctx, key, duration)
		if err != nil {
			logger.GetLogger().Error("Rate limiter unavailable, allowing request",
				zap.String("client_ip", c.ClientIP()),
				zap.Error(err),
			)
			c.Next()
			return
		}

		if count > int64(maxRequest) {
			retryAfter := duration
			if ttl, err := client.TTL(ctx, key); err == nil && ttl > 0 {
				retryAfter = ttl
			}

			logger.GetLogger().Warn("Rate limit exceeded",
				zap.String("client_ip", c.ClientIP()),
				zap.String("path", c.Request.URL.Path),
				zap.Int64("current_requests", count),
				zap.Int("max_requests", maxRequest),
			)

			c.Header(constants.HeaderRetryAfter, fmt.Sprintf("%.0f", retryAfter.Seconds()))
			c.JSON(http.StatusTooManyRequests, constants.BuildErrorResponse(
				"too many requests", nil,
			))
			c.Abort()
			return
		}

		c.Next()
	}
}
