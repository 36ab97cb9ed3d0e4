package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sandipay/auth-service/internal/constants"
	ctxutil "github.com/sandipay/auth-service/pkg/context"
	"github.com/sandipay/auth-service/pkg/logger"
)

// RequestContext tags every request with an id, the client address and
// user agent, and bounds its lifetime. Downstream code reads these
// through pkg/context; log lines and audit events share the same values.
func RequestContext(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(constants.HeaderXRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := ctxutil.WithRequestInfo(
			c.Request.Context(),
			requestID,
			c.ClientIP(),
			c.GetHeader(constants.HeaderUserAgent),
		)
		ctx = ctxutil.WithHTTPInfo(ctx, c.Request.Method, c.FullPath())

		ctx, cancel := ctxutil.WithTimeout(ctx, timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Header(constants.HeaderXRequestID, requestID)

		logger.InfoWithContext(ctx, "Request started").
			String("method", c.Request.Method).
			String("path", c.Request.URL.Path).
			Log()

		c.Next()

		logger.InfoWithContext(ctx, "Request completed").
			String("method", c.Request.Method).
			String("path", c.Request.URL.Path).
			StatusCode(c.Writer.Status()).
			Int("response_size", c.Writer.Size()).
			Duration(ctxutil.GetDuration(ctx)).
			Log()
	}
}
