package ctxutil

import (
	"context"
	"time"

	"github.com/sandipay/auth-service/internal/constants"
)

// Re-export ContextKey type
type ContextKey = constants.ContextKey

// Re-export context keys
const (
	RequestIDKey = constants.CtxKeyRequestID
	UserIDKey    = constants.CtxKeyUserID
	ClientIPKey  = constants.CtxKeyClientIP
	UserAgentKey = constants.CtxKeyUserAgent
	StartTimeKey = constants.CtxKeyStartTime
	ModuleKey    = constants.CtxKeyModule
	FunctionKey  = constants.CtxKeyFunction
	MethodKey    = constants.CtxKeyMethod
	EndpointKey  = constants.CtxKeyEndpoint
)

// WithValue adds a value to context
func WithValue(ctx context.Context, key ContextKey, value interface{}) context.Context {
	return context.WithValue(ctx, key, value)
}

// WithUserID adds user ID to context
func WithUserID(ctx context.Context, userID interface{}) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithTimeout creates context with timeout
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, timeout)
}

// Getter functions
func GetRequestID(ctx context.Context) string {
	if val, ok := ctx.Value(RequestIDKey).(string); ok {
		return val
	}
	return ""
}

func GetClientIP(ctx context.Context) string {
	if val, ok := ctx.Value(ClientIPKey).(string); ok {
		return val
	}
	return ""
}

func GetUserAgent(ctx context.Context) string {
	if val, ok := ctx.Value(UserAgentKey).(string); ok {
		return val
	}
	return ""
}

func GetUserID(ctx context.Context) interface{} {
	return ctx.Value(UserIDKey)
}

func GetUserIDUint(ctx context.Context) (uint, bool) {
	if val, ok := ctx.Value(UserIDKey).(uint); ok {
		return val, true
	}
	return 0, false
}

func GetStartTime(ctx context.Context) time.Time {
	if val, ok := ctx.Value(StartTimeKey).(time.Time); ok {
		return val
	}
	return time.Time{}
}

func GetModule(ctx context.Context) string {
	if val, ok := ctx.Value(ModuleKey).(string); ok {
		return val
	}
	return ""
}

func GetFunction(ctx context.Context) string {
	if val, ok := ctx.Value(FunctionKey).(string); ok {
		return val
	}
	return ""
}

// GetDuration calculates duration from start time
func GetDuration(ctx context.Context) time.Duration {
	startTime := GetStartTime(ctx)
	if !startTime.IsZero() {
		return time.Since(startTime)
	}
	return 0
}

// WithOperation tags the context with the layer and function about to run so
// log lines carry module/function fields without repeating them at call sites.
func WithOperation(ctx context.Context, module, function string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ModuleKey, module)
	ctx = context.WithValue(ctx, FunctionKey, function)
	if GetStartTime(ctx).IsZero() {
		ctx = context.WithValue(ctx, StartTimeKey, time.Now())
	}
	return ctx
}

func GetMethod(ctx context.Context) string {
	if val, ok := ctx.Value(MethodKey).(string); ok {
		return val
	}
	return ""
}

func GetEndpoint(ctx context.Context) string {
	if val, ok := ctx.Value(EndpointKey).(string); ok {
		return val
	}
	return ""
}

// WithHTTPInfo stores the method and route of the request being served.
func WithHTTPInfo(ctx context.Context, method, endpoint string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if method != "" {
		ctx = context.WithValue(ctx, MethodKey, method)
	}
	if endpoint != "" {
		ctx = context.WithValue(ctx, EndpointKey, endpoint)
	}
	return ctx
}

// WithRequestInfo stores per-request metadata extracted by middleware.
func WithRequestInfo(ctx context.Context, requestID, clientIP, userAgent string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if requestID != "" {
		ctx = context.WithValue(ctx, RequestIDKey, requestID)
	}
	if clientIP != "" {
		ctx = context.WithValue(ctx, ClientIPKey, clientIP)
	}
	if userAgent != "" {
		ctx = context.WithValue(ctx, UserAgentKey, userAgent)
	}
	if GetStartTime(ctx).IsZero() {
		ctx = context.WithValue(ctx, StartTimeKey, time.Now())
	}
	return ctx
}
