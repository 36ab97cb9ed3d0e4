package constants

// Application Information
const (
	AppName    = "Auth Service"
	AppVersion = "1.0.0"
)

// Environment Types
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Default Application Settings
const (
	DefaultPort        = "8080"
	DefaultEnvironment = EnvDevelopment
)

// User Roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Rate Limit Key Prefixes (redis)
const (
	RateLimitKeyPrefix = "auth:rl:"
	RateLimitKeyLogin  = RateLimitKeyPrefix + "login:"
)

// Log Levels
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
	LogLevelFatal = "fatal"
)
