package constants

// Field Length Limits
const (
	MinPasswordLength = 8
	MaxPasswordLength = 100
	MinUsernameLength = 3
	MaxUsernameLength = 30
)

// Validation Patterns
const (
	UsernamePattern = `^[a-zA-Z0-9_.-]+$`
)
