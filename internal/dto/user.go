package dto

import "time"

type RegisterRequest struct {
	FirstName string `json:"first_name" binding:"required,min=2,max=50" validate:"required,min=2,max=50"`
	LastName  string `json:"last_name" binding:"required,min=2,max=50" validate:"required,min=2,max=50"`
	Email     string `json:"email" binding:"required,email" validate:"required,email"`
	Username  string `json:"username" binding:"required,min=3,max=30" validate:"required,min=3,max=30"`
	Password  string `json:"password" binding:"required,min=8,max=100" validate:"required,min=8,max=100"`
}

type UserLoginRequest struct {
	Email    string `json:"email" binding:"required,email" validate:"required,email"`
	Password string `json:"password" binding:"required" validate:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required" validate:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required" validate:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=100" validate:"required,min=8,max=100"`
	ConfirmPassword string `json:"confirm_password" binding:"required" validate:"required"`
}

// UserResponse never carries the password hash; callers needing more fields
// must fetch them explicitly.
type UserResponse struct {
	ID          uint       `json:"id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	Role        string     `json:"role"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type TokenPairResponse struct {
	Token        string       `json:"token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int          `json:"expires_in"` // Access token expiry in seconds
	User         UserResponse `json:"user"`
}
