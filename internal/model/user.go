package model

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	FirstName string `gorm:"column:first_name;not null"`
	LastName  string `gorm:"column:last_name;not null"`
	Email     string `gorm:"column:email;unique;not null"`
	Username  string `gorm:"column:username;unique;not null"`
	Password  string `gorm:"column:password;not null"`
	Role      string `gorm:"column:role;default:user;not null"`
	Active    bool   `gorm:"column:active;default:true;not null"`

	// Brute-force protection. FailedLoginAttempts is mutated only through a
	// single atomic UPDATE; LockedUntil non-nil and in the future means the
	// account is currently locked.
	FailedLoginAttempts int        `gorm:"column:failed_login_attempts;default:0;not null"`
	LastFailedLoginAt   *time.Time `gorm:"column:last_failed_login_at;default:null"`
	LockedUntil         *time.Time `gorm:"column:locked_until;default:null"`

	// Revocation watermarks. Access tokens issued before either timestamp are
	// rejected on their next use regardless of their own expiry.
	PasswordChangedAt *time.Time `gorm:"column:password_changed_at;default:null"`
	LastTokenIssuedAt *time.Time `gorm:"column:last_token_issued_at;default:null"`

	LastLoginAt *time.Time `gorm:"column:last_login_at;default:null"`
}

// Locked reports whether the account is locked at the given instant.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}
