package service

import (
	"context"
	"time"

	"github.com/sandipay/auth-service/internal/model"
	"github.com/sandipay/auth-service/internal/repository"
)

// CredentialStore is the user persistence surface the services depend on.
type CredentialStore interface {
	GetByID(ctx context.Context, id uint) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	RecordFailedAttempt(ctx context.Context, id uint, at time.Time) (int, error)
	LockAccount(ctx context.Context, id uint, until time.Time) error
	ClearExpiredLock(ctx context.Context, id uint, now time.Time) error
	ResetFailedAttempts(ctx context.Context, id uint, loginAt time.Time) error
	UpdatePassword(ctx context.Context, id uint, hashedPassword string, changedAt time.Time) error
	AdvanceTokenWatermark(ctx context.Context, id uint, at time.Time) error
}

// SessionStore is the session persistence surface. It is the sole
// authority on revocation; services never reason about session rows
// outside these operations.
type SessionStore interface {
	Create(ctx context.Context, session *model.Session) error
	Rotate(ctx context.Context, digest string, now time.Time, fn repository.RotateFunc) (*model.Session, error)
	RevokeByDigest(ctx context.Context, digest string, now time.Time) (*model.Session, error)
	RevokeAllByUser(ctx context.Context, userID uint, now time.Time) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
