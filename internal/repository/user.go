package repository

import (
	"context"
	"time"

	"github.com/sandipay/auth-service/internal/model"
	ctxutil "github.com/sandipay/auth-service/pkg/context"
	"github.com/sandipay/auth-service/pkg/logger"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id uint) (*model.User, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "GetByID")

	logger.DebugWithContext(ctx, "Getting user by ID").
		Uint("user_id", id).
		Log()

	if err := ctx.Err(); err != nil {
		logger.WarnWithContext(ctx, "Context cancelled before query").
			Err(err).
			Log()
		return nil, err
	}

	start := time.Now()
	var user model.User

	result := r.db.WithContext(ctx).Where("id = ?", id).First(&user)
	duration := time.Since(start)

	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to get user by ID").
			Uint("user_id", id).
			Duration(duration).
			Err(result.Error).
			Log()
		return nil, result.Error
	}

	return &user, nil
}

// GetByEmail finds user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "GetByEmail")

	logger.DebugWithContext(ctx, "Getting user by email").
		String("email", email).
		Log()

	start := time.Now()
	var user model.User

	result := r.db.WithContext(ctx).Where("email = ?", email).First(&user)
	duration := time.Since(start)

	if result.Error != nil {
		if result.Error != gorm.ErrRecordNotFound {
			logger.ErrorWithContext(ctx, "Failed to get user by email").
				String("email", email).
				Duration(duration).
				Err(result.Error).
				Log()
		}
		return nil, result.Error
	}

	return &user, nil
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "Create")

	start := time.Now()
	result := r.db.WithContext(ctx).Create(user)
	duration := time.Since(start)

	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to create user").
			String("email", user.Email).
			Duration(duration).
			Err(result.Error).
			Log()
		return result.Error
	}

	logger.InfoWithContext(ctx, "User created successfully").
		String("email", user.Email).
		Uint("user_id", user.ID).
		Duration(duration).
		Log()

	return nil
}

// RecordFailedAttempt increments the failed login counter in a single
// statement and returns the post-increment count. Concurrent failures
// each observe a distinct count, so the lock threshold fires exactly once.
func (r *UserRepository) RecordFailedAttempt(ctx context.Context, id uint, at time.Time) (int, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "RecordFailedAttempt")

	var attempts int
	err := r.db.WithContext(ctx).Raw(
		`UPDATE users
		 SET failed_login_attempts = failed_login_attempts + 1,
		     last_failed_login_at = ?,
		     updated_at = ?
		 WHERE id = ? AND deleted_at IS NULL
		 RETURNING failed_login_attempts`,
		at, at, id,
	).Scan(&attempts).Error

	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to record failed login attempt").
			Uint("user_id", id).
			Err(err).
			Log()
		return 0, err
	}

	logger.DebugWithContext(ctx, "Failed login attempt recorded").
		Uint("user_id", id).
		Int("failed_attempts", attempts).
		Log()

	return attempts, nil
}

// LockAccount sets the lock expiry on an account
func (r *UserRepository) LockAccount(ctx context.Context, id uint, until time.Time) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "LockAccount")

	result := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Update("locked_until", until)

	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to lock account").
			Uint("user_id", id).
			Err(result.Error).
			Log()
		return result.Error
	}

	logger.WarnWithContext(ctx, "Account locked").
		Uint("user_id", id).
		Time("locked_until", until).
		Log()

	return nil
}

// ClearExpiredLock resets the failure counter and clears the lock once
// its expiry has passed. The WHERE clause makes the reset conditional on
// the expired lock, so a concurrent re-lock is never undone.
func (r *UserRepository) ClearExpiredLock(ctx context.Context, id uint, now time.Time) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "ClearExpiredLock")

	result := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ? AND locked_until IS NOT NULL AND locked_until <= ?", id, now).
		Updates(map[string]interface{}{
			"failed_login_attempts": 0,
			"locked_until":          nil,
		})

	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to clear expired lock").
			Uint("user_id", id).
			Err(result.Error).
			Log()
		return result.Error
	}

	if result.RowsAffected > 0 {
		logger.InfoWithContext(ctx, "Expired lock cleared").
			Uint("user_id", id).
			Log()
	}

	return nil
}

// ResetFailedAttempts clears the counter and lock fields after a
// successful login and stamps last_login_at.
func (r *UserRepository) ResetFailedAttempts(ctx context.Context, id uint, loginAt time.Time) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "ResetFailedAttempts")

	result := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"failed_login_attempts": 0,
			"last_failed_login_at":  nil,
			"locked_until":          nil,
			"last_login_at":         loginAt,
		})

	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to reset login attempts").
			Uint("user_id", id).
			Err(result.Error).
			Log()
		return result.Error
	}

	return nil
}

// UpdatePassword replaces the password hash and stamps password_changed_at,
// invalidating every token minted before this instant.
func (r *UserRepository) UpdatePassword(ctx context.Context, id uint, hashedPassword string, changedAt time.Time) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "UpdatePassword")

	result := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"password":            hashedPassword,
			"password_changed_at": changedAt,
		})

	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to update user password").
			Uint("user_id", id).
			Err(result.Error).
			Log()
		return result.Error
	}

	if result.RowsAffected == 0 {
		logger.WarnWithContext(ctx, "No user found to update password").
			Uint("user_id", id).
			Log()
		return gorm.ErrRecordNotFound
	}

	logger.InfoWithContext(ctx, "User password updated successfully").
		Uint("user_id", id).
		Log()

	return nil
}

// AdvanceTokenWatermark moves last_token_issued_at forward. Tokens with
// an iat at or before the watermark keep working; older tokens are
// rejected by the revocation check on their next use.
func (r *UserRepository) AdvanceTokenWatermark(ctx context.Context, id uint, at time.Time) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "AdvanceTokenWatermark")

	result := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ? AND (last_token_issued_at IS NULL OR last_token_issued_at < ?)", id, at).
		Update("last_token_issued_at", at)

	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to advance token watermark").
			Uint("user_id", id).
			Err(result.Error).
			Log()
		return result.Error
	}

	logger.DebugWithContext(ctx, "Token watermark advanced").
		Uint("user_id", id).
		Time("watermark", at).
		Log()

	return nil
}
