package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	apperrors "github.com/sandipay/auth-service/internal/errors"
	"github.com/sandipay/auth-service/internal/model"
	ctxutil "github.com/sandipay/auth-service/pkg/context"
	"github.com/sandipay/auth-service/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLSTATE for "could not obtain lock" raised by FOR UPDATE NOWAIT.
const pgLockNotAvailable = "55P03"

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session row
func (r *SessionRepository) Create(ctx context.Context, session *model.Session) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "Create")

	start := time.Now()
	result := r.db.WithContext(ctx).Create(session)
	duration := time.Since(start)

	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to create session").
			Uint("user_id", session.UserID).
			Duration(duration).
			Err(result.Error).
			Log()
		return result.Error
	}

	logger.DebugWithContext(ctx, "Session created").
		String("session_id", session.ID).
		Uint("user_id", session.UserID).
		Duration(duration).
		Log()

	return nil
}

// RotateFunc validates the locked session's owner and returns the
// replacement row to insert. It runs inside the rotation transaction
// but must not query through the transaction connection; the row lock
// covers only the session row.
type RotateFunc func(ctx context.Context, current *model.Session) (*model.Session, error)

// Rotate atomically replaces one session row with its successor.
//
// The row is located by refresh-token digest and locked with
// FOR UPDATE NOWAIT inside a read-committed transaction. A concurrent
// rotation of the same token fails immediately with ErrLockContention
// instead of queueing behind the winner. Missing, revoked and expired
// rows map to their typed failures before fn is invoked. On success the
// old row is revoked and the row returned by fn is inserted, both
// within the same transaction.
func (r *SessionRepository) Rotate(ctx context.Context, digest string, now time.Time, fn RotateFunc) (*model.Session, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "Rotate")

	var rotated *model.Session

	txErr := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current model.Session
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "NOWAIT"}).
			Where("refresh_token_digest = ?", digest).
			First(&current).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrTokenInvalid
			}
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
				logger.WarnWithContext(ctx, "Session row locked by concurrent rotation").Log()
				return apperrors.ErrLockContention
			}
			return err
		}

		// Revoked rows are terminal; a replayed token must never win
		// even if the row is otherwise intact.
		if current.Revoked() {
			return apperrors.ErrSessionRevoked
		}
		if current.Expired(now) {
			return apperrors.ErrTokenExpired
		}

		next, err := fn(ctx, &current)
		if err != nil {
			return err
		}

		if err := tx.Model(&model.Session{}).
			Where("id = ?", current.ID).
			Update("revoked_at", now).Error; err != nil {
			return err
		}

		if err := tx.Create(next).Error; err != nil {
			return err
		}

		rotated = next
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelReadCommitted})

	if txErr != nil {
		return nil, txErr
	}

	logger.InfoWithContext(ctx, "Session rotated").
		String("session_id", rotated.ID).
		Uint("user_id", rotated.UserID).
		Log()

	return rotated, nil
}

// RevokeByDigest marks the session matching the digest as revoked and
// returns it. Already-revoked and missing rows return ErrTokenInvalid;
// logout does not distinguish the two.
func (r *SessionRepository) RevokeByDigest(ctx context.Context, digest string, now time.Time) (*model.Session, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "RevokeByDigest")

	var session model.Session
	err := r.db.WithContext(ctx).
		Where("refresh_token_digest = ?", digest).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTokenInvalid
		}
		return nil, err
	}

	if session.Revoked() {
		return nil, apperrors.ErrTokenInvalid
	}

	result := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("id = ? AND revoked_at IS NULL", session.ID).
		Update("revoked_at", now)
	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to revoke session").
			String("session_id", session.ID).
			Err(result.Error).
			Log()
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		// Lost the race to a concurrent revocation
		return nil, apperrors.ErrTokenInvalid
	}

	logger.InfoWithContext(ctx, "Session revoked").
		String("session_id", session.ID).
		Uint("user_id", session.UserID).
		Log()

	return &session, nil
}

// RevokeAllByUser revokes every live session for a user and returns the
// number of rows affected.
func (r *SessionRepository) RevokeAllByUser(ctx context.Context, userID uint, now time.Time) (int64, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "RevokeAllByUser")

	result := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", now)
	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to revoke user sessions").
			Uint("user_id", userID).
			Err(result.Error).
			Log()
		return 0, result.Error
	}

	logger.InfoWithContext(ctx, "All user sessions revoked").
		Uint("user_id", userID).
		Int64("revoked_count", result.RowsAffected).
		Log()

	return result.RowsAffected, nil
}

// DeleteExpired removes rows whose expiry has passed. Housekeeping only;
// revocation semantics never depend on physical deletion.
func (r *SessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "DeleteExpired")

	result := r.db.WithContext(ctx).
		Where("expires_at < ?", before).
		Delete(&model.Session{})
	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to delete expired sessions").
			Err(result.Error).
			Log()
		return 0, result.Error
	}

	return result.RowsAffected, nil
}
