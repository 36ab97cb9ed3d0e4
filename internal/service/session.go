package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sandipay/auth-service/internal/audit"
	"github.com/sandipay/auth-service/internal/dto"
	apperrors "github.com/sandipay/auth-service/internal/errors"
	"github.com/sandipay/auth-service/internal/model"
	ctxutil "github.com/sandipay/auth-service/pkg/context"
	"github.com/sandipay/auth-service/pkg/logger"
	"gorm.io/gorm"
)

// SessionService rotates refresh tokens. Rotation is single-use: the
// presented token's session row is revoked and replaced in one
// transaction, and a concurrent rotation of the same token loses
// immediately instead of waiting on the row lock.
type SessionService struct {
	users     CredentialStore
	sessions  SessionStore
	jwt       *JWTService
	auditor   audit.Emitter
	txTimeout time.Duration
}

func NewSessionService(users CredentialStore, sessions SessionStore, jwt *JWTService, auditor audit.Emitter, txTimeout time.Duration) *SessionService {
	return &SessionService{
		users:     users,
		sessions:  sessions,
		jwt:       jwt,
		auditor:   auditor,
		txTimeout: txTimeout,
	}
}

// Rotate exchanges a refresh token for a fresh token pair.
//
// Signature and expiry are checked before touching storage, so forged
// and stale tokens never open a transaction. The transaction itself
// runs under a wall-clock timeout; holding the row lock cannot outlive
// it. The owning user is fetched outside the row lock. The audit event
// fires only after commit, so a rolled-back rotation is never recorded
// as a success.
func (s *SessionService) Rotate(ctx context.Context, refreshToken string) (*dto.TokenPairResponse, error) {
	ctx = ctxutil.WithOperation(ctx, "service", "Rotate")

	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	digest := HashRefreshToken(refreshToken)

	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	var (
		user  *model.User
		pair  *TokenPair
		oldID string
	)

	rotated, err := s.sessions.Rotate(txCtx, digest, now, func(_ context.Context, current *model.Session) (*model.Session, error) {
		if current.UserID != claims.UserID {
			return nil, apperrors.ErrTokenInvalid
		}
		oldID = current.ID

		u, err := s.users.GetByID(ctx, current.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.ErrUserInactive
			}
			return nil, apperrors.WrapError(apperrors.ErrInternal, err)
		}
		if !u.Active {
			return nil, apperrors.ErrUserInactive
		}
		user = u

		p, err := s.jwt.GenerateTokenPair(u, now)
		if err != nil {
			return nil, apperrors.WrapError(apperrors.ErrInternal, err)
		}
		pair = p

		return &model.Session{
			ID:                 uuid.NewString(),
			UserID:             u.ID,
			RefreshTokenDigest: HashRefreshToken(p.RefreshToken),
			ExpiresAt:          now.Add(s.jwt.RefreshLifetime()),
			UserAgent:          ctxutil.GetUserAgent(ctx),
			IPAddress:          ctxutil.GetClientIP(ctx),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	logger.InfoWithContext(ctx, "Refresh token rotated").
		Uint("user_id", user.ID).
		String("old_session_id", oldID).
		String("new_session_id", rotated.ID).
		Log()

	s.auditor.Emit(ctx, audit.Event{
		Action:    audit.ActionRefreshToken,
		Resource:  audit.ResourceAuth,
		SubjectID: user.ID,
		SessionID: rotated.ID,
		IP:        ctxutil.GetClientIP(ctx),
		UserAgent: ctxutil.GetUserAgent(ctx),
		Metadata: map[string]interface{}{
			"old_session_id": oldID,
			"new_session_id": rotated.ID,
		},
	})

	user.Password = ""
	return &dto.TokenPairResponse{
		Token:        pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    int(s.jwt.AccessLifetime().Seconds()),
		User:         toUserResponse(user),
	}, nil
}

// PurgeExpired deletes session rows whose expiry has passed. Revocation
// never depends on deletion; this only keeps the table from growing
// without bound. Meant to run on a schedule.
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	ctx = ctxutil.WithOperation(ctx, "service", "PurgeExpired")

	deleted, err := s.sessions.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if deleted > 0 {
		logger.InfoWithContext(ctx, "Expired sessions purged").
			Int64("deleted_count", deleted).
			Log()
	}

	return deleted, nil
}
