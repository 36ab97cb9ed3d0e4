package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sandipay/auth-service/config"
	"github.com/sandipay/auth-service/internal/audit"
	"github.com/sandipay/auth-service/internal/dto"
	apperrors "github.com/sandipay/auth-service/internal/errors"
	"github.com/sandipay/auth-service/internal/model"
	ctxutil "github.com/sandipay/auth-service/pkg/context"
	"github.com/sandipay/auth-service/pkg/logger"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// dummyPasswordHash is compared against when no account matches the
// identifier, keeping the unknown-user path as slow as a real mismatch.
const dummyPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// AuthService validates credentials and opens sessions. Lockout state
// lives on the user row; the threshold check runs against the count
// returned by the same statement that incremented it, so two racing
// failures cannot both observe the pre-increment value.
type AuthService struct {
	users    CredentialStore
	sessions SessionStore
	jwt      *JWTService
	auditor  audit.Emitter
	lockout  config.LockoutConfig
}

func NewAuthService(users CredentialStore, sessions SessionStore, jwt *JWTService, auditor audit.Emitter, lockout config.LockoutConfig) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		jwt:      jwt,
		auditor:  auditor,
		lockout:  lockout,
	}
}

// ValidateCredentials checks an email and password against storage.
//
// Unknown identifiers burn a bcrypt comparison against a dummy hash so
// response time does not reveal account existence. Inactive accounts
// run the real comparison and still return invalid credentials. Locked
// accounts short-circuit before any comparison and never touch the
// failure counter. An expired lock is cleared, counter included, before
// the comparison runs, so the full attempt allowance applies again. On
// success the counter and lock fields are cleared and the returned user
// carries no password hash.
func (s *AuthService) ValidateCredentials(ctx context.Context, email, password string) (*model.User, error) {
	ctx = ctxutil.WithOperation(ctx, "service", "ValidateCredentials")
	now := time.Now().UTC()

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_ = bcrypt.CompareHashAndPassword([]byte(dummyPasswordHash), []byte(password))
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if user.LockedUntil != nil {
		if user.Locked(now) {
			logger.WarnWithContext(ctx, "Login attempt on locked account").
				Uint("user_id", user.ID).
				Time("locked_until", *user.LockedUntil).
				Log()
			s.auditor.Emit(ctx, audit.Event{
				Action:    audit.ActionLockedAccountAttempt,
				Resource:  audit.ResourceAuth,
				SubjectID: user.ID,
				IP:        ctxutil.GetClientIP(ctx),
				UserAgent: ctxutil.GetUserAgent(ctx),
			})
			return nil, apperrors.ErrAccountLocked
		}

		// Lock has elapsed: the counter resets so the account re-enters
		// the window with the full allowance, not one strike from relock.
		if err := s.users.ClearExpiredLock(ctx, user.ID, now); err != nil {
			return nil, apperrors.WrapError(apperrors.ErrInternal, err)
		}
		user.FailedLoginAttempts = 0
		user.LockedUntil = nil
	}

	compareErr := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password))

	if !user.Active {
		return nil, apperrors.ErrInvalidCredentials
	}

	if compareErr != nil {
		attempts, err := s.users.RecordFailedAttempt(ctx, user.ID, now)
		if err != nil {
			return nil, apperrors.WrapError(apperrors.ErrInternal, err)
		}

		if attempts >= s.lockout.MaxAttempts {
			until := now.Add(s.lockout.Duration)
			if err := s.users.LockAccount(ctx, user.ID, until); err != nil {
				return nil, apperrors.WrapError(apperrors.ErrInternal, err)
			}
			s.auditor.Emit(ctx, audit.Event{
				Action:    audit.ActionAccountLocked,
				Resource:  audit.ResourceAuth,
				SubjectID: user.ID,
				IP:        ctxutil.GetClientIP(ctx),
				UserAgent: ctxutil.GetUserAgent(ctx),
				Metadata: map[string]interface{}{
					"failed_attempts":  attempts,
					"lockout_duration": s.lockout.Duration.String(),
				},
			})
		}

		return nil, apperrors.ErrInvalidCredentials
	}

	if err := s.users.ResetFailedAttempts(ctx, user.ID, now); err != nil {
		// Login still succeeds; a stale counter is corrected on the
		// next successful attempt.
		logger.ErrorWithContext(ctx, "Failed to reset login attempts after success").
			Uint("user_id", user.ID).
			Err(err).
			Log()
	}

	user.Password = ""
	return user, nil
}

// Login validates credentials, mints a token pair and opens a session.
func (s *AuthService) Login(ctx context.Context, req *dto.UserLoginRequest) (*dto.TokenPairResponse, error) {
	ctx = ctxutil.WithOperation(ctx, "service", "Login")

	user, err := s.ValidateCredentials(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	pair, err := s.jwt.GenerateTokenPair(user, now)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	session := &model.Session{
		ID:                 uuid.NewString(),
		UserID:             user.ID,
		RefreshTokenDigest: HashRefreshToken(pair.RefreshToken),
		ExpiresAt:          now.Add(s.jwt.RefreshLifetime()),
		UserAgent:          ctxutil.GetUserAgent(ctx),
		IPAddress:          ctxutil.GetClientIP(ctx),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	logger.InfoWithContext(ctx, "User logged in").
		Uint("user_id", user.ID).
		String("session_id", session.ID).
		Log()

	s.auditor.Emit(ctx, audit.Event{
		Action:     audit.ActionLogin,
		Resource:   audit.ResourceAuth,
		SubjectID:  user.ID,
		SessionID:  session.ID,
		IP:         ctxutil.GetClientIP(ctx),
		UserAgent:  ctxutil.GetUserAgent(ctx),
		StatusCode: 200,
	})

	return &dto.TokenPairResponse{
		Token:        pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    int(s.jwt.AccessLifetime().Seconds()),
		User:         toUserResponse(user),
	}, nil
}

func toUserResponse(user *model.User) dto.UserResponse {
	return dto.UserResponse{
		ID:          user.ID,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		Email:       user.Email,
		Username:    user.Username,
		Role:        user.Role,
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}
