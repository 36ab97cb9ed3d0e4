package service

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/sandipay/auth-service/internal/audit"
	"github.com/sandipay/auth-service/internal/constants"
	"github.com/sandipay/auth-service/internal/dto"
	apperrors "github.com/sandipay/auth-service/internal/errors"
	"github.com/sandipay/auth-service/internal/model"
	ctxutil "github.com/sandipay/auth-service/pkg/context"
	"github.com/sandipay/auth-service/pkg/logger"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var usernameRegex = regexp.MustCompile(constants.UsernamePattern)

// UserService covers the account lifecycle around sessions:
// registration, logout, and password changes.
type UserService struct {
	users    CredentialStore
	sessions SessionStore
	jwt      *JWTService
	auditor  audit.Emitter
}

func NewUserService(users CredentialStore, sessions SessionStore, jwt *JWTService, auditor audit.Emitter) *UserService {
	return &UserService{
		users:    users,
		sessions: sessions,
		jwt:      jwt,
		auditor:  auditor,
	}
}

// Register creates an account and opens its first session.
func (s *UserService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenPairResponse, error) {
	ctx = ctxutil.WithOperation(ctx, "service", "Register")

	// Binding tags enforce lengths; the format check stays here so the
	// rule holds for every caller, not just the HTTP surface.
	if len(req.Username) < constants.MinUsernameLength ||
		len(req.Username) > constants.MaxUsernameLength ||
		!usernameRegex.MatchString(req.Username) {
		return nil, apperrors.ErrInvalidInput
	}
	if len(req.Password) < constants.MinPasswordLength ||
		len(req.Password) > constants.MaxPasswordLength {
		return nil, apperrors.ErrInvalidInput
	}

	_, err := s.users.GetByEmail(ctx, req.Email)
	if err == nil {
		return nil, apperrors.ErrEmailExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	user := &model.User{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Username:  req.Username,
		Password:  string(hashedPassword),
		Role:      constants.RoleUser,
		Active:    true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
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

	s.auditor.Emit(ctx, audit.Event{
		Action:     audit.ActionRegister,
		Resource:   audit.ResourceAuth,
		SubjectID:  user.ID,
		SessionID:  session.ID,
		IP:         ctxutil.GetClientIP(ctx),
		UserAgent:  ctxutil.GetUserAgent(ctx),
		StatusCode: 201,
	})

	user.Password = ""
	return &dto.TokenPairResponse{
		Token:        pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    int(s.jwt.AccessLifetime().Seconds()),
		User:         toUserResponse(user),
	}, nil
}

// Logout revokes the session named by the refresh token and advances
// the token watermark, retiring access tokens minted before this call.
func (s *UserService) Logout(ctx context.Context, refreshToken string) error {
	ctx = ctxutil.WithOperation(ctx, "service", "Logout")

	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	session, err := s.sessions.RevokeByDigest(ctx, HashRefreshToken(refreshToken), now)
	if err != nil {
		return err
	}

	if session.UserID != claims.UserID {
		return apperrors.ErrTokenInvalid
	}

	if err := s.users.AdvanceTokenWatermark(ctx, session.UserID, now); err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	s.auditor.Emit(ctx, audit.Event{
		Action:    audit.ActionLogout,
		Resource:  audit.ResourceAuth,
		SubjectID: session.UserID,
		SessionID: session.ID,
		IP:        ctxutil.GetClientIP(ctx),
		UserAgent: ctxutil.GetUserAgent(ctx),
	})

	return nil
}

// LogoutAll revokes every live session of the user and advances the
// watermark once.
func (s *UserService) LogoutAll(ctx context.Context, userID uint) error {
	ctx = ctxutil.WithOperation(ctx, "service", "LogoutAll")

	now := time.Now().UTC()
	revoked, err := s.sessions.RevokeAllByUser(ctx, userID, now)
	if err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if err := s.users.AdvanceTokenWatermark(ctx, userID, now); err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	s.auditor.Emit(ctx, audit.Event{
		Action:    audit.ActionLogout,
		Resource:  audit.ResourceAuth,
		SubjectID: userID,
		IP:        ctxutil.GetClientIP(ctx),
		UserAgent: ctxutil.GetUserAgent(ctx),
		Metadata: map[string]interface{}{
			"all_devices":   true,
			"revoked_count": revoked,
		},
	})

	return nil
}

// ChangePassword verifies the current secret, replaces the hash, and
// revokes every session. password_changed_at rejects outstanding
// access tokens on their next use.
func (s *UserService) ChangePassword(ctx context.Context, userID uint, req *dto.ChangePasswordRequest) error {
	ctx = ctxutil.WithOperation(ctx, "service", "ChangePassword")

	if req.NewPassword != req.ConfirmPassword {
		return apperrors.ErrPasswordMismatch
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrUserNotFound
		}
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
		return apperrors.ErrIncorrectPassword
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	now := time.Now().UTC()
	if err := s.users.UpdatePassword(ctx, userID, string(hashedPassword), now); err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	revoked, err := s.sessions.RevokeAllByUser(ctx, userID, now)
	if err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	logger.InfoWithContext(ctx, "Password changed").
		Uint("user_id", userID).
		Int64("sessions_revoked", revoked).
		Log()

	s.auditor.Emit(ctx, audit.Event{
		Action:    audit.ActionChangePassword,
		Resource:  audit.ResourceAuth,
		SubjectID: userID,
		IP:        ctxutil.GetClientIP(ctx),
		UserAgent: ctxutil.GetUserAgent(ctx),
		Metadata: map[string]interface{}{
			"sessions_revoked": revoked,
		},
	})

	return nil
}
