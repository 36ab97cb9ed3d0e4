package service

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/sandipay/auth-service/internal/errors"
	"github.com/sandipay/auth-service/internal/model"
)

// TokenClaims is the decoded form of either token class. Role is empty
// for refresh tokens; they carry only identity and validity.
type TokenClaims struct {
	UserID    uint
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenPair holds a freshly minted access and refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// JWTService mints and validates both token classes. The two secrets
// are independent: an access token never validates as a refresh token
// and vice versa, even with identical claims.
type JWTService struct {
	accessSecret    []byte
	refreshSecret   []byte
	accessLifetime  time.Duration
	refreshLifetime time.Duration
}

func NewJWTService(accessSecret, refreshSecret string, accessLifetime, refreshLifetime time.Duration) *JWTService {
	return &JWTService{
		accessSecret:    []byte(accessSecret),
		refreshSecret:   []byte(refreshSecret),
		accessLifetime:  accessLifetime,
		refreshLifetime: refreshLifetime,
	}
}

// GenerateTokenPair mints both tokens with the same issue instant.
func (s *JWTService) GenerateTokenPair(user *model.User, now time.Time) (*TokenPair, error) {
	accessToken, err := s.GenerateAccessToken(user, now)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.GenerateRefreshToken(user, now)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// GenerateAccessToken creates a short-lived access token. Claims stay
// minimal: identity and role only, everything else is fetched fresh
// from storage on each request.
func (s *JWTService) GenerateAccessToken(user *model.User, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"role":    user.Role,
		"iat":     now.Unix(),
		"exp":     now.Add(s.accessLifetime).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.accessSecret)
}

// GenerateRefreshToken creates a long-lived refresh token carrying only
// the user id and validity window.
func (s *JWTService) GenerateRefreshToken(user *model.User, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"iat":     now.Unix(),
		"exp":     now.Add(s.refreshLifetime).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.refreshSecret)
}

// AccessLifetime exposes the configured access token lifetime.
func (s *JWTService) AccessLifetime() time.Duration {
	return s.accessLifetime
}

// RefreshLifetime exposes the configured refresh token lifetime.
func (s *JWTService) RefreshLifetime() time.Duration {
	return s.refreshLifetime
}

// ValidateAccessToken verifies signature and expiry of an access token.
func (s *JWTService) ValidateAccessToken(tokenString string) (*TokenClaims, error) {
	return s.validate(tokenString, s.accessSecret)
}

// ValidateRefreshToken verifies signature and expiry of a refresh token.
func (s *JWTService) ValidateRefreshToken(tokenString string) (*TokenClaims, error) {
	return s.validate(tokenString, s.refreshSecret)
}

func (s *JWTService) validate(tokenString string, secret []byte) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, apperrors.WrapError(apperrors.ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, apperrors.ErrTokenInvalid
	}

	return parseClaims(claims)
}

func parseClaims(claims jwt.MapClaims) (*TokenClaims, error) {
	userID, ok := claims["user_id"].(float64)
	if !ok || userID <= 0 {
		return nil, apperrors.ErrTokenInvalid
	}

	iat, ok := claims["iat"].(float64)
	if !ok {
		return nil, apperrors.ErrTokenInvalid
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return nil, apperrors.ErrTokenInvalid
	}

	parsed := &TokenClaims{
		UserID:    uint(userID),
		IssuedAt:  time.Unix(int64(iat), 0),
		ExpiresAt: time.Unix(int64(exp), 0),
	}

	if role, ok := claims["role"].(string); ok {
		parsed.Role = role
	}

	return parsed, nil
}

// HashRefreshToken derives the storage key for a refresh token. SHA-256
// gives a deterministic digest so the session row can be found by a
// single indexed lookup; the token itself is never stored.
func HashRefreshToken(refreshToken string) string {
	sum := sha256.Sum256([]byte(refreshToken))
	return hex.EncodeToString(sum[:])
}
