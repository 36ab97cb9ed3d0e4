package service

import (
	"github.com/sandipay/auth-service/internal/model"

	apperrors "github.com/sandipay/auth-service/internal/errors"
)

// RevocationGate rejects structurally valid access tokens that were
// issued before a user-level revocation event. Both watermarks compare
// at second precision against the token's iat; a token minted in the
// same second as the watermark stays valid, strictly older tokens die.
type RevocationGate struct{}

func NewRevocationGate() *RevocationGate {
	return &RevocationGate{}
}

// Accept returns nil when the token postdates every watermark.
func (g *RevocationGate) Accept(claims *TokenClaims, user *model.User) error {
	iat := claims.IssuedAt.Unix()

	if user.PasswordChangedAt != nil && user.PasswordChangedAt.Unix() > iat {
		return apperrors.ErrPasswordChanged
	}

	if user.LastTokenIssuedAt != nil && user.LastTokenIssuedAt.Unix() > iat {
		return apperrors.ErrSessionRevoked
	}

	return nil
}
