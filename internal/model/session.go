package model

import "time"

// Session is one refresh-token lineage entry. The row, not the token
// signature, is authoritative for revocation: rotation revokes the old row and
// inserts a new one in the same transaction, so exactly one live row exists
// per refresh-token value.
type Session struct {
	ID     string `gorm:"column:id;type:uuid;primaryKey"`
	UserID uint   `gorm:"column:user_id;not null;index"`

	// SHA-256 digest of the refresh-token value; the presented token is
	// digested and looked up here. Unique so one token maps to one row.
	RefreshTokenDigest string `gorm:"column:refresh_token_digest;unique;not null"`

	ExpiresAt time.Time  `gorm:"column:expires_at;not null"`
	RevokedAt *time.Time `gorm:"column:revoked_at;default:null"`

	UserAgent string    `gorm:"column:user_agent"`
	IPAddress string    `gorm:"column:ip_address"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

// Revoked reports whether the session has been terminally revoked.
func (s *Session) Revoked() bool {
	return s.RevokedAt != nil
}

// Expired reports whether the session's refresh window has passed.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt.Before(now)
}
