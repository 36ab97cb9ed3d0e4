package model

import (
	"testing"
	"time"
)

func TestUserLocked(t *testing.T) {
	now := time.Now()
	future := now.Add(10 * time.Minute)
	past := now.Add(-10 * time.Minute)

	tests := []struct {
		name        string
		lockedUntil *time.Time
		want        bool
	}{
		{"never locked", nil, false},
		{"lock active", &future, true},
		{"lock expired", &past, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := User{LockedUntil: tt.lockedUntil}
			if got := u.Locked(now); got != tt.want {
				t.Errorf("Locked() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSessionState(t *testing.T) {
	now := time.Now()
	revokedAt := now.Add(-time.Minute)

	live := Session{ExpiresAt: now.Add(time.Hour)}
	if live.Revoked() || live.Expired(now) {
		t.Error("live session reported revoked or expired")
	}

	revoked := Session{ExpiresAt: now.Add(time.Hour), RevokedAt: &revokedAt}
	if !revoked.Revoked() {
		t.Error("revoked session not reported revoked")
	}

	expired := Session{ExpiresAt: now.Add(-time.Second)}
	if !expired.Expired(now) {
		t.Error("expired session not reported expired")
	}
}
