package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sandipay/auth-service/internal/audit"
	apperrors "github.com/sandipay/auth-service/internal/errors"
	"github.com/sandipay/auth-service/internal/model"
)

func newSessionFixture(t *testing.T, users ...*model.User) (*SessionService, *fakeUserStore, *fakeSessionStore, *capturingEmitter) {
	t.Helper()
	userStore := newFakeUserStore(users...)
	sessionStore := newFakeSessionStore()
	emitter := &capturingEmitter{}
	svc := NewSessionService(userStore, sessionStore, newTestJWTService(), emitter, 5*time.Second)
	return svc, userStore, sessionStore, emitter
}

// issueSession mints a refresh token for the user and stores the
// matching session row, as login would.
func issueSession(t *testing.T, jwt *JWTService, sessions *fakeSessionStore, user *model.User) string {
	t.Helper()
	now := time.Now().UTC()
	refreshToken, err := jwt.GenerateRefreshToken(user, now)
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}
	session := &model.Session{
		ID:                 uuid.NewString(),
		UserID:             user.ID,
		RefreshTokenDigest: HashRefreshToken(refreshToken),
		ExpiresAt:          now.Add(7 * 24 * time.Hour),
	}
	if err := sessions.Create(context.Background(), session); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return refreshToken
}

func TestRotateRoundTrip(t *testing.T) {
	user := activeUser(t, 1, "alice@example.com")
	svc, _, sessions, emitter := newSessionFixture(t, user)
	jwtSvc := newTestJWTService()

	refreshToken := issueSession(t, jwtSvc, sessions, user)
	oldDigest := HashRefreshToken(refreshToken)

	resp, err := svc.Rotate(context.Background(), refreshToken)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	if resp.Token == "" || resp.RefreshToken == "" {
		t.Fatal("rotation response missing tokens")
	}
	if resp.RefreshToken == refreshToken {
		t.Error("rotation returned the presented token unchanged")
	}

	// Old row revoked, new row live
	if old := sessions.get(oldDigest); old == nil || !old.Revoked() {
		t.Error("presented session row not revoked after rotation")
	}
	next := sessions.get(HashRefreshToken(resp.RefreshToken))
	if next == nil {
		t.Fatal("no session row for the new refresh token")
	}
	if next.Revoked() {
		t.Error("replacement session row is revoked")
	}

	// The new refresh token validates and belongs to the same user
	claims, err := jwtSvc.ValidateRefreshToken(resp.RefreshToken)
	if err != nil {
		t.Fatalf("new refresh token invalid: %v", err)
	}
	if claims.UserID != 1 {
		t.Errorf("new token user id = %d, want 1", claims.UserID)
	}

	if emitter.count(audit.ActionRefreshToken) != 1 {
		t.Errorf("RefreshToken events = %d, want 1", emitter.count(audit.ActionRefreshToken))
	}
}

func TestRotateIsSingleUse(t *testing.T) {
	user := activeUser(t, 1, "alice@example.com")
	svc, _, sessions, _ := newSessionFixture(t, user)

	refreshToken := issueSession(t, newTestJWTService(), sessions, user)

	if _, err := svc.Rotate(context.Background(), refreshToken); err != nil {
		t.Fatalf("first rotation: %v", err)
	}

	// Replay of the consumed token loses; revocation is terminal
	_, err := svc.Rotate(context.Background(), refreshToken)
	if err != apperrors.ErrSessionRevoked {
		t.Errorf("replayed token returned %v, want ErrSessionRevoked", err)
	}
}

func TestRotateLockContention(t *testing.T) {
	user := activeUser(t, 1, "alice@example.com")
	svc, _, sessions, emitter := newSessionFixture(t, user)

	refreshToken := issueSession(t, newTestJWTService(), sessions, user)
	sessions.contended = true

	_, err := svc.Rotate(context.Background(), refreshToken)
	if err != apperrors.ErrLockContention {
		t.Errorf("contended rotation returned %v, want ErrLockContention", err)
	}
	if emitter.count(audit.ActionRefreshToken) != 0 {
		t.Error("losing rotation emitted a RefreshToken event")
	}
}

func TestRotateUnknownToken(t *testing.T) {
	user := activeUser(t, 1, "alice@example.com")
	svc, _, _, _ := newSessionFixture(t, user)

	// Structurally valid token with no backing session row
	orphan, err := newTestJWTService().GenerateRefreshToken(user, time.Now().UTC())
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}

	_, rotateErr := svc.Rotate(context.Background(), orphan)
	if rotateErr != apperrors.ErrTokenInvalid {
		t.Errorf("orphan token returned %v, want ErrTokenInvalid", rotateErr)
	}
}

func TestRotateExpiredSessionRow(t *testing.T) {
	user := activeUser(t, 1, "alice@example.com")
	svc, _, sessions, _ := newSessionFixture(t, user)
	jwtSvc := newTestJWTService()

	now := time.Now().UTC()
	refreshToken, err := jwtSvc.GenerateRefreshToken(user, now)
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}
	expired := &model.Session{
		ID:                 uuid.NewString(),
		UserID:             user.ID,
		RefreshTokenDigest: HashRefreshToken(refreshToken),
		ExpiresAt:          now.Add(-time.Hour),
	}
	if err := sessions.Create(context.Background(), expired); err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, rotateErr := svc.Rotate(context.Background(), refreshToken)
	if rotateErr != apperrors.ErrTokenExpired {
		t.Errorf("expired session returned %v, want ErrTokenExpired", rotateErr)
	}
}

func TestRotateInactiveUser(t *testing.T) {
	user := activeUser(t, 1, "alice@example.com")
	svc, store, sessions, _ := newSessionFixture(t, user)

	refreshToken := issueSession(t, newTestJWTService(), sessions, user)

	store.users[1].Active = false

	_, err := svc.Rotate(context.Background(), refreshToken)
	if err != apperrors.ErrUserInactive {
		t.Errorf("inactive owner returned %v, want ErrUserInactive", err)
	}
}

func TestRotateForgedTokenNeverTouchesStorage(t *testing.T) {
	user := activeUser(t, 1, "alice@example.com")
	svc, _, sessions, _ := newSessionFixture(t, user)

	forged, err := NewJWTService("x", "wrong-refresh-secret", time.Minute, time.Hour).
		GenerateRefreshToken(user, time.Now().UTC())
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}
	sessions.contended = true // would surface as ErrLockContention if storage were hit

	_, rotateErr := svc.Rotate(context.Background(), forged)
	if rotateErr == apperrors.ErrLockContention {
		t.Fatal("forged token reached the session store")
	}
	if rotateErr == nil {
		t.Fatal("forged token accepted")
	}
}

func TestPurgeExpiredRemovesOnlyStaleRows(t *testing.T) {
	user := activeUser(t, 1, "alice@example.com")
	svc, _, sessions, _ := newSessionFixture(t, user)
	now := time.Now().UTC()

	stale := &model.Session{
		ID:                 uuid.NewString(),
		UserID:             1,
		RefreshTokenDigest: "stale-digest",
		ExpiresAt:          now.Add(-time.Hour),
	}
	live := &model.Session{
		ID:                 uuid.NewString(),
		UserID:             1,
		RefreshTokenDigest: "live-digest",
		ExpiresAt:          now.Add(time.Hour),
	}
	for _, s := range []*model.Session{stale, live} {
		if err := sessions.Create(context.Background(), s); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	deleted, err := svc.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if sessions.get("stale-digest") != nil {
		t.Error("expired session row survived the purge")
	}
	if sessions.get("live-digest") == nil {
		t.Error("live session row was purged")
	}
}
