package service

import (
	"context"
	"testing"
	"time"

	"github.com/sandipay/auth-service/config"
	"github.com/sandipay/auth-service/internal/audit"
	"github.com/sandipay/auth-service/internal/dto"
	apperrors "github.com/sandipay/auth-service/internal/errors"
	"github.com/sandipay/auth-service/internal/model"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const testPassword = "correct-horse-battery"

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

func testLockout() config.LockoutConfig {
	return config.LockoutConfig{MaxAttempts: 5, Duration: 15 * time.Minute}
}

func newAuthFixture(t *testing.T, users ...*model.User) (*AuthService, *fakeUserStore, *fakeSessionStore, *capturingEmitter) {
	t.Helper()
	userStore := newFakeUserStore(users...)
	sessionStore := newFakeSessionStore()
	emitter := &capturingEmitter{}
	svc := NewAuthService(userStore, sessionStore, newTestJWTService(), emitter, testLockout())
	return svc, userStore, sessionStore, emitter
}

func activeUser(t *testing.T, id uint, email string) *model.User {
	t.Helper()
	return &model.User{
		Model:    gorm.Model{ID: id},
		Email:    email,
		Username: "alice",
		Password: hashPassword(t, testPassword),
		Role:     "user",
		Active:   true,
	}
}

func TestValidateCredentialsUnknownUser(t *testing.T) {
	svc, store, _, emitter := newAuthFixture(t)

	_, err := svc.ValidateCredentials(context.Background(), "nobody@example.com", "whatever")
	if err != apperrors.ErrInvalidCredentials {
		t.Errorf("unknown user returned %v, want ErrInvalidCredentials", err)
	}
	if store.recordCalls != 0 {
		t.Error("unknown user must not touch the failure counter")
	}
	if len(emitter.events) != 0 {
		t.Errorf("unknown user emitted %d audit events, want 0", len(emitter.events))
	}
}

func TestValidateCredentialsWrongPassword(t *testing.T) {
	user := activeUser(t, 1, "alice@example.com")
	svc, store, _, _ := newAuthFixture(t, user)

	_, err := svc.ValidateCredentials(context.Background(), "alice@example.com", "wrong")
	if err != apperrors.ErrInvalidCredentials {
		t.Errorf("wrong password returned %v, want ErrInvalidCredentials", err)
	}
	if store.recordCalls != 1 {
		t.Errorf("recordCalls = %d, want 1", store.recordCalls)
	}
	if store.lockCalls != 0 {
		t.Error("account locked before reaching the threshold")
	}
}

func TestLockoutAtThreshold(t *testing.T) {
	user := activeUser(t, 1, "alice@example.com")
	svc, store, _, emitter := newAuthFixture(t, user)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := svc.ValidateCredentials(ctx, "alice@example.com", "wrong"); err != apperrors.ErrInvalidCredentials {
			t.Fatalf("attempt %d returned %v, want ErrInvalidCredentials", i+1, err)
		}
	}
	if store.lockCalls != 0 {
		t.Fatal("account locked before the fifth failure")
	}
	if emitter.count(audit.ActionAccountLocked) != 0 {
		t.Fatal("AccountLocked emitted before the fifth failure")
	}

	// Fifth failure crosses the threshold
	if _, err := svc.ValidateCredentials(ctx, "alice@example.com", "wrong"); err != apperrors.ErrInvalidCredentials {
		t.Fatalf("fifth attempt returned %v, want ErrInvalidCredentials", err)
	}
	if store.lockCalls != 1 {
		t.Errorf("lockCalls = %d, want 1", store.lockCalls)
	}
	if emitter.count(audit.ActionAccountLocked) != 1 {
		t.Errorf("AccountLocked events = %d, want 1", emitter.count(audit.ActionAccountLocked))
	}

	// Correct password is rejected while the lock holds
	_, err := svc.ValidateCredentials(ctx, "alice@example.com", testPassword)
	if err != apperrors.ErrAccountLocked {
		t.Errorf("locked account returned %v, want ErrAccountLocked", err)
	}
	if store.recordCalls != 5 {
		t.Errorf("locked attempt incremented the counter: recordCalls = %d, want 5", store.recordCalls)
	}
	if emitter.count(audit.ActionLockedAccountAttempt) != 1 {
		t.Errorf("LockedAccountAttempt events = %d, want 1", emitter.count(audit.ActionLockedAccountAttempt))
	}
}

func TestExpiredLockClearsOnSuccess(t *testing.T) {
	user := activeUser(t, 1, "alice@example.com")
	past := time.Now().UTC().Add(-time.Minute)
	user.FailedLoginAttempts = 5
	user.LockedUntil = &past

	svc, store, _, _ := newAuthFixture(t, user)

	got, err := svc.ValidateCredentials(context.Background(), "alice@example.com", testPassword)
	if err != nil {
		t.Fatalf("login after lock expiry failed: %v", err)
	}
	if got.Password != "" {
		t.Error("returned user still carries the password hash")
	}
	if store.resetCalls != 1 {
		t.Errorf("resetCalls = %d, want 1", store.resetCalls)
	}

	stored := store.users[1]
	if stored.FailedLoginAttempts != 0 || stored.LockedUntil != nil {
		t.Error("counter and lock fields not cleared after successful login")
	}
}

func TestExpiredLockRestoresFullAllowance(t *testing.T) {
	user := activeUser(t, 1, "alice@example.com")
	past := time.Now().UTC().Add(-time.Minute)
	user.FailedLoginAttempts = 5
	user.LockedUntil = &past

	svc, store, _, emitter := newAuthFixture(t, user)
	ctx := context.Background()

	// A single wrong password after expiry starts a fresh count instead
	// of relocking on top of the stale one.
	_, err := svc.ValidateCredentials(ctx, "alice@example.com", "wrong")
	if err != apperrors.ErrInvalidCredentials {
		t.Fatalf("first post-expiry failure returned %v, want ErrInvalidCredentials", err)
	}
	if store.clearCalls != 1 {
		t.Errorf("clearCalls = %d, want 1", store.clearCalls)
	}
	if got := store.users[1].FailedLoginAttempts; got != 1 {
		t.Errorf("failed_login_attempts = %d after lock expiry + one failure, want 1", got)
	}
	if store.lockCalls != 0 {
		t.Error("account relocked by a single post-expiry failure")
	}
	if emitter.count(audit.ActionAccountLocked) != 0 {
		t.Errorf("AccountLocked events = %d, want 0", emitter.count(audit.ActionAccountLocked))
	}

	// The full allowance applies again: lock only at the fifth failure.
	for i := 0; i < 3; i++ {
		if _, err := svc.ValidateCredentials(ctx, "alice@example.com", "wrong"); err != apperrors.ErrInvalidCredentials {
			t.Fatalf("post-expiry attempt %d returned %v, want ErrInvalidCredentials", i+2, err)
		}
	}
	if store.lockCalls != 0 {
		t.Fatal("account relocked before the fifth post-expiry failure")
	}
	if _, err := svc.ValidateCredentials(ctx, "alice@example.com", "wrong"); err != apperrors.ErrInvalidCredentials {
		t.Fatalf("fifth post-expiry attempt returned %v, want ErrInvalidCredentials", err)
	}
	if store.lockCalls != 1 {
		t.Errorf("lockCalls = %d after five post-expiry failures, want 1", store.lockCalls)
	}
}

func TestInactiveUserRejected(t *testing.T) {
	user := activeUser(t, 1, "alice@example.com")
	user.Active = false
	svc, store, _, _ := newAuthFixture(t, user)

	_, err := svc.ValidateCredentials(context.Background(), "alice@example.com", testPassword)
	if err != apperrors.ErrInvalidCredentials {
		t.Errorf("inactive user returned %v, want ErrInvalidCredentials", err)
	}
	if store.recordCalls != 0 {
		t.Error("inactive user with correct password must not increment the counter")
	}
}

func TestLoginOpensSession(t *testing.T) {
	user := activeUser(t, 1, "alice@example.com")
	svc, _, sessions, emitter := newAuthFixture(t, user)

	resp, err := svc.Login(context.Background(), &dto.UserLoginRequest{
		Email:    "alice@example.com",
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if resp.Token == "" || resp.RefreshToken == "" {
		t.Fatal("login response missing tokens")
	}
	if resp.User.ID != 1 {
		t.Errorf("response user id = %d, want 1", resp.User.ID)
	}

	// The stored session is keyed by the digest of the issued token
	session := sessions.get(HashRefreshToken(resp.RefreshToken))
	if session == nil {
		t.Fatal("no session row for the issued refresh token")
	}
	if session.UserID != 1 {
		t.Errorf("session user id = %d, want 1", session.UserID)
	}
	if session.Revoked() {
		t.Error("freshly created session is revoked")
	}

	if emitter.count(audit.ActionLogin) != 1 {
		t.Errorf("Login events = %d, want 1", emitter.count(audit.ActionLogin))
	}
}

func TestLoginAuditNeverAltersOutcome(t *testing.T) {
	user := activeUser(t, 1, "alice@example.com")
	userStore := newFakeUserStore(user)
	sessionStore := newFakeSessionStore()

	// The nop emitter drops everything; authentication must not care.
	svc := NewAuthService(userStore, sessionStore, newTestJWTService(), audit.NopEmitter{}, testLockout())

	if _, err := svc.Login(context.Background(), &dto.UserLoginRequest{
		Email:    "alice@example.com",
		Password: testPassword,
	}); err != nil {
		t.Fatalf("login failed with discarded audit events: %v", err)
	}
}
