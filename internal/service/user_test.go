package service

import (
	"context"
	"testing"
	"time"

	"github.com/sandipay/auth-service/internal/audit"
	"github.com/sandipay/auth-service/internal/dto"
	apperrors "github.com/sandipay/auth-service/internal/errors"
	"github.com/sandipay/auth-service/internal/model"
	"golang.org/x/crypto/bcrypt"
)

func newUserFixture(t *testing.T, users ...*model.User) (*UserService, *fakeUserStore, *fakeSessionStore, *capturingEmitter) {
	t.Helper()
	userStore := newFakeUserStore(users...)
	sessionStore := newFakeSessionStore()
	emitter := &capturingEmitter{}
	svc := NewUserService(userStore, sessionStore, newTestJWTService(), emitter)
	return svc, userStore, sessionStore, emitter
}

func TestRegisterCreatesUserAndSession(t *testing.T) {
	svc, store, sessions, emitter := newUserFixture(t)

	resp, err := svc.Register(context.Background(), &dto.RegisterRequest{
		FirstName: "Alice",
		LastName:  "Smith",
		Email:     "alice@example.com",
		Username:  "alice",
		Password:  testPassword,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if resp.Token == "" || resp.RefreshToken == "" {
		t.Fatal("registration response missing tokens")
	}
	if resp.User.Role != "user" {
		t.Errorf("new account role = %q, want %q", resp.User.Role, "user")
	}

	created, err := store.GetByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("created user not stored: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(created.Password), []byte(testPassword)) != nil {
		t.Error("stored password hash does not match the registered password")
	}

	if sessions.get(HashRefreshToken(resp.RefreshToken)) == nil {
		t.Error("no session row for the first refresh token")
	}
	if emitter.count(audit.ActionRegister) != 1 {
		t.Errorf("Register events = %d, want 1", emitter.count(audit.ActionRegister))
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	existing := activeUser(t, 1, "alice@example.com")
	svc, _, _, _ := newUserFixture(t, existing)

	_, err := svc.Register(context.Background(), &dto.RegisterRequest{
		FirstName: "Other",
		LastName:  "Alice",
		Email:     "alice@example.com",
		Username:  "alice2",
		Password:  testPassword,
	})
	if err != apperrors.ErrEmailExists {
		t.Errorf("duplicate email returned %v, want ErrEmailExists", err)
	}
}

func TestRegisterRejectsMalformedInput(t *testing.T) {
	svc, _, sessions, _ := newUserFixture(t)

	cases := []struct {
		name     string
		username string
		password string
	}{
		{"username too short", "al", testPassword},
		{"username with spaces", "alice smith", testPassword},
		{"username with shell chars", "alice;drop", testPassword},
		{"password too short", "alice", "short"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), &dto.RegisterRequest{
				FirstName: "Alice",
				LastName:  "Smith",
				Email:     "alice@example.com",
				Username:  tc.username,
				Password:  tc.password,
			})
			if err != apperrors.ErrInvalidInput {
				t.Errorf("Register returned %v, want ErrInvalidInput", err)
			}
		})
	}

	if len(sessions.sessions) != 0 {
		t.Errorf("rejected registrations opened %d sessions", len(sessions.sessions))
	}
}

func TestLogoutRevokesSessionAndAdvancesWatermark(t *testing.T) {
	user := activeUser(t, 1, "alice@example.com")
	svc, store, sessions, emitter := newUserFixture(t, user)

	refreshToken := issueSession(t, newTestJWTService(), sessions, user)
	digest := HashRefreshToken(refreshToken)

	if err := svc.Logout(context.Background(), refreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	if session := sessions.get(digest); session == nil || !session.Revoked() {
		t.Error("session row not revoked by logout")
	}
	if store.watermarkCalls != 1 {
		t.Errorf("watermarkCalls = %d, want 1", store.watermarkCalls)
	}
	if store.users[1].LastTokenIssuedAt == nil {
		t.Error("last_token_issued_at not set by logout")
	}
	if emitter.count(audit.ActionLogout) != 1 {
		t.Errorf("Logout events = %d, want 1", emitter.count(audit.ActionLogout))
	}

	// Second logout with the same token is rejected
	if err := svc.Logout(context.Background(), refreshToken); err != apperrors.ErrTokenInvalid {
		t.Errorf("replayed logout returned %v, want ErrTokenInvalid", err)
	}
}

func TestLogoutAllRevokesEverySession(t *testing.T) {
	user := activeUser(t, 1, "alice@example.com")
	svc, store, sessions, emitter := newUserFixture(t, user)
	jwtSvc := newTestJWTService()

	first := issueSession(t, jwtSvc, sessions, user)
	second := issueSession(t, jwtSvc, sessions, user)

	if err := svc.LogoutAll(context.Background(), 1); err != nil {
		t.Fatalf("LogoutAll: %v", err)
	}

	for _, token := range []string{first, second} {
		if session := sessions.get(HashRefreshToken(token)); session == nil || !session.Revoked() {
			t.Error("session survived logout-all")
		}
	}
	if store.watermarkCalls != 1 {
		t.Errorf("watermarkCalls = %d, want exactly 1", store.watermarkCalls)
	}
	if emitter.count(audit.ActionLogout) != 1 {
		t.Errorf("Logout events = %d, want 1", emitter.count(audit.ActionLogout))
	}
	if emitter.events[0].Metadata["all_devices"] != true {
		t.Error("logout-all event not tagged all_devices")
	}
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	user := activeUser(t, 1, "alice@example.com")
	svc, store, sessions, emitter := newUserFixture(t, user)

	refreshToken := issueSession(t, newTestJWTService(), sessions, user)

	err := svc.ChangePassword(context.Background(), 1, &dto.ChangePasswordRequest{
		CurrentPassword: testPassword,
		NewPassword:     "entirely-new-secret",
		ConfirmPassword: "entirely-new-secret",
	})
	if err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	stored := store.users[1]
	if stored.PasswordChangedAt == nil {
		t.Error("password_changed_at not set")
	}
	if bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("entirely-new-secret")) != nil {
		t.Error("stored hash does not match the new password")
	}
	if session := sessions.get(HashRefreshToken(refreshToken)); session == nil || !session.Revoked() {
		t.Error("existing session survived the password change")
	}
	if emitter.count(audit.ActionChangePassword) != 1 {
		t.Errorf("ChangePassword events = %d, want 1", emitter.count(audit.ActionChangePassword))
	}
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	user := activeUser(t, 1, "alice@example.com")
	svc, store, _, _ := newUserFixture(t, user)

	err := svc.ChangePassword(context.Background(), 1, &dto.ChangePasswordRequest{
		CurrentPassword: "not-the-password",
		NewPassword:     "entirely-new-secret",
		ConfirmPassword: "entirely-new-secret",
	})
	if err != apperrors.ErrIncorrectPassword {
		t.Errorf("wrong current password returned %v, want ErrIncorrectPassword", err)
	}
	if store.users[1].PasswordChangedAt != nil {
		t.Error("password changed despite failed verification")
	}
}

func TestChangePasswordConfirmationMismatch(t *testing.T) {
	user := activeUser(t, 1, "alice@example.com")
	svc, _, _, _ := newUserFixture(t, user)

	err := svc.ChangePassword(context.Background(), 1, &dto.ChangePasswordRequest{
		CurrentPassword: testPassword,
		NewPassword:     "entirely-new-secret",
		ConfirmPassword: "different-secret",
	})
	if err != apperrors.ErrPasswordMismatch {
		t.Errorf("mismatched confirmation returned %v, want ErrPasswordMismatch", err)
	}
}

// Retired access tokens must fail the revocation gate after logout.
func TestWatermarkRejectsOldTokensAfterLogout(t *testing.T) {
	user := activeUser(t, 1, "alice@example.com")
	svc, store, sessions, _ := newUserFixture(t, user)
	jwtSvc := newTestJWTService()

	// Access token minted before logout
	issuedAt := time.Now().UTC().Add(-2 * time.Second)
	accessToken, err := jwtSvc.GenerateAccessToken(user, issuedAt)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	refreshToken := issueSession(t, jwtSvc, sessions, user)
	if err := svc.Logout(context.Background(), refreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	claims, err := jwtSvc.ValidateAccessToken(accessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}

	gate := NewRevocationGate()
	if err := gate.Accept(claims, store.users[1]); err == nil {
		t.Error("access token minted before logout passed the revocation gate")
	}
}
