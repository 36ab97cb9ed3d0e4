package service

import (
	"context"
	"sync"
	"time"

	"github.com/sandipay/auth-service/internal/audit"
	apperrors "github.com/sandipay/auth-service/internal/errors"
	"github.com/sandipay/auth-service/internal/model"
	"github.com/sandipay/auth-service/internal/repository"
	"gorm.io/gorm"
)

// fakeUserStore keeps users in memory and mimics the counter and
// watermark mutations of the real repository.
type fakeUserStore struct {
	mu    sync.Mutex
	users map[uint]*model.User

	recordCalls    int
	lockCalls      int
	clearCalls     int
	resetCalls     int
	watermarkCalls int
}

func newFakeUserStore(users ...*model.User) *fakeUserStore {
	s := &fakeUserStore{users: make(map[uint]*model.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *fakeUserStore) GetByID(ctx context.Context, id uint) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *fakeUserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *fakeUserStore) Create(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.ID = uint(len(s.users) + 1)
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (s *fakeUserStore) RecordFailedAttempt(ctx context.Context, id uint, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordCalls++
	user := s.users[id]
	user.FailedLoginAttempts++
	user.LastFailedLoginAt = &at
	return user.FailedLoginAttempts, nil
}

func (s *fakeUserStore) LockAccount(ctx context.Context, id uint, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockCalls++
	s.users[id].LockedUntil = &until
	return nil
}

func (s *fakeUserStore) ClearExpiredLock(ctx context.Context, id uint, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearCalls++
	user := s.users[id]
	if user.LockedUntil != nil && !user.LockedUntil.After(now) {
		user.FailedLoginAttempts = 0
		user.LockedUntil = nil
	}
	return nil
}

func (s *fakeUserStore) ResetFailedAttempts(ctx context.Context, id uint, loginAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetCalls++
	user := s.users[id]
	user.FailedLoginAttempts = 0
	user.LastFailedLoginAt = nil
	user.LockedUntil = nil
	user.LastLoginAt = &loginAt
	return nil
}

func (s *fakeUserStore) UpdatePassword(ctx context.Context, id uint, hashedPassword string, changedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[id]
	user.Password = hashedPassword
	user.PasswordChangedAt = &changedAt
	return nil
}

func (s *fakeUserStore) AdvanceTokenWatermark(ctx context.Context, id uint, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watermarkCalls++
	user := s.users[id]
	if user.LastTokenIssuedAt == nil || user.LastTokenIssuedAt.Before(at) {
		user.LastTokenIssuedAt = &at
	}
	return nil
}

// fakeSessionStore mirrors the real store's rotation semantics: rows
// are keyed by digest, revocation is terminal, and a contended flag
// simulates losing the row lock to a concurrent rotation.
type fakeSessionStore struct {
	mu        sync.Mutex
	sessions  map[string]*model.Session
	contended bool
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*model.Session)}
}

func (s *fakeSessionStore) Create(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *session
	s.sessions[session.RefreshTokenDigest] = &copied
	return nil
}

func (s *fakeSessionStore) Rotate(ctx context.Context, digest string, now time.Time, fn repository.RotateFunc) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.contended {
		return nil, apperrors.ErrLockContention
	}

	current, ok := s.sessions[digest]
	if !ok {
		return nil, apperrors.ErrTokenInvalid
	}
	if current.Revoked() {
		return nil, apperrors.ErrSessionRevoked
	}
	if current.Expired(now) {
		return nil, apperrors.ErrTokenExpired
	}

	copied := *current
	next, err := fn(ctx, &copied)
	if err != nil {
		return nil, err
	}

	revokedAt := now
	current.RevokedAt = &revokedAt
	stored := *next
	s.sessions[next.RefreshTokenDigest] = &stored
	return next, nil
}

func (s *fakeSessionStore) RevokeByDigest(ctx context.Context, digest string, now time.Time) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[digest]
	if !ok || session.Revoked() {
		return nil, apperrors.ErrTokenInvalid
	}
	revokedAt := now
	session.RevokedAt = &revokedAt
	copied := *session
	return &copied, nil
}

func (s *fakeSessionStore) RevokeAllByUser(ctx context.Context, userID uint, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, session := range s.sessions {
		if session.UserID == userID && !session.Revoked() {
			revokedAt := now
			session.RevokedAt = &revokedAt
			count++
		}
	}
	return count, nil
}

func (s *fakeSessionStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for digest, session := range s.sessions {
		if session.ExpiresAt.Before(before) {
			delete(s.sessions, digest)
			count++
		}
	}
	return count, nil
}

func (s *fakeSessionStore) get(digest string) *model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[digest]
}

// capturingEmitter records events for assertions.
type capturingEmitter struct {
	mu     sync.Mutex
	events []audit.Event
}

func (e *capturingEmitter) Emit(ctx context.Context, event audit.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

func (e *capturingEmitter) Close() {}

func (e *capturingEmitter) actions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	actions := make([]string, len(e.events))
	for i, event := range e.events {
		actions[i] = event.Action
	}
	return actions
}

func (e *capturingEmitter) count(action string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, event := range e.events {
		if event.Action == action {
			n++
		}
	}
	return n
}
