package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gym-crm/auth-backend/internal/db"
	"github.com/gym-crm/auth-backend/internal/model"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-that-is-long-enough-for-hs256"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	clock     *fakeClock
	codec     *TokenCodec
	store     *db.MemoryStore
	lifecycle *TokenLifecycle
	guard     *MemoryBruteForceGuard
	auth      *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := newFakeClock()
	codec, err := NewTokenCodec(testSecret, "")
	require.NoError(t, err)
	codec.WithClock(clock.Now)

	store := db.NewMemoryStore()
	lifecycle, err := NewTokenLifecycle(codec, store, store, 15*time.Minute, 24*time.Hour, nil)
	require.NoError(t, err)

	guard := NewMemoryBruteForceGuard(DefaultMaxAttempts, DefaultLockDuration).WithClock(clock.Now)

	return &testEnv{
		clock:     clock,
		codec:     codec,
		store:     store,
		lifecycle: lifecycle,
		guard:     guard,
		auth:      NewAuthService(store, lifecycle, guard, nil),
	}
}

func (e *testEnv) addUser(t *testing.T, username, password string, role model.Role) *model.Principal {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	p, err := e.store.CreateUser(context.Background(), username, string(hash), role)
	require.NoError(t, err)
	return p
}
