package service

import (
	"context"
	"strings"
	"sync"
	"time"
)

const (
	DefaultMaxAttempts  = 3
	DefaultLockDuration = 5 * time.Minute

	defaultMaxRecords = 5000
)

// BruteForceGuard counts failed logins per username and locks the
// username for a fixed duration once the limit is reached.
type BruteForceGuard interface {
	// RegisterFailedAttempt returns true when this attempt triggered the lock.
	RegisterFailedAttempt(ctx context.Context, username string) (bool, error)
	IsLocked(ctx context.Context, username string) (bool, error)
	ResetAttempts(ctx context.Context, username string) error
	Attempts(ctx context.Context, username string) (int, error)
}

type bruteForceRecord struct {
	attempts    int
	lastFailure time.Time
	lockedAt    time.Time
}

// MemoryBruteForceGuard is the process-local guard. State is lost on
// restart and is not shared between instances.
type MemoryBruteForceGuard struct {
	mu           sync.Mutex
	records      map[string]*bruteForceRecord
	maxAttempts  int
	lockDuration time.Duration
	maxRecords   int
	now          func() time.Time
}

func NewMemoryBruteForceGuard(maxAttempts int, lockDuration time.Duration) *MemoryBruteForceGuard {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if lockDuration <= 0 {
		lockDuration = DefaultLockDuration
	}
	return &MemoryBruteForceGuard{
		records:      make(map[string]*bruteForceRecord),
		maxAttempts:  maxAttempts,
		lockDuration: lockDuration,
		maxRecords:   defaultMaxRecords,
		now:          time.Now,
	}
}

func (g *MemoryBruteForceGuard) WithClock(now func() time.Time) *MemoryBruteForceGuard {
	g.now = now
	return g
}

func (g *MemoryBruteForceGuard) RegisterFailedAttempt(ctx context.Context, username string) (bool, error) {
	key := guardKey(username)
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[key]
	if !ok || g.stale(rec, now) {
		rec = &bruteForceRecord{}
		g.records[key] = rec
	}

	rec.attempts++
	rec.lastFailure = now

	justLocked := false
	if rec.lockedAt.IsZero() && rec.attempts >= g.maxAttempts {
		rec.lockedAt = now
		justLocked = true
	}

	if len(g.records) > g.maxRecords {
		g.sweep(now)
	}
	return justLocked, nil
}

// IsLocked clears the record when the lock window has elapsed.
func (g *MemoryBruteForceGuard) IsLocked(ctx context.Context, username string) (bool, error) {
	key := guardKey(username)
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[key]
	if !ok {
		return false, nil
	}
	if g.stale(rec, now) {
		delete(g.records, key)
		return false, nil
	}
	return !rec.lockedAt.IsZero(), nil
}

func (g *MemoryBruteForceGuard) ResetAttempts(ctx context.Context, username string) error {
	g.mu.Lock()
	delete(g.records, guardKey(username))
	g.mu.Unlock()
	return nil
}

func (g *MemoryBruteForceGuard) Attempts(ctx context.Context, username string) (int, error) {
	key := guardKey(username)
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[key]
	if !ok || g.stale(rec, now) {
		return 0, nil
	}
	return rec.attempts, nil
}

// stale: a lock older than lockDuration, or an unlocked counter whose
// last failure is older than lockDuration.
func (g *MemoryBruteForceGuard) stale(rec *bruteForceRecord, now time.Time) bool {
	if !rec.lockedAt.IsZero() {
		return now.Sub(rec.lockedAt) >= g.lockDuration
	}
	return now.Sub(rec.lastFailure) >= g.lockDuration
}

func (g *MemoryBruteForceGuard) sweep(now time.Time) {
	for key, rec := range g.records {
		if g.stale(rec, now) {
			delete(g.records, key)
		}
	}
}

func guardKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
