package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrGuardUnavailable = errors.New("brute-force backend unavailable")

// KEYS[1] = attempts key, KEYS[2] = lock key
// ARGV[1] = max attempts, ARGV[2] = lock duration (ms), ARGV[3] = now (unix ms)
//
// The counter window restarts on every failure, like the memory guard.
// Returns {attempts, justLocked}.
var registerFailureLua = redis.NewScript(`
local attempts = redis.call('INCR', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
if attempts >= tonumber(ARGV[1]) then
  if redis.call('SET', KEYS[2], ARGV[3], 'NX', 'PX', ARGV[2]) then
    return {attempts, 1}
  end
end
return {attempts, 0}
`)

// KEYS[1] = attempts key, KEYS[2] = lock key
// ARGV[1] = max attempts
//
// Returns 1 while locked. Once the lock key has expired a counter left at
// or above the limit is cleared.
var isLockedLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 1 then
  return 1
end
local attempts = tonumber(redis.call('GET', KEYS[1]) or '0')
if attempts >= tonumber(ARGV[1]) then
  redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisBruteForceGuard shares lockout state between instances. Key
// expiry in Redis replaces the lazy clock comparison of the memory guard.
type RedisBruteForceGuard struct {
	redis        redis.UniversalClient
	maxAttempts  int
	lockDuration time.Duration
}

func NewRedisBruteForceGuard(client redis.UniversalClient, maxAttempts int, lockDuration time.Duration) *RedisBruteForceGuard {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if lockDuration <= 0 {
		lockDuration = DefaultLockDuration
	}
	return &RedisBruteForceGuard{
		redis:        client,
		maxAttempts:  maxAttempts,
		lockDuration: lockDuration,
	}
}

func (g *RedisBruteForceGuard) attemptsKey(username string) string {
	return "bf:attempts:" + guardKey(username)
}

func (g *RedisBruteForceGuard) lockKey(username string) string {
	return "bf:lock:" + guardKey(username)
}

func (g *RedisBruteForceGuard) RegisterFailedAttempt(ctx context.Context, username string) (bool, error) {
	res, err := registerFailureLua.Run(ctx, g.redis,
		[]string{g.attemptsKey(username), g.lockKey(username)},
		g.maxAttempts,
		g.lockDuration.Milliseconds(),
		time.Now().UnixMilli(),
	).Int64Slice()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrGuardUnavailable, err)
	}
	if len(res) != 2 {
		return false, fmt.Errorf("%w: unexpected script reply %v", ErrGuardUnavailable, res)
	}
	return res[1] == 1, nil
}

func (g *RedisBruteForceGuard) IsLocked(ctx context.Context, username string) (bool, error) {
	locked, err := isLockedLua.Run(ctx, g.redis,
		[]string{g.attemptsKey(username), g.lockKey(username)},
		g.maxAttempts,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrGuardUnavailable, err)
	}
	return locked == 1, nil
}

func (g *RedisBruteForceGuard) ResetAttempts(ctx context.Context, username string) error {
	if err := g.redis.Del(ctx, g.attemptsKey(username), g.lockKey(username)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrGuardUnavailable, err)
	}
	return nil
}

func (g *RedisBruteForceGuard) Attempts(ctx context.Context, username string) (int, error) {
	value, err := g.redis.Get(ctx, g.attemptsKey(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrGuardUnavailable, err)
	}
	attempts, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: corrupt counter %q", ErrGuardUnavailable, value)
	}
	return attempts, nil
}
