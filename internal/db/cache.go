package db

import (
	"context"
	"time"

	"github.com/gym-crm/auth-backend/internal/model"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

type userFinder interface {
	FindByUsername(ctx context.Context, username string) (*model.Principal, error)
}

// CachedDirectory memoizes principal lookups for a short TTL so the
// per-request gate does not hit the database on every call. Misses are
// not cached.
type CachedDirectory struct {
	next  userFinder
	cache *expirable.LRU[string, model.Principal]
}

func NewCachedDirectory(next userFinder, size int, ttl time.Duration) *CachedDirectory {
	if size <= 0 {
		size = 1024
	}
	return &CachedDirectory{
		next:  next,
		cache: expirable.NewLRU[string, model.Principal](size, nil, ttl),
	}
}

func (c *CachedDirectory) FindByUsername(ctx context.Context, username string) (*model.Principal, error) {
	if p, ok := c.cache.Get(username); ok {
		return clonePrincipal(&p), nil
	}

	p, err := c.next.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	c.cache.Add(username, *clonePrincipal(p))
	return p, nil
}

// Forget drops a cached principal, e.g. after an administrator action.
func (c *CachedDirectory) Forget(username string) {
	c.cache.Remove(username)
}
