package processor

import (
	"context"
	"sync"
	"time"

	"payment_validator/internal/domain"
	"payment_validator/internal/repository"

	"golang.org/x/sync/singleflight"
)

const (
	maxCachedStatuses = 50_000
	lookupTimeout     = 5 * time.Second
)

type statusEntry struct {
	status  domain.AccountStatus
	expires time.Time
}

// StatusCache fronts AccountService status lookups. Concurrent misses for
// the same account share one call; entries are served for at most ttl.
type StatusCache struct {
	accounts repository.AccountService
	ttl      time.Duration
	now      func() time.Time
	mu       sync.RWMutex
	entries  map[string]statusEntry
	group    singleflight.Group
}

func NewStatusCache(accounts repository.AccountService, ttl time.Duration) *StatusCache {
	return &StatusCache{
		accounts: accounts,
		ttl:      ttl,
		now:      time.Now,
		entries:  make(map[string]statusEntry),
	}
}

func (c *StatusCache) Status(ctx context.Context, accountID string) (domain.AccountStatus, error) {
	if c.ttl > 0 {
		c.mu.RLock()
		e, ok := c.entries[accountID]
		c.mu.RUnlock()
		if ok && c.now().Before(e.expires) {
			return e.status, nil
		}
	}

	ch := c.group.DoChan(accountID, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()

		status, err := c.accounts.GetAccountStatus(lookupCtx, accountID)
		if err != nil {
			return nil, err
		}
		c.store(accountID, status)
		return status, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(domain.AccountStatus), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *StatusCache) Invalidate(accountIDs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range accountIDs {
		delete(c.entries, id)
	}
}

func (c *StatusCache) store(accountID string, status domain.AccountStatus) {
	if c.ttl <= 0 {
		return
	}

	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= maxCachedStatuses {
		for id, e := range c.entries {
			if !now.Before(e.expires) {
				delete(c.entries, id)
			}
		}
		if len(c.entries) >= maxCachedStatuses {
			clear(c.entries)
		}
	}
	c.entries[accountID] = statusEntry{status: status, expires: now.Add(c.ttl)}
}
