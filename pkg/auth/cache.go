package auth

import (
	"context"
	"sync"
	"time"
)

// safetyMargin is how long before actual expiry a cached token stops being
// served. Covers request latency to the upstream so a token that is valid
// when sent is still valid when checked there.
const safetyMargin = 5 * time.Second

// TokenSource issues access tokens. *Issuer is the production source; tests
// substitute fakes.
type TokenSource interface {
	Token(ctx context.Context) (*AccessToken, error)
}

// Cache is a single-slot token cache in front of a TokenSource. The slot is
// mutex-guarded, but issuance runs outside the lock: concurrent callers
// hitting an expired slot may each issue, and the last grant stored wins.
// The exchange is idempotent upstream, so the cost is a redundant request,
// not a correctness problem.
type Cache struct {
	source TokenSource

	// Clock is injectable for expiry tests; defaults to time.Now.
	clock func() time.Time

	mu   sync.Mutex
	slot *AccessToken
}

// NewCache returns an empty cache backed by source.
func NewCache(source TokenSource) *Cache {
	return &Cache{
		source: source,
		clock:  time.Now,
	}
}

// Token returns the cached token while it remains valid past the safety
// margin, issuing a replacement otherwise. Failed issuance leaves any
// existing slot untouched.
func (c *Cache) Token(ctx context.Context) (*AccessToken, error) {
	c.mu.Lock()
	if tok := c.slot; tok != nil && c.clock().Before(tok.ExpiresAt.Add(-safetyMargin)) {
		c.mu.Unlock()
		return tok, nil
	}
	c.mu.Unlock()

	tok, err := c.source.Token(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.slot = tok
	c.mu.Unlock()

	return tok, nil
}
