package payment

import (
	"context"
	"sync"
	"time"
)

// tokenCache holds one bearer token and refreshes it shortly before expiry.
// The fetch runs without the lock held, so a concurrent reset never blocks
// on an in-flight token request.
type tokenCache struct {
	mu      sync.Mutex
	token   string
	expires time.Time
	now     func() time.Time
}

func (c *tokenCache) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

func (c *tokenCache) get(ctx context.Context, fetch func(context.Context) (string, time.Duration, error)) (string, error) {
	c.mu.Lock()
	if c.token != "" && c.clock().Before(c.expires) {
		tok := c.token
		c.mu.Unlock()
		return tok, nil
	}
	c.mu.Unlock()

	tok, ttl, err := fetch(ctx)
	if err != nil {
		return "", err
	}
	if ttl > time.Minute {
		ttl -= 30 * time.Second
	}

	c.mu.Lock()
	c.token = tok
	c.expires = c.clock().Add(ttl)
	c.mu.Unlock()
	return tok, nil
}

func (c *tokenCache) reset() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}
