package providers

import (
	"context"
	"errors"
	"sync"
	"time"
)

// RateLimiter is a token bucket refilled continuously at a requests-per-minute
// rate. The bucket holds at most one minute's worth of tokens.
type RateLimiter struct {
	mu sync.Mutex

	perMinute  int
	tokens     float64
	lastRefill time.Time
	now        func() time.Time

	consumed int64
	waited   time.Duration
}

// NewRateLimiter creates a limiter that starts with a full bucket.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return &RateLimiter{
		perMinute:  requestsPerMinute,
		tokens:     float64(requestsPerMinute),
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refill()
		if r.tokens >= 1 {
			r.tokens--
			r.consumed++
			r.mu.Unlock()
			return nil
		}
		wait := r.untilNextToken()
		r.mu.Unlock()

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
			r.mu.Lock()
			r.waited += wait
			r.mu.Unlock()
		}
	}
}

// Drain empties the bucket, e.g. after the server answered 429.
func (r *RateLimiter) Drain() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refill()
	r.tokens = 0
}

// Stats returns the number of tokens handed out and the total time spent
// waiting for them.
func (r *RateLimiter) Stats() (consumed int64, waited time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.consumed, r.waited
}

// refill must be called with the lock held.
func (r *RateLimiter) refill() {
	now := r.now()
	elapsed := now.Sub(r.lastRefill).Minutes()
	r.lastRefill = now
	r.tokens = min(r.tokens+elapsed*float64(r.perMinute), float64(r.perMinute))
}

// untilNextToken must be called with the lock held.
func (r *RateLimiter) untilNextToken() time.Duration {
	missing := 1 - r.tokens
	return time.Duration(missing / float64(r.perMinute) * float64(time.Minute))
}

// LimitedClient wraps an LLMClient with a request rate limit.
type LimitedClient struct {
	LLMClient
	limiter *RateLimiter
}

// WithRateLimit limits client to requestsPerMinute. A non-positive rate
// returns client unchanged.
func WithRateLimit(client LLMClient, requestsPerMinute int) LLMClient {
	if requestsPerMinute <= 0 {
		return client
	}
	return &LimitedClient{LLMClient: client, limiter: NewRateLimiter(requestsPerMinute)}
}

// Limiter returns the underlying rate limiter.
func (c *LimitedClient) Limiter() *RateLimiter {
	return c.limiter
}

// Chat waits for a token, then forwards the request. A rate-limit response
// drains the bucket so the next calls back off.
func (c *LimitedClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	result, err := c.LLMClient.Chat(ctx, req)
	var rl *RateLimitError
	if errors.As(err, &rl) {
		c.limiter.Drain()
	}
	return result, err
}
