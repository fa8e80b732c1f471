package executor

import (
	"context"
	"sync"
	"time"
)

// tokenBucket is the per-account call budget. Workers take one token per
// remote call and wait for refill when the account's budget is exhausted.
type tokenBucket struct {
	mu     sync.Mutex
	tokens float64
	cap    float64
	rate   float64 // tokens per second
	last   time.Time
}

func newTokenBucket(capacity int, perSecond float64) *tokenBucket {
	return &tokenBucket{
		tokens: float64(capacity),
		cap:    float64(capacity),
		rate:   perSecond,
		last:   time.Now(),
	}
}

// take blocks until a token is available or ctx is done.
func (b *tokenBucket) take(ctx context.Context) error {
	for {
		b.mu.Lock()
		now := time.Now()
		b.tokens += now.Sub(b.last).Seconds() * b.rate
		if b.tokens > b.cap {
			b.tokens = b.cap
		}
		b.last = now
		if b.tokens >= 1 {
			b.tokens--
			b.mu.Unlock()
			return nil
		}
		wait := time.Duration((1 - b.tokens) / b.rate * float64(time.Second))
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
