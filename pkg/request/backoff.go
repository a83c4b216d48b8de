package request

import (
	"context"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// ProviderBackoff spaces out retries per provider. Each failure doubles the
// pause up to maxDelay; a server-sent Retry-After longer than that wins.
// Successes pay the failure count back one at a time.
type ProviderBackoff struct {
	mu        sync.Mutex
	pauses    map[string]*pause
	baseDelay time.Duration
	maxDelay  time.Duration
	now       func() time.Time
}

type pause struct {
	failures int
	until    time.Time
}

// NewProviderBackoff creates a backoff with the given first and largest pause.
func NewProviderBackoff(baseDelay, maxDelay time.Duration) *ProviderBackoff {
	return &ProviderBackoff{
		pauses:    make(map[string]*pause),
		baseDelay: baseDelay,
		maxDelay:  maxDelay,
		now:       time.Now,
	}
}

// Wait blocks while provider is paused, or until ctx ends.
func (b *ProviderBackoff) Wait(ctx context.Context, provider string) error {
	b.mu.Lock()
	var until time.Time
	if p, ok := b.pauses[provider]; ok {
		until = p.until
	}
	d := until.Sub(b.now())
	b.mu.Unlock()

	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecordFailure pauses provider. retryAfter is the server's own hint, zero if none.
func (b *ProviderBackoff) RecordFailure(provider string, retryAfter time.Duration) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.pauses[provider]
	if !ok {
		p = &pause{}
		b.pauses[provider] = p
	}
	p.failures++

	d := b.delay(p.failures)
	if retryAfter > d {
		d = retryAfter
	}
	p.until = b.now().Add(d)
	return d
}

// RecordSuccess forgives one failure and lifts the pause once none are left.
func (b *ProviderBackoff) RecordSuccess(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.pauses[provider]
	if !ok {
		return
	}
	if p.failures > 0 {
		p.failures--
	}
	if p.failures == 0 {
		delete(b.pauses, provider)
	}
}

// delay is baseDelay * 2^(failures-1), capped, plus up to 10% jitter.
func (b *ProviderBackoff) delay(failures int) time.Duration {
	d := time.Duration(float64(b.baseDelay) * math.Pow(2, float64(failures-1)))
	if d > b.maxDelay || d <= 0 {
		d = b.maxDelay
	}
	return d + time.Duration(rand.Float64()*0.1*float64(d))
}

// State reports the failure count and the end of the current pause.
func (b *ProviderBackoff) State(provider string) (failures int, until time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.pauses[provider]; ok {
		return p.failures, p.until
	}
	return 0, time.Time{}
}

// RetryAfter parses a Retry-After header given in seconds or as an HTTP date.
// Unparseable or past values yield zero.
func RetryAfter(h http.Header, now time.Time) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
