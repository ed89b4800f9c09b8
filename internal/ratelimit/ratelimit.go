// Package ratelimit provides per-client request throttling for the API.
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	defaultBurst  = 20
	staleAfter    = 2 * time.Minute
	sweepInterval = time.Minute
)

// Limiter is a token-bucket limiter keyed by client identity. Buckets refill
// at rps tokens per second up to a fixed burst; idle buckets are swept
// periodically so memory stays bounded.
type Limiter struct {
	rps   float64
	burst float64

	mu      sync.Mutex
	buckets map[string]*bucket
	done    chan struct{}
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// New creates a limiter allowing rps sustained requests per second per
// client. Call Stop when done.
func New(rps int) *Limiter {
	l := &Limiter{
		rps:     float64(rps),
		burst:   defaultBurst,
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
	}
	go l.sweep()
	return l
}

// Stop terminates the background sweeper.
func (l *Limiter) Stop() {
	close(l.done)
}

// Allow reports whether the client identified by key may proceed.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &bucket{tokens: l.burst - 1, seen: now}
		return true
	}

	b.tokens += now.Sub(b.seen).Seconds() * l.rps
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	b.seen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (l *Limiter) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-staleAfter)
			l.mu.Lock()
			for key, b := range l.buckets {
				if b.seen.Before(cutoff) {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Middleware throttles requests by bearer token when present, falling back
// to client IP for unauthenticated traffic.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if token := c.GetHeader("Authorization"); len(token) > 7 {
			// Enough of the token to distinguish clients without keeping
			// whole credentials as map keys.
			key = token[:min(32, len(token))]
		}

		if !l.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests",
			})
			return
		}
		c.Next()
	}
}
