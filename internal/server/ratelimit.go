package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimitError reports a rejected request.
type RateLimitError struct {
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %d requests per window, retry after %s", e.Limit, e.RetryAfter.Round(time.Second))
}

// RateLimiter allows limit requests per client in each fixed window.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	clients map[string]*clientWindow
}

type clientWindow struct {
	start time.Time
	count int
}

// NewRateLimiter creates a limiter allowing limit requests per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{limit: limit, window: window, clients: make(map[string]*clientWindow)}
}

// Allow records a request from client at now, or returns why it is rejected.
func (rl *RateLimiter) Allow(client string, now time.Time) *RateLimitError {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.clients[client]
	if !ok || now.Sub(w.start) >= rl.window {
		rl.clients[client] = &clientWindow{start: now, count: 1}
		rl.evict(now)
		return nil
	}
	if w.count >= rl.limit {
		return &RateLimitError{Limit: rl.limit, RetryAfter: w.start.Add(rl.window).Sub(now)}
	}
	w.count++
	return nil
}

// evict drops expired windows once the table grows.
func (rl *RateLimiter) evict(now time.Time) {
	if len(rl.clients) < 1024 {
		return
	}
	for k, w := range rl.clients {
		if now.Sub(w.start) >= rl.window {
			delete(rl.clients, k)
		}
	}
}
