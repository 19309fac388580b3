package auth

import (
	"strings"
	"sync"
	"time"
)

// RateLimiter throttles sign-in attempts per client IP and email using a
// fixed window. It complements the per-account lockout in Service, which
// cannot see attempts against unknown emails.
type RateLimiter struct {
	mu       sync.Mutex
	attempts map[string]*attemptWindow
	cfg      RateLimitConfig
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

type attemptWindow struct {
	count       int
	start       time.Time
	lockedUntil time.Time
}

type RateLimitConfig struct {
	MaxAttempts     int
	WindowDuration  time.Duration
	LockoutDuration time.Duration
	CleanupInterval time.Duration
}

// NewRateLimiter starts a limiter with its background cleanup. Zero config
// values fall back to 5 attempts per 15 minutes with a 30 minute lockout.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.WindowDuration <= 0 {
		cfg.WindowDuration = 15 * time.Minute
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = 30 * time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}

	rl := &RateLimiter{
		attempts: make(map[string]*attemptWindow),
		cfg:      cfg,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func limiterKey(ip, email string) string {
	return ip + "|" + strings.ToLower(strings.TrimSpace(email))
}

// Allow reports whether another attempt may be made now, and if not, how
// long the caller has to wait.
func (rl *RateLimiter) Allow(ip, email string) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.attempts[limiterKey(ip, email)]
	if !ok {
		return true, 0
	}
	if now.Before(w.lockedUntil) {
		return false, w.lockedUntil.Sub(now)
	}
	if now.Sub(w.start) > rl.cfg.WindowDuration {
		return true, 0
	}
	return w.count < rl.cfg.MaxAttempts, 0
}

// RecordFailure counts a failed attempt and reports whether it triggered a lockout.
func (rl *RateLimiter) RecordFailure(ip, email string) bool {
	key := limiterKey(ip, email)
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.attempts[key]
	if !ok || now.Sub(w.start) > rl.cfg.WindowDuration {
		w = &attemptWindow{start: now}
		rl.attempts[key] = w
	}

	w.count++
	if w.count >= rl.cfg.MaxAttempts {
		w.lockedUntil = now.Add(rl.cfg.LockoutDuration)
		return true
	}
	return false
}

// RecordSuccess forgets earlier failures.
func (rl *RateLimiter) RecordSuccess(ip, email string) {
	rl.mu.Lock()
	delete(rl.attempts, limiterKey(ip, email))
	rl.mu.Unlock()
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, w := range rl.attempts {
		if now.Sub(w.start) > rl.cfg.WindowDuration && !now.Before(w.lockedUntil) {
			delete(rl.attempts, key)
		}
	}
}
