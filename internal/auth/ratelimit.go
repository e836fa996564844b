package auth

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// LoginLimiter throttles failed logins per client IP and account email
// using a fixed window followed by a lockout.
type LoginLimiter struct {
	mu              sync.Mutex
	attempts        map[string]*attemptRecord
	maxAttempts     int
	windowDuration  time.Duration
	lockoutDuration time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

type attemptRecord struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

// LimitConfig contains configuration for the login limiter.
type LimitConfig struct {
	MaxAttempts     int           // Failures before lockout (default: 5)
	WindowDuration  time.Duration // Window for counting failures (default: 15m)
	LockoutDuration time.Duration // Lockout after MaxAttempts failures (default: 30m)
	CleanupInterval time.Duration // How often expired records are dropped (default: 5m)
}

// DefaultLimitConfig returns the limits used by the server.
func DefaultLimitConfig() LimitConfig {
	return LimitConfig{
		MaxAttempts:     5,
		WindowDuration:  15 * time.Minute,
		LockoutDuration: 30 * time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// NewLoginLimiter creates a limiter and starts its cleanup loop. Call Stop to end it.
func NewLoginLimiter(cfg LimitConfig) *LoginLimiter {
	defaults := DefaultLimitConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.WindowDuration <= 0 {
		cfg.WindowDuration = defaults.WindowDuration
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = defaults.LockoutDuration
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaults.CleanupInterval
	}

	l := &LoginLimiter{
		attempts:        make(map[string]*attemptRecord),
		maxAttempts:     cfg.MaxAttempts,
		windowDuration:  cfg.WindowDuration,
		lockoutDuration: cfg.LockoutDuration,
		cleanupInterval: cfg.CleanupInterval,
		now:             time.Now,
		stopCleanup:     make(chan struct{}),
	}

	go l.cleanupLoop()

	return l
}

// Stop ends the background cleanup goroutine. Safe to call more than once.
func (l *LoginLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCleanup) })
}

func limitKey(ip, email string) string {
	return ip + "|" + strings.ToLower(strings.TrimSpace(email))
}

// Allow reports whether another login attempt is accepted, and if not, how long
// the caller must wait.
func (l *LoginLimiter) Allow(ip, email string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	record, exists := l.attempts[limitKey(ip, email)]
	if !exists {
		return true, 0
	}

	if !record.lockedUntil.IsZero() {
		if now.Before(record.lockedUntil) {
			return false, record.lockedUntil.Sub(now)
		}
		return true, 0
	}

	if now.Sub(record.firstAttempt) > l.windowDuration {
		return true, 0
	}

	return record.count < l.maxAttempts, 0
}

// RecordFailure counts a failed login. It returns true and the lockout length
// when this failure triggers a lockout.
func (l *LoginLimiter) RecordFailure(ip, email string) (bool, time.Duration) {
	key := limitKey(ip, email)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	record, exists := l.attempts[key]
	if !exists {
		record = &attemptRecord{firstAttempt: now}
		l.attempts[key] = record
	}

	// A finished window or an expired lockout starts a new count.
	expired := now.Sub(record.firstAttempt) > l.windowDuration
	unlocked := !record.lockedUntil.IsZero() && !now.Before(record.lockedUntil)
	if expired || unlocked {
		record.count = 0
		record.firstAttempt = now
		record.lockedUntil = time.Time{}
	}

	record.count++

	if record.count >= l.maxAttempts {
		record.lockedUntil = now.Add(l.lockoutDuration)
		return true, l.lockoutDuration
	}

	return false, 0
}

// RecordSuccess clears the failure record after a successful login.
func (l *LoginLimiter) RecordSuccess(ip, email string) {
	l.mu.Lock()
	delete(l.attempts, limitKey(ip, email))
	l.mu.Unlock()
}

func (l *LoginLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCleanup:
			return
		}
	}
}

func (l *LoginLimiter) cleanup() {
	now := l.now()
	expiry := l.windowDuration + l.lockoutDuration

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, record := range l.attempts {
		windowExpired := now.Sub(record.firstAttempt) > expiry
		lockoutExpired := record.lockedUntil.IsZero() || now.After(record.lockedUntil)

		if windowExpired && lockoutExpired {
			delete(l.attempts, key)
		}
	}
}

// size returns the number of tracked keys.
func (l *LoginLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.attempts)
}

// Middleware guards a login route. It reads the "email" form field, rejects
// locked-out callers with 429 and records the outcome from the response status.
func (l *LoginLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		ip := c.ClientIP()
		email := c.PostForm("email")
		if email == "" {
			c.Next()
			return
		}

		if allowed, retryAfter := l.Allow(ip, email); !allowed {
			abortTooManyAttempts(c, retryAfter)
			return
		}

		c.Next()

		switch c.Writer.Status() {
		case http.StatusOK:
			l.RecordSuccess(ip, email)
		case http.StatusUnauthorized:
			l.RecordFailure(ip, email)
		}
	}
}

func abortTooManyAttempts(c *gin.Context, retryAfter time.Duration) {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	c.Header("Retry-After", strconv.Itoa(seconds))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":       "too many login attempts",
		"code":        "rate_limited",
		"retry_after": seconds,
	})
}
