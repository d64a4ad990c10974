package relay

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig controls blocking of clients that present bad secrets.
type RateLimitConfig struct {
	MaxFailures int           // Failures within Window before blocking (default: 10)
	Window      time.Duration // Sliding window for counting failures (default: 1 minute)
	BlockTime   time.Duration // Base block duration (default: 1 minute, doubles each block)
}

// DefaultRateLimitConfig returns the default rate limiting configuration.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxFailures: 10,
		Window:      time.Minute,
		BlockTime:   time.Minute,
	}
}

// maxBlock caps the exponential block duration.
const maxBlock = 24 * time.Hour

// rateLimiter blocks an IP once it accumulates too many authorization
// failures inside a sliding window. Each repeated block doubles in length.
type rateLimiter struct {
	mu     sync.Mutex
	config RateLimitConfig

	// failures holds timestamps of recent failures per IP
	failures map[string][]time.Time

	// blocks counts how many times an IP has been blocked
	blocks map[string]int

	// blocked maps an IP to the time its block expires
	blocked map[string]time.Time
}

func newRateLimiter(config RateLimitConfig) *rateLimiter {
	defaults := DefaultRateLimitConfig()
	if config.MaxFailures <= 0 {
		config.MaxFailures = defaults.MaxFailures
	}
	if config.Window <= 0 {
		config.Window = defaults.Window
	}
	if config.BlockTime <= 0 {
		config.BlockTime = defaults.BlockTime
	}

	return &rateLimiter{
		config:   config,
		failures: make(map[string][]time.Time),
		blocks:   make(map[string]int),
		blocked:  make(map[string]time.Time),
	}
}

// check reports whether ip may publish, and if not, when it may retry.
func (rl *rateLimiter) check(ip string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	expiry, ok := rl.blocked[ip]
	if !ok {
		return true, 0
	}
	if remaining := time.Until(expiry); remaining > 0 {
		return false, remaining
	}
	delete(rl.blocked, ip)
	return true, 0
}

// recordSuccess clears the failure history of ip.
func (rl *rateLimiter) recordSuccess(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	delete(rl.failures, ip)
	delete(rl.blocks, ip)
}

// recordFailure records a refused publish and reports the block duration if
// ip is now blocked.
func (rl *rateLimiter) recordFailure(ip string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	recent := pruneBefore(rl.failures[ip], now.Add(-rl.config.Window))
	recent = append(recent, now)
	rl.failures[ip] = recent

	if len(recent) < rl.config.MaxFailures {
		return 0
	}

	block := rl.config.BlockTime << rl.blocks[ip]
	if block <= 0 || block > maxBlock {
		block = maxBlock
	}
	rl.blocks[ip]++
	rl.blocked[ip] = now.Add(block)
	delete(rl.failures, ip)
	return block
}

// cleanup removes expired entries. Called periodically.
func (rl *rateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for ip, ts := range rl.failures {
		if recent := pruneBefore(ts, now.Add(-rl.config.Window)); len(recent) == 0 {
			delete(rl.failures, ip)
		} else {
			rl.failures[ip] = recent
		}
	}
	for ip, expiry := range rl.blocked {
		if now.After(expiry) {
			delete(rl.blocked, ip)
		}
	}
	// Forget block history once an IP has neither a block nor recent failures.
	for ip := range rl.blocks {
		_, isBlocked := rl.blocked[ip]
		_, hasFailures := rl.failures[ip]
		if !isBlocked && !hasFailures {
			delete(rl.blocks, ip)
		}
	}
}

func pruneBefore(ts []time.Time, cutoff time.Time) []time.Time {
	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

// extractIP extracts the client IP from the request.
// It checks X-Forwarded-For and X-Real-IP headers first (for reverse proxy scenarios),
// then falls back to the remote address.
func extractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		return r.RemoteAddr
	}
	return ip
}
