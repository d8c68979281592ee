// Package ratelimit provides rate limiting for API calls using a token bucket algorithm.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/faishion/tryon-client/internal/logging"
)

// RateLimiter implements a token bucket rate limiter.
// It allows bursts up to maxTokens, then refills at refillRate tokens/second.
type RateLimiter struct {
	tokens        float64   // Current number of tokens available
	maxTokens     float64   // Maximum bucket capacity
	refillRate    float64   // Tokens added per second
	lastRefill    time.Time // Last time tokens were refilled
	cooldownUntil time.Time // No tokens are handed out before this
	lastWarnTime  time.Time // Last time we warned about rate limiting
	logger        *logging.Logger
	mu            sync.Mutex
}

// NewRateLimiter creates a new rate limiter.
//
// Parameters:
//   - tokensPerSecond: Rate at which tokens are added (e.g., 0.5 for one token every 2 seconds)
//   - burstSize: Maximum tokens that can accumulate (allows brief bursts)
func NewRateLimiter(tokensPerSecond float64, burstSize float64) *RateLimiter {
	return &RateLimiter{
		tokens:     burstSize, // Start with full bucket
		maxTokens:  burstSize,
		refillRate: tokensPerSecond,
		lastRefill: time.Now(),
		logger:     logging.NewLogger("ratelimit", nil),
	}
}

// NewChatbotRateLimiter creates the limiter guarding the chatbot proxy.
//
// Target Rate: 0.5 req/sec (one message every 2 seconds, half the proxy quota)
// Burst Capacity: 3 messages
func NewChatbotRateLimiter() *RateLimiter {
	return NewRateLimiter(ChatbotRatePerSec, ChatbotBurstCapacity)
}

// SetLogger replaces the limiter's logger.
func (rl *RateLimiter) SetLogger(logger *logging.Logger) {
	if logger == nil {
		return
	}
	rl.mu.Lock()
	rl.logger = logger
	rl.mu.Unlock()
}

// Wait blocks until a token is available or context is cancelled.
// Returns an error if the context is cancelled before a token becomes available.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	startTime := time.Now()

	if rl.tryAcquire() {
		return nil
	}

	waitTime := rl.timeUntilNextToken()
	if waitTime > WarnWaitThreshold {
		rl.mu.Lock()
		if time.Since(rl.lastWarnTime) > WarnInterval {
			rl.logger.Warn().
				Dur("expected_wait", waitTime).
				Msg("rate limited, waiting for capacity")
			rl.lastWarnTime = time.Now()
		}
		rl.mu.Unlock()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if rl.tryAcquire() {
			if actualWait := time.Since(startTime); actualWait > 5*time.Second {
				rl.logger.Info().Dur("waited", actualWait).Msg("rate limit wait completed")
			}
			return nil
		}

		timer := time.NewTimer(rl.timeUntilNextToken())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// SetCooldown drains the bucket and hands out no tokens for d. A cooldown
// already in effect is never shortened. d <= 0 applies DefaultCooldown and
// d is capped at MaxCooldown.
func (rl *RateLimiter) SetCooldown(d time.Duration) {
	if d <= 0 {
		d = DefaultCooldown
	}
	if d > MaxCooldown {
		d = MaxCooldown
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.refillLocked(now)
	rl.tokens = 0
	if until := now.Add(d); until.After(rl.cooldownUntil) {
		rl.cooldownUntil = until
	}
	rl.logger.Warn().Dur("cooldown", d).Msg("server throttled requests, pausing")
}

// CooldownRemaining returns how long the current cooldown still lasts.
func (rl *RateLimiter) CooldownRemaining() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if remaining := time.Until(rl.cooldownUntil); remaining > 0 {
		return remaining
	}
	return 0
}

// tryAcquire attempts to acquire one token without blocking.
// Returns true if a token was acquired, false otherwise.
func (rl *RateLimiter) tryAcquire() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Before(rl.cooldownUntil) {
		return false
	}
	rl.refillLocked(now)

	if rl.tokens >= 1.0 {
		rl.tokens -= 1.0
		return true
	}
	return false
}

// refillLocked adds the tokens earned since lastRefill, capped at maxTokens.
// Time spent in a cooldown earns nothing.
func (rl *RateLimiter) refillLocked(now time.Time) {
	from := rl.lastRefill
	if from.Before(rl.cooldownUntil) {
		from = rl.cooldownUntil
	}
	if elapsed := now.Sub(from).Seconds(); elapsed > 0 {
		rl.tokens += elapsed * rl.refillRate
	}
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}
	rl.lastRefill = now
}

// timeUntilNextToken calculates how long to wait until at least one token is available.
func (rl *RateLimiter) timeUntilNextToken() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	var wait time.Duration
	if remaining := time.Until(rl.cooldownUntil); remaining > 0 {
		wait = remaining
	}

	tokensNeeded := 1.0 - rl.tokens
	if tokensNeeded <= 0 {
		return wait
	}
	if rl.refillRate <= 0 {
		return time.Second
	}
	return wait + time.Duration(tokensNeeded/rl.refillRate*float64(time.Second))
}
