package ratelimit

import "time"

// Chatbot proxy limits
//
// The chatbot proxy applies a per-key quota of 60 requests per minute. A
// `chat --interactive` session never needs more than a message every couple
// of seconds, so the client stays well below it.
const (
	// ChatbotRatePerSec is the sustained rate the client allows itself.
	ChatbotRatePerSec = 0.5

	// ChatbotBurstCapacity is how many messages can go out back to back.
	ChatbotBurstCapacity = 3.0
)

// Wait feedback
const (
	// WarnWaitThreshold is the expected wait above which Wait logs a warning.
	WarnWaitThreshold = 2 * time.Second

	// WarnInterval limits how often the wait warning repeats.
	WarnInterval = 10 * time.Second

	// DefaultCooldown is applied after a 429 without a usable Retry-After.
	DefaultCooldown = 5 * time.Second

	// MaxCooldown caps a server supplied Retry-After.
	MaxCooldown = 2 * time.Minute
)
