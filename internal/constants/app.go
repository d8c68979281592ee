package constants

import (
	"time"
)

// Remote endpoints (defaults, overridable in the config file)
const (
	// DefaultCatalogURL - paged product catalog service
	DefaultCatalogURL = "https://deals-products.faishion.ai"

	// DefaultHistoryURL - try-on history service
	DefaultHistoryURL = "https://tryon-history.faishion.ai"

	// DefaultAuthURL - auth service base URL (session tokens are issued here)
	DefaultAuthURL = "https://api-auth.faishion.ai/v1"

	// DefaultChatbotURL - chatbot proxy base URL
	DefaultChatbotURL = "https://api.dify.ai/v1"

	// DefaultChatbotUser - user label sent with every chatbot exchange
	DefaultChatbotUser = "fashion-app-user"
)

// Collection loading
const (
	// FetchTimeout - fixed deadline for a single page request (10 seconds)
	// A request exceeding this is reported as a Timeout failure.
	FetchTimeout = 10 * time.Second

	// DefaultPageSize - items requested per page (matches the mobile feed)
	DefaultPageSize = 20

	// MaxPageSize - upper bound accepted from config or flags
	MaxPageSize = 100

	// AllCategories - category value meaning "no category filter"
	AllCategories = "All"

	// ErrorBodySnippetLimit - bytes of a non-2xx body kept on a ServerError
	ErrorBodySnippetLimit = 512
)

// Categories offered by the catalog feed, in display order.
var Categories = []string{"All", "Tops", "Bottoms", "Skirts", "Dresses", "Outerwear"}

// Chatbot
const (
	// ChatbotTimeout - deadline for one chatbot exchange (blocking response mode)
	ChatbotTimeout = 60 * time.Second

	// ChatbotRetryMax - retries for connection errors, 429 and 5xx responses
	ChatbotRetryMax = 2
)

// Event System
const (
	// EventBusDefaultBuffer - default buffer size for event channels (1000)
	// Large enough that a loader publishing every transition never blocks.
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size for high-throughput scenarios (5000)
	EventBusMaxBuffer = 5000
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (10 seconds)
	HTTPTLSHandshakeTimeout = 10 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (5 seconds)
	HTTPDialTimeout = 5 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// ProxyWarmupTimeout - deadline for the optional proxy warmup request
	ProxyWarmupTimeout = 15 * time.Second
)

// Log file rotation
const (
	// LogFileMaxSizeMB - rotate after this many megabytes
	LogFileMaxSizeMB = 10

	// LogFileMaxBackups - rotated files kept
	LogFileMaxBackups = 5

	// LogFileMaxAgeDays - rotated files older than this are removed
	LogFileMaxAgeDays = 30
)
