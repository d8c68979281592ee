// Package chatbot sends messages to the styling assistant behind the chatbot
// proxy. Exchanges are stateless: every message starts a new conversation,
// so a transcript is the caller's to keep.
package chatbot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/faishion/tryon-client/internal/config"
	"github.com/faishion/tryon-client/internal/constants"
	"github.com/faishion/tryon-client/internal/events"
	"github.com/faishion/tryon-client/internal/http"
	"github.com/faishion/tryon-client/internal/logging"
	"github.com/faishion/tryon-client/internal/ratelimit"
)

// NoResponse is the reply used when the proxy answers without text.
const NoResponse = "No response"

// ErrEmptyMessage is returned for a blank message; nothing is sent.
var ErrEmptyMessage = errors.New("message is empty")

// APIError is a non-2xx answer from the chatbot proxy.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("chatbot returned status %d", e.Status)
	}
	return fmt.Sprintf("chatbot returned status %d: %s", e.Status, e.Message)
}

// retryLogger implements the retryablehttp.LeveledLogger interface
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	// Only log errors and warnings, not all info
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

// Options tune a Client. Zero durations take the defaults; RetryMax 0
// disables retries.
type Options struct {
	HTTPClient   *nethttp.Client
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Timeout      time.Duration
	Limiter      *ratelimit.RateLimiter
	EventBus     *events.EventBus
}

// Client talks to the chatbot proxy.
type Client struct {
	retry    *retryablehttp.Client
	endpoint string
	apiKey   string
	user     string
	timeout  time.Duration
	limiter  *ratelimit.RateLimiter
	eventBus *events.EventBus
	logger   *logging.Logger
}

// NewClient creates a client for the proxy at endpoint.
func NewClient(endpoint, apiKey, user string, opts Options) (*Client, error) {
	endpoint = strings.TrimSuffix(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("chatbot endpoint is empty")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, config.ErrMissingChatbotKey
	}
	if user == "" {
		user = constants.DefaultChatbotUser
	}

	logger := logging.NewLogger("chatbot", opts.EventBus)

	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.NewChatbotRateLimiter()
		limiter.SetLogger(logger)
	}

	retryClient := retryablehttp.NewClient()
	if opts.HTTPClient != nil {
		retryClient.HTTPClient = opts.HTTPClient
	}
	retryClient.RetryMax = opts.RetryMax
	if opts.RetryWaitMin > 0 {
		retryClient.RetryWaitMin = opts.RetryWaitMin
	} else {
		retryClient.RetryWaitMin = 500 * time.Millisecond
	}
	if opts.RetryWaitMax > 0 {
		retryClient.RetryWaitMax = opts.RetryWaitMax
	} else {
		retryClient.RetryWaitMax = 5 * time.Second
	}
	retryClient.Logger = &retryLogger{logger: logger}
	// Hand the last response back so the server's message reaches the caller.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.CheckRetry = func(ctx context.Context, resp *nethttp.Response, err error) (bool, error) {
		if resp != nil && resp.StatusCode == nethttp.StatusTooManyRequests {
			limiter.SetCooldown(retryAfter(resp))
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = constants.ChatbotTimeout
	}

	return &Client{
		retry:    retryClient,
		endpoint: endpoint,
		apiKey:   apiKey,
		user:     user,
		timeout:  timeout,
		limiter:  limiter,
		eventBus: opts.EventBus,
		logger:   logger,
	}, nil
}

// NewFromConfig creates a client from the [chatbot] section of cfg, using
// the shared proxy-aware HTTP client.
func NewFromConfig(cfg *config.Config, bus *events.EventBus) (*Client, error) {
	if err := cfg.ValidateForChat(); err != nil {
		return nil, err
	}
	httpClient, err := http.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}
	return NewClient(cfg.ChatbotURL, cfg.ChatbotAPIKey, cfg.ChatbotUser, Options{
		HTTPClient: httpClient,
		RetryMax:   cfg.ChatbotRetryMax,
		EventBus:   bus,
	})
}

type chatRequest struct {
	Inputs         map[string]interface{} `json:"inputs"`
	Query          string                 `json:"query"`
	ResponseMode   string                 `json:"response_mode"`
	User           string                 `json:"user"`
	ConversationID string                 `json:"conversation_id"`
}

type chatResponse struct {
	Answer  string `json:"answer"`
	Text    string `json:"text"`
	Message string `json:"message"`
}

// Send posts text and returns the assistant's reply. Failures other than an
// empty message are published on the event bus as ErrorEvents.
func (c *Client) Send(ctx context.Context, text string) (string, error) {
	reply, err := c.exchange(ctx, text)
	if err != nil && !errors.Is(err, ErrEmptyMessage) && c.eventBus != nil {
		c.eventBus.PublishError("chatbot", "chat", err)
	}
	return reply, err
}

// CooldownRemaining reports how long the next Send will wait for a throttle
// imposed by the proxy.
func (c *Client) CooldownRemaining() time.Duration {
	return c.limiter.CooldownRemaining()
}

func (c *Client) exchange(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyMessage
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter cancelled: %w", err)
	}

	payload, err := json.Marshal(chatRequest{
		Inputs:       map[string]interface{}{},
		Query:        text,
		ResponseMode: "blocking",
		User:         c.user,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(reqCtx, nethttp.MethodPost, c.endpoint+"/chat-messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.publish("user", text)

	start := time.Now()
	resp, err := c.retry.Do(req)
	if err != nil {
		return "", fmt.Errorf("chatbot request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read chatbot response: %w", err)
	}

	c.logger.Debug().
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Dur("elapsed", time.Since(start)).
		Msg("chatbot response")

	var decoded chatResponse
	decodeErr := json.Unmarshal(body, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &APIError{Status: resp.StatusCode, Message: decoded.Message}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("failed to decode chatbot response: %w", decodeErr)
	}

	reply := decoded.Answer
	if reply == "" {
		reply = decoded.Text
	}
	if reply == "" {
		reply = NoResponse
	}
	c.publish("assistant", reply)
	return reply, nil
}

func (c *Client) publish(role, content string) {
	if c.eventBus == nil {
		return
	}
	c.eventBus.Publish(&events.ChatEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventChatExchange, Time: time.Now()},
		Role:      role,
		Content:   content,
	})
}

// retryAfter reads a Retry-After header given in seconds. Zero means absent.
func retryAfter(resp *nethttp.Response) time.Duration {
	if s := resp.Header.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}
