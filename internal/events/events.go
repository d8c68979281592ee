package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/faishion/tryon-client/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	EventLog   EventType = "log"
	EventError EventType = "error"

	// Collection loader events
	EventLoaderState EventType = "loader_state" // Any loader transition (dispatch, apply, fail)
	EventLoaderStale EventType = "loader_stale" // A superseded response was discarded

	// Presentation events
	EventSortChanged EventType = "sort_changed"

	// Session and chatbot
	EventSessionChanged EventType = "session_changed"
	EventChatExchange   EventType = "chat_exchange"

	// Config file written by `config init`
	EventConfigChanged EventType = "config_changed"
)

// LogLevel defines log severity levels
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// LogEvent represents log messages
type LogEvent struct {
	BaseEvent
	Level   LogLevel
	Message string
	Source  string
	Error   error
}

// ErrorEvent represents error conditions
type ErrorEvent struct {
	BaseEvent
	Source string
	Stage  string // "fetch", "session", "chat"
	Error  error
}

// LoaderEvent describes a collection loader after a transition.
// Items are not carried; subscribers read a snapshot from the loader itself.
type LoaderEvent struct {
	BaseEvent
	Source  string // "products", "history"
	Status  string // "idle", "loading", "refreshing", "error"
	Origin  string // "filter", "refresh", "more"
	Count   int
	Page    int
	HasMore bool
	Epoch   uint64
	Error   error
}

// SortEvent is published when the presentation sort key changes.
type SortEvent struct {
	BaseEvent
	Source string
	Key    string
}

// SessionEvent is published when a session key is written or removed.
type SessionEvent struct {
	BaseEvent
	Key     string
	Removed bool
}

// ChatEvent records one side of a chatbot exchange.
type ChatEvent struct {
	BaseEvent
	Role    string // "user" or "assistant"
	Content string
}

// ConfigChangedEvent represents configuration changes.
type ConfigChangedEvent struct {
	BaseEvent
	Path string
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event // Subscribers to all events
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers without blocking.
// Events for a full subscriber channel are dropped and counted.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}

	for _, ch := range eb.all {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}

	for _, ch := range eb.all {
		close(ch)
	}
}

// PublishLog is a convenience method for publishing log events
func (eb *EventBus) PublishLog(level LogLevel, message, source string, err error) {
	eb.Publish(&LogEvent{
		BaseEvent: BaseEvent{
			EventType: EventLog,
			Time:      time.Now(),
		},
		Level:   level,
		Message: message,
		Source:  source,
		Error:   err,
	})
}

// PublishError is a convenience method for publishing error events
func (eb *EventBus) PublishError(source, stage string, err error) {
	eb.Publish(&ErrorEvent{
		BaseEvent: BaseEvent{
			EventType: EventError,
			Time:      time.Now(),
		},
		Source: source,
		Stage:  stage,
		Error:  err,
	})
}

// PublishSortChanged is a convenience method for publishing sort key changes
func (eb *EventBus) PublishSortChanged(source, key string) {
	eb.Publish(&SortEvent{
		BaseEvent: BaseEvent{
			EventType: EventSortChanged,
			Time:      time.Now(),
		},
		Source: source,
		Key:    key,
	})
}

// PublishConfigChanged is a convenience method for announcing a written config file
func (eb *EventBus) PublishConfigChanged(path string) {
	eb.Publish(&ConfigChangedEvent{
		BaseEvent: BaseEvent{
			EventType: EventConfigChanged,
			Time:      time.Now(),
		},
		Path: path,
	})
}

// GetDroppedEventCount returns the total number of events dropped due to full buffers
func (eb *EventBus) GetDroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}
