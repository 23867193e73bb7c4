// Package events keeps a bounded in-memory journal of dispatch outcomes.
// A call that matches no selector leaves one no_match event, and one whose
// handler cannot be resolved leaves one resolve_failed event. Any other
// matched call leaves a matched event followed by exactly one of completed,
// failed or timeout. An empty registry records nothing.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType classifies a dispatch event.
type EventType string

const (
	EventNoMatch            EventType = "dispatch.no_match"
	EventMatched            EventType = "dispatch.matched"
	EventResolveFailed      EventType = "handler.resolve_failed"
	EventCompleted          EventType = "handler.completed"
	EventFailed             EventType = "handler.failed"
	EventTimeout            EventType = "handler.timeout"
	EventWalletLookup       EventType = "wallet.lookup"
	EventWalletLookupFailed EventType = "wallet.lookup_failed"
	EventWalletRegistered   EventType = "wallet.registered"
)

// Severity indicates the importance of an event.
type Severity string

const (
	SeverityDebug   Severity = "debug"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Event is one journal entry.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Severity  Severity  `json:"severity"`
	Timestamp time.Time `json:"timestamp"`

	Handler  string `json:"handler,omitempty"`
	Selector string `json:"selector,omitempty"`
	Method   string `json:"method,omitempty"`

	Message  string            `json:"message,omitempty"`
	Error    string            `json:"error,omitempty"`
	Duration time.Duration     `json:"duration_ns,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`

	TraceID   string `json:"trace_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// String returns the JSON form of the event.
func (e Event) String() string {
	data, _ := json.Marshal(e)
	return string(data)
}

// EventHandler is notified of events as they are recorded.
type EventHandler func(Event)

// EventFilter decides whether a subscriber sees an event.
type EventFilter func(Event) bool

// Recorder is what the dispatcher and HTTP layer write to and read from.
type Recorder interface {
	Log(event Event)
	LogWithContext(ctx context.Context, event Event)
	Subscribe(handler EventHandler) func()
	SubscribeFiltered(filter EventFilter, handler EventHandler) func()
	Recent(n int) []Event
	RecentByHandler(handler string, n int) []Event
	RecentByType(eventType EventType, n int) []Event
}

// RingBuffer is a fixed-size, concurrency-safe Recorder. Once full, the oldest
// event is overwritten.
type RingBuffer struct {
	mu       sync.RWMutex
	events   []Event
	size     int
	head     int
	count    int
	handlers []subscription
	nextID   int64
}

type subscription struct {
	id      int64
	filter  EventFilter
	handler EventHandler
}

// DefaultSize is used when NewRingBuffer gets a non-positive size.
const DefaultSize = 1000

// NewRingBuffer creates a ring buffer holding up to size events.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = DefaultSize
	}
	return &RingBuffer{
		events: make([]Event, size),
		size:   size,
	}
}

// Log stores event and notifies subscribers outside the lock.
func (rb *RingBuffer) Log(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Severity == "" {
		event.Severity = SeverityInfo
	}

	rb.mu.Lock()
	rb.events[rb.head] = event
	rb.head = (rb.head + 1) % rb.size
	if rb.count < rb.size {
		rb.count++
	}
	subs := make([]subscription, len(rb.handlers))
	copy(subs, rb.handlers)
	rb.mu.Unlock()

	for _, s := range subs {
		if s.filter == nil || s.filter(event) {
			s.handler(event)
		}
	}
}

// LogWithContext copies trace and request ids from ctx onto event when the
// event does not carry its own.
func (rb *RingBuffer) LogWithContext(ctx context.Context, event Event) {
	if event.TraceID == "" {
		event.TraceID = TraceIDFrom(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = RequestIDFrom(ctx)
	}
	rb.Log(event)
}

// Subscribe registers handler for every event. The returned func unsubscribes.
func (rb *RingBuffer) Subscribe(handler EventHandler) func() {
	return rb.SubscribeFiltered(nil, handler)
}

// SubscribeFiltered registers handler for events accepted by filter.
func (rb *RingBuffer) SubscribeFiltered(filter EventFilter, handler EventHandler) func() {
	rb.mu.Lock()
	id := rb.nextID
	rb.nextID++
	rb.handlers = append(rb.handlers, subscription{id: id, filter: filter, handler: handler})
	rb.mu.Unlock()

	return func() {
		rb.mu.Lock()
		defer rb.mu.Unlock()
		for i, s := range rb.handlers {
			if s.id == id {
				rb.handlers = append(rb.handlers[:i], rb.handlers[i+1:]...)
				return
			}
		}
	}
}

// Recent returns up to n events, newest first.
func (rb *RingBuffer) Recent(n int) []Event {
	return rb.collect(n, nil)
}

// RecentByHandler returns up to n events for one handler identifier, newest first.
func (rb *RingBuffer) RecentByHandler(handler string, n int) []Event {
	return rb.collect(n, func(e Event) bool { return e.Handler == handler })
}

// RecentByType returns up to n events of one type, newest first.
func (rb *RingBuffer) RecentByType(eventType EventType, n int) []Event {
	return rb.collect(n, func(e Event) bool { return e.Type == eventType })
}

func (rb *RingBuffer) collect(n int, match EventFilter) []Event {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if n <= 0 || rb.count == 0 {
		return nil
	}

	var result []Event
	for i := 0; i < rb.count && len(result) < n; i++ {
		e := rb.events[(rb.head-1-i+rb.size)%rb.size]
		if match == nil || match(e) {
			result = append(result, e)
		}
	}
	return result
}

// Count returns the number of stored events.
func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

type contextKey string

const (
	traceIDKey   contextKey = "trace_id"
	requestIDKey contextKey = "request_id"
)

// WithTraceID returns a context carrying traceID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// WithRequestID returns a context carrying requestID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// TraceIDFrom returns the trace id stored in ctx, or "".
func TraceIDFrom(ctx context.Context) string {
	s, _ := ctx.Value(traceIDKey).(string)
	return s
}

// RequestIDFrom returns the request id stored in ctx, or "".
func RequestIDFrom(ctx context.Context) string {
	s, _ := ctx.Value(requestIDKey).(string)
	return s
}

// Builder assembles an Event fluently.
type Builder struct {
	event Event
}

// New starts an event of the given type at info severity.
func New(eventType EventType) *Builder {
	return &Builder{event: Event{
		Type:      eventType,
		Severity:  SeverityInfo,
		Timestamp: time.Now().UTC(),
	}}
}

func (b *Builder) Handler(id string) *Builder {
	b.event.Handler = id
	return b
}

func (b *Builder) Selector(sel string) *Builder {
	b.event.Selector = sel
	return b
}

func (b *Builder) Method(name string) *Builder {
	b.event.Method = name
	return b
}

func (b *Builder) Severity(s Severity) *Builder {
	b.event.Severity = s
	return b
}

func (b *Builder) Message(msg string) *Builder {
	b.event.Message = msg
	return b
}

// Err records err and raises severity to error. A nil err is ignored.
func (b *Builder) Err(err error) *Builder {
	if err != nil {
		b.event.Error = err.Error()
		b.event.Severity = SeverityError
	}
	return b
}

func (b *Builder) Duration(d time.Duration) *Builder {
	b.event.Duration = d
	return b
}

func (b *Builder) Metadata(key, value string) *Builder {
	if b.event.Metadata == nil {
		b.event.Metadata = make(map[string]string)
	}
	b.event.Metadata[key] = value
	return b
}

func (b *Builder) RequestID(id string) *Builder {
	b.event.RequestID = id
	return b
}

// Build returns the event, assigning an ID if none is set.
func (b *Builder) Build() Event {
	if b.event.ID == "" {
		b.event.ID = uuid.NewString()
	}
	return b.event
}

// LogTo records the event on r with ctx correlation.
func (b *Builder) LogTo(ctx context.Context, r Recorder) {
	r.LogWithContext(ctx, b.Build())
}

// NoOp discards everything.
type NoOp struct{}

func (NoOp) Log(Event)                                          {}
func (NoOp) LogWithContext(context.Context, Event)              {}
func (NoOp) Subscribe(EventHandler) func()                      { return func() {} }
func (NoOp) SubscribeFiltered(EventFilter, EventHandler) func() { return func() {} }
func (NoOp) Recent(int) []Event                                 { return nil }
func (NoOp) RecentByHandler(string, int) []Event                { return nil }
func (NoOp) RecentByType(EventType, int) []Event                { return nil }
