// Package events provides the in-process event system used to broadcast
// run lifecycle, result, and archive notifications between components.
//
// Components publish through the Manager (typed payloads) or directly on
// the Bus (raw maps). Subscribers register per event type and receive
// events asynchronously, so a slow consumer never stalls a publisher.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType identifies a category of event on the bus.
type EventType string

// Event types emitted by the system.
const (
	// Run lifecycle events
	RunStarted   EventType = "run_started"
	RunProgress  EventType = "run_progress"
	RunCompleted EventType = "run_completed"
	RunFailed    EventType = "run_failed"

	// Result and archive events
	ResultSaved    EventType = "result_saved"
	ArchiveCreated EventType = "archive_created"
	ArchivePruned  EventType = "archive_pruned"

	// System events
	SystemStatusChanged EventType = "system_status_changed"
	ErrorOccurred       EventType = "error_occurred"
	LogFileChanged      EventType = "log_file_changed"
)

// Event is the unit delivered to subscribers.
// Data holds the payload as a plain map so generic consumers (SSE stream,
// log sinks) can forward it without knowing the concrete type. Events
// published via Manager.EmitTyped also carry the original typed payload,
// retrievable with GetTypedData.
type Event struct {
	Type      EventType
	Module    string
	Timestamp time.Time
	Data      map[string]interface{}

	typed EventData
}

// GetTypedData returns the strongly typed payload for the event.
// Events emitted through Manager.EmitTyped return their original payload;
// otherwise the Data map is decoded based on the event type, falling back
// to GenericEventData for types without a registered struct.
func (e *Event) GetTypedData() EventData {
	if e.typed != nil {
		return e.typed
	}
	if len(e.Data) == 0 {
		return nil
	}

	raw, err := json.Marshal(e.Data)
	if err != nil {
		return nil
	}

	typed := emptyDataFor(e.Type)
	if typed == nil {
		return &GenericEventData{Type: e.Type, Data: e.Data}
	}
	if err := json.Unmarshal(raw, typed); err != nil {
		return nil
	}
	return typed
}

// Handler is a callback invoked for each published event.
type Handler func(*Event)

type subscription struct {
	id      int
	handler Handler
}

// Bus is the publish/subscribe hub. Handlers run on their own goroutines;
// handlers that need ordering or backpressure should drain into a channel
// with a non-blocking send.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]subscription
	nextID   int
	log      zerolog.Logger
}

// NewBus creates an event bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType][]subscription),
		log:      log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a handler for the given event type and returns a
// subscription ID that can be passed to Unsubscribe.
func (b *Bus) Subscribe(eventType EventType, handler Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.handlers[eventType] = append(b.handlers[eventType], subscription{
		id:      b.nextID,
		handler: handler,
	})
	return b.nextID
}

// Unsubscribe removes a previously registered handler.
func (b *Bus) Unsubscribe(eventType EventType, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[eventType]
	for i, sub := range subs {
		if sub.id == id {
			b.handlers[eventType] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Publish delivers the event to every subscriber of its type.
func (b *Bus) Publish(event *Event) {
	if event == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.handlers[event.Type]))
	copy(subs, b.handlers[event.Type])
	b.mu.RUnlock()

	b.log.Debug().
		Str("event_type", string(event.Type)).
		Int("subscribers", len(subs)).
		Msg("Publishing event")

	for _, sub := range subs {
		go b.dispatch(sub, event)
	}
}

func (b *Bus) dispatch(sub subscription, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Interface("panic", r).
				Str("event_type", string(event.Type)).
				Msg("Event handler panicked")
		}
	}()
	sub.handler(event)
}

// Manager provides the typed emission layer on top of the Bus.
// Services hold a Manager rather than the Bus so every event they emit
// carries a structured payload.
type Manager struct {
	bus *Bus
	log zerolog.Logger
}

// NewManager creates an event manager backed by the given bus.
func NewManager(bus *Bus, log zerolog.Logger) *Manager {
	return &Manager{
		bus: bus,
		log: log.With().Str("component", "event_manager").Logger(),
	}
}

// Emit publishes an event with a raw data map.
func (m *Manager) Emit(eventType EventType, module string, data map[string]interface{}) {
	m.bus.Publish(&Event{
		Type:      eventType,
		Module:    module,
		Timestamp: time.Now(),
		Data:      data,
	})
}

// EmitTyped publishes an event with a typed payload. The payload is also
// flattened into the Data map so generic subscribers keep working.
func (m *Manager) EmitTyped(eventType EventType, module string, data EventData) {
	event := &Event{
		Type:      eventType,
		Module:    module,
		Timestamp: time.Now(),
		typed:     data,
	}

	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			m.log.Error().
				Err(err).
				Str("event_type", string(eventType)).
				Msg("Failed to flatten typed event data")
		} else {
			var flat map[string]interface{}
			if err := json.Unmarshal(raw, &flat); err == nil {
				event.Data = flat
			}
		}
	}

	m.bus.Publish(event)
}
