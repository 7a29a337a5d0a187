package events

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus() *Bus {
	return NewBus(zerolog.Nop())
}

// TestBusSubscribePublish tests basic event delivery
func TestBusSubscribePublish(t *testing.T) {
	bus := newTestBus()
	received := make(chan *Event, 1)

	_ = bus.Subscribe(RunStarted, func(e *Event) {
		received <- e
	})

	bus.Publish(&Event{
		Type:   RunStarted,
		Module: "run_service",
		Data:   map[string]interface{}{"run_id": "run_1"},
	})

	select {
	case event := <-received:
		assert.Equal(t, RunStarted, event.Type)
		assert.Equal(t, "run_service", event.Module)
		assert.Equal(t, "run_1", event.Data["run_id"])
		assert.False(t, event.Timestamp.IsZero(), "Publish should stamp events")
	case <-time.After(time.Second):
		t.Fatal("Expected event not received")
	}
}

// TestBusPublishOnlyMatchingType tests that subscribers see only their type
func TestBusPublishOnlyMatchingType(t *testing.T) {
	bus := newTestBus()
	received := make(chan *Event, 2)

	_ = bus.Subscribe(RunCompleted, func(e *Event) {
		received <- e
	})

	bus.Publish(&Event{Type: RunFailed, Module: "run_service"})
	bus.Publish(&Event{Type: RunCompleted, Module: "run_service"})

	select {
	case event := <-received:
		assert.Equal(t, RunCompleted, event.Type)
	case <-time.After(time.Second):
		t.Fatal("Expected RunCompleted event not received")
	}

	select {
	case event := <-received:
		t.Fatalf("Unexpected extra event: %s", event.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

// TestBusMultipleSubscribers tests fan-out to all subscribers of a type
func TestBusMultipleSubscribers(t *testing.T) {
	bus := newTestBus()
	first := make(chan *Event, 1)
	second := make(chan *Event, 1)

	_ = bus.Subscribe(ResultSaved, func(e *Event) { first <- e })
	_ = bus.Subscribe(ResultSaved, func(e *Event) { second <- e })

	bus.Publish(&Event{Type: ResultSaved, Module: "recorder"})

	for _, ch := range []chan *Event{first, second} {
		select {
		case event := <-ch:
			assert.Equal(t, ResultSaved, event.Type)
		case <-time.After(time.Second):
			t.Fatal("Subscriber did not receive event")
		}
	}
}

// TestBusUnsubscribe tests that removed handlers stop receiving events
func TestBusUnsubscribe(t *testing.T) {
	bus := newTestBus()
	received := make(chan *Event, 1)

	id := bus.Subscribe(RunProgress, func(e *Event) {
		received <- e
	})
	bus.Unsubscribe(RunProgress, id)

	bus.Publish(&Event{Type: RunProgress, Module: "run_service"})

	select {
	case <-received:
		t.Fatal("Unsubscribed handler should not receive events")
	case <-time.After(50 * time.Millisecond):
	}
}

// TestBusHandlerPanicIsIsolated tests that a panicking handler does not
// take down other subscribers
func TestBusHandlerPanicIsIsolated(t *testing.T) {
	bus := newTestBus()
	received := make(chan *Event, 1)

	_ = bus.Subscribe(ErrorOccurred, func(e *Event) {
		panic("handler exploded")
	})
	_ = bus.Subscribe(ErrorOccurred, func(e *Event) {
		received <- e
	})

	bus.Publish(&Event{Type: ErrorOccurred, Module: "test"})

	select {
	case event := <-received:
		assert.Equal(t, ErrorOccurred, event.Type)
	case <-time.After(time.Second):
		t.Fatal("Healthy subscriber starved by panicking handler")
	}
}

// TestManagerEmitTyped tests typed payload delivery and map flattening
func TestManagerEmitTyped(t *testing.T) {
	bus := newTestBus()
	manager := NewManager(bus, zerolog.Nop())
	received := make(chan *Event, 1)

	_ = bus.Subscribe(RunCompleted, func(e *Event) {
		received <- e
	})

	manager.EmitTyped(RunCompleted, "run_service", &RunStatusData{
		RunID:    "run_typed",
		Status:   "completed",
		Duration: 1.5,
	})

	select {
	case event := <-received:
		// Typed payload is preserved
		typed := event.GetTypedData()
		require.NotNil(t, typed)
		status, ok := typed.(*RunStatusData)
		require.True(t, ok)
		assert.Equal(t, "run_typed", status.RunID)

		// Raw map view is populated for generic consumers
		assert.Equal(t, "run_typed", event.Data["run_id"])
		assert.Equal(t, "completed", event.Data["status"])
	case <-time.After(time.Second):
		t.Fatal("Expected typed event not received")
	}
}

// TestGetTypedDataDecodesRawEvents tests reconstruction from the Data map
func TestGetTypedDataDecodesRawEvents(t *testing.T) {
	event := &Event{
		Type:   ResultSaved,
		Module: "recorder",
		Data: map[string]interface{}{
			"run_id":        "run_raw",
			"path":          "/data/results/x",
			"final_energy":  -2.0,
			"ground_energy": -2.5,
			"success":       true,
		},
	}

	typed := event.GetTypedData()
	require.NotNil(t, typed)
	saved, ok := typed.(*ResultSavedData)
	require.True(t, ok)
	assert.Equal(t, "run_raw", saved.RunID)
	assert.Equal(t, -2.0, saved.FinalEnergy)
	assert.True(t, saved.Success)
}

// TestGetTypedDataUnknownType tests the generic fallback path
func TestGetTypedDataUnknownType(t *testing.T) {
	event := &Event{
		Type: EventType("mystery"),
		Data: map[string]interface{}{"k": "v"},
	}

	typed := event.GetTypedData()
	generic, ok := typed.(*GenericEventData)
	require.True(t, ok)
	assert.Equal(t, "v", generic.Data["k"])
}

// TestManagerEmitRawMap tests Emit with an untyped payload
func TestManagerEmitRawMap(t *testing.T) {
	bus := newTestBus()
	manager := NewManager(bus, zerolog.Nop())
	received := make(chan *Event, 1)

	_ = bus.Subscribe(LogFileChanged, func(e *Event) {
		received <- e
	})

	manager.Emit(LogFileChanged, "log_watcher", map[string]interface{}{
		"log_file": "qboost.log",
	})

	select {
	case event := <-received:
		assert.Equal(t, "qboost.log", event.Data["log_file"])
	case <-time.After(time.Second):
		t.Fatal("Expected event not received")
	}
}
