package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/qboost/internal/events"
	"github.com/aristath/qboost/internal/utils"
)

// streamedEventTypes lists the event types forwarded on the stream when
// the client gives no filter.
var streamedEventTypes = []events.EventType{
	events.RunStarted,
	events.RunProgress,
	events.RunCompleted,
	events.RunFailed,
	events.ResultSaved,
	events.ArchiveCreated,
	events.ArchivePruned,
	events.SystemStatusChanged,
	events.ErrorOccurred,
	events.LogFileChanged,
}

// EventsStreamHandler handles unified Server-Sent Events (SSE) streaming
// for all system events.
type EventsStreamHandler struct {
	eventBus *events.Bus
	dataDir  string
	log      zerolog.Logger
}

// logWatcher polls one log file for changes on behalf of one connection.
type logWatcher struct {
	filePath    string
	lastModTime time.Time
	lastSize    int64
	ticker      *time.Ticker
	done        chan struct{}
}

func (w *logWatcher) stop() {
	close(w.done)
}

// NewEventsStreamHandler creates a new unified events stream handler.
func NewEventsStreamHandler(eventBus *events.Bus, dataDir string, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		eventBus: eventBus,
		dataDir:  dataDir,
		log:      log.With().Str("component", "events_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/events/stream requests (SSE).
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// Get flusher for streaming
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// Parse query parameters
	typesFilter := r.URL.Query().Get("types")
	logFile := r.URL.Query().Get("log_file")

	var allowedTypes map[events.EventType]bool
	if requested := utils.ParseCSV(typesFilter); len(requested) > 0 {
		allowedTypes = make(map[events.EventType]bool, len(requested))
		for _, t := range requested {
			allowedTypes[events.EventType(t)] = true
		}
	}

	h.log.Info().
		Str("types_filter", typesFilter).
		Str("log_file", logFile).
		Msg("Client connected to event stream")

	// Per-connection channel; non-blocking sends so a slow client drops
	// events instead of stalling the bus
	eventChan := make(chan *events.Event, 100)

	eventHandler := func(event *events.Event) {
		select {
		case eventChan <- event:
		default:
			h.log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Event channel full, dropping event")
		}
	}

	// Subscribe to the requested types and remember the subscription IDs
	// so the handlers are removed when the client goes away
	subscribed := make(map[events.EventType]int)
	if allowedTypes == nil {
		for _, eventType := range streamedEventTypes {
			subscribed[eventType] = h.eventBus.Subscribe(eventType, eventHandler)
		}
	} else {
		for eventType := range allowedTypes {
			subscribed[eventType] = h.eventBus.Subscribe(eventType, eventHandler)
		}
	}
	defer func() {
		for eventType, id := range subscribed {
			h.eventBus.Unsubscribe(eventType, id)
		}
	}()

	// Start log file watcher if requested
	var watcher *logWatcher
	if logFile != "" {
		watcher = h.startLogWatcher(logFile, eventChan)
	}

	done := r.Context().Done()

	// Send initial connection message
	fmt.Fprintf(w, "data: %s\n\n", h.encodeEvent(map[string]interface{}{
		"type":    "connected",
		"message": "Connected to event stream",
	}))
	flusher.Flush()

	// Heartbeat ticker to keep connection alive
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-done:
			if watcher != nil {
				watcher.stop()
			}
			h.log.Info().Msg("Client disconnected from event stream")
			return

		case event := <-eventChan:
			h.log.Debug().
				Str("event_type", string(event.Type)).
				Msg("Sending event to client")

			eventJSON := h.encodeEvent(map[string]interface{}{
				"type":      string(event.Type),
				"module":    event.Module,
				"timestamp": event.Timestamp.Format(time.RFC3339),
				"data":      event.Data,
			})

			fmt.Fprintf(w, "data: %s\n\n", eventJSON)
			flusher.Flush()

		case <-heartbeat.C:
			fmt.Fprintf(w, "data: %s\n\n", h.encodeEvent(map[string]interface{}{
				"type":      "heartbeat",
				"timestamp": time.Now().Format(time.RFC3339),
			}))
			flusher.Flush()
		}
	}
}

// encodeEvent encodes an event map to JSON string.
func (h *EventsStreamHandler) encodeEvent(event map[string]interface{}) string {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal event")
		return `{"error":"failed to encode event"}`
	}
	return string(data)
}

// startLogWatcher starts polling a log file, emitting LogFileChanged
// events into the connection's channel whenever it grows or is rotated.
func (h *EventsStreamHandler) startLogWatcher(logFile string, eventChan chan *events.Event) *logWatcher {
	// Validate log file name (prevent directory traversal)
	if strings.Contains(logFile, "..") || strings.Contains(logFile, "/") {
		h.log.Warn().Str("log_file", logFile).Msg("Invalid log file name")
		return nil
	}

	logsDir := filepath.Join(h.dataDir, "logs")
	logPath := filepath.Join(logsDir, logFile)

	info, err := os.Stat(logPath)
	if err != nil {
		h.log.Warn().Err(err).Str("log_file", logFile).Msg("Log file not found")
		return nil
	}

	watcher := &logWatcher{
		filePath:    logPath,
		lastModTime: info.ModTime(),
		lastSize:    info.Size(),
		ticker:      time.NewTicker(2 * time.Second),
		done:        make(chan struct{}),
	}

	go func() {
		defer watcher.ticker.Stop()

		for {
			select {
			case <-watcher.done:
				return
			case <-watcher.ticker.C:
				info, err := os.Stat(watcher.filePath)
				if err != nil {
					// File might have been deleted or rotated away
					continue
				}

				if info.ModTime().After(watcher.lastModTime) || info.Size() != watcher.lastSize {
					watcher.lastModTime = info.ModTime()
					watcher.lastSize = info.Size()

					event := &events.Event{
						Type:      events.LogFileChanged,
						Module:    "log_watcher",
						Timestamp: time.Now(),
						Data: map[string]interface{}{
							"log_file": logFile,
						},
					}

					select {
					case eventChan <- event:
					default:
					}
				}
			}
		}
	}()

	h.log.Info().Str("log_file", logFile).Msg("Started log file watcher")

	return watcher
}
