package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/aristath/qboost/internal/config"
	"github.com/aristath/qboost/internal/events"
	"github.com/aristath/qboost/internal/services"
)

const liveWriteWait = 10 * time.Second

// RunHandlers provides HTTP handlers for launching, inspecting, and
// cancelling runs, plus the live WebSocket stream of run events.
type RunHandlers struct {
	runService *services.RunService
	defaults   config.RunConfig
	eventBus   *events.Bus
	log        zerolog.Logger
}

// NewRunHandlers creates run control handlers. The defaults are the
// configured run parameters; launch requests overlay them.
func NewRunHandlers(runService *services.RunService, defaults config.RunConfig, eventBus *events.Bus, log zerolog.Logger) *RunHandlers {
	return &RunHandlers{
		runService: runService,
		defaults:   defaults,
		eventBus:   eventBus,
		log:        log.With().Str("handler", "runs").Logger(),
	}
}

// RegisterRoutes registers the run control routes on the given router.
// All paths use static segments so they never shadow the {id} browsing
// routes that share the /runs prefix.
func (h *RunHandlers) RegisterRoutes(r chi.Router) {
	r.Post("/", h.HandleLaunch)
	r.Get("/active", h.HandleActive)
	r.Delete("/active", h.HandleCancel)
	r.Get("/live", h.HandleLive)
}

// HandleLaunch handles POST /api/runs. The optional JSON body is an
// overlay on the configured run defaults; an empty body launches with
// the defaults as-is.
func (h *RunHandlers) HandleLaunch(w http.ResponseWriter, r *http.Request) {
	var overlay config.Experiment
	if err := json.NewDecoder(r.Body).Decode(&overlay); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	runCfg := h.defaults
	overlay.Overlay(&runCfg)

	runID, err := h.runService.Start(runCfg)
	if err != nil {
		if errors.Is(err, services.ErrRunInProgress) {
			http.Error(w, "A run is already in progress", http.StatusConflict)
			return
		}
		h.log.Warn().Err(err).Msg("Rejected run launch")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.log.Info().
		Str("run_id", runID).
		Str("hamiltonian", runCfg.Hamiltonian).
		Int("nqubits", runCfg.NQubits).
		Msg("Run launched via API")

	h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"run_id": runID,
		"status": "started",
	})
}

// HandleActive handles GET /api/runs/active
func (h *RunHandlers) HandleActive(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.runService.Status())
}

// HandleCancel handles DELETE /api/runs/active
func (h *RunHandlers) HandleCancel(w http.ResponseWriter, r *http.Request) {
	status := h.runService.Status()
	if !h.runService.Cancel() {
		http.Error(w, "No active run", http.StatusNotFound)
		return
	}

	h.log.Info().Str("run_id", status.RunID).Msg("Run cancelled via API")
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": status.RunID,
		"status": "cancelling",
	})
}

// liveMessage is the frame format of the live run stream.
type liveMessage struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// HandleLive handles GET /api/runs/live by upgrading to a WebSocket and
// streaming run lifecycle events until the client disconnects.
func (h *RunHandlers) HandleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Origin policy is handled by the CORS middleware
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to accept WebSocket connection")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream aborted")

	ctx := r.Context()

	// Buffered channel with drop-on-full sends: a slow client loses
	// progress frames rather than stalling the event bus.
	eventChan := make(chan *events.Event, 100)
	runEvents := []events.EventType{
		events.RunStarted,
		events.RunProgress,
		events.RunCompleted,
		events.RunFailed,
		events.ResultSaved,
	}

	subs := make(map[events.EventType]int, len(runEvents))
	for _, eventType := range runEvents {
		subs[eventType] = h.eventBus.Subscribe(eventType, func(event *events.Event) {
			select {
			case eventChan <- event:
			default:
			}
		})
	}
	defer func() {
		for eventType, id := range subs {
			h.eventBus.Unsubscribe(eventType, id)
		}
	}()

	h.log.Info().Str("remote", r.RemoteAddr).Msg("Live run stream connected")

	// Send the current slot state first so late subscribers know whether
	// a run is already active.
	if err := h.writeLive(ctx, conn, liveMessage{
		Type:      "status",
		Timestamp: time.Now(),
		Data:      h.runService.Status(),
	}); err != nil {
		return
	}

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Debug().Msg("Live run stream client disconnected")
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case event := <-eventChan:
			msg := liveMessage{
				Type:      string(event.Type),
				Timestamp: event.Timestamp,
				Data:      event.Data,
			}
			if err := h.writeLive(ctx, conn, msg); err != nil {
				h.log.Debug().Err(err).Msg("Live run stream write failed")
				return
			}

		case <-heartbeat.C:
			if err := h.writeLive(ctx, conn, liveMessage{
				Type:      "heartbeat",
				Timestamp: time.Now(),
			}); err != nil {
				return
			}
		}
	}
}

// writeLive sends one frame on the live stream with a bounded write wait.
func (h *RunHandlers) writeLive(ctx context.Context, conn *websocket.Conn, msg liveMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, liveWriteWait)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

func (h *RunHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
