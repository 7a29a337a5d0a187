package server

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/qboost/internal/events"
	"github.com/aristath/qboost/internal/services"
)

// StatusMonitor periodically checks the run execution slot and emits an
// event when it flips between idle and running
type StatusMonitor struct {
	eventManager *events.Manager
	runService   *services.RunService
	log          zerolog.Logger

	stop     chan struct{}
	stopOnce sync.Once

	// Previous slot state, zero value means idle
	lastStatus services.Status
}

// NewStatusMonitor creates a new status monitor
func NewStatusMonitor(eventManager *events.Manager, runService *services.RunService, log zerolog.Logger) *StatusMonitor {
	return &StatusMonitor{
		eventManager: eventManager,
		runService:   runService,
		log:          log.With().Str("component", "status_monitor").Logger(),
		stop:         make(chan struct{}),
	}
}

// Start begins periodic status monitoring
func (m *StatusMonitor) Start(interval time.Duration) {
	go m.monitor(interval)
}

// Stop ends the monitoring loop
func (m *StatusMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// monitor runs the periodic monitoring loop
func (m *StatusMonitor) monitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Do initial check
	m.checkStatus()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.checkStatus()
		}
	}
}

// checkStatus emits SystemStatusChanged when the execution slot state
// differs from the previous check
func (m *StatusMonitor) checkStatus() {
	status := m.runService.Status()
	if status == m.lastStatus {
		return
	}

	state := "idle"
	if status.Running {
		state = "running"
	}

	m.log.Debug().
		Bool("running", status.Running).
		Str("run_id", status.RunID).
		Msg("Run slot state changed")

	if m.eventManager != nil {
		m.eventManager.EmitTyped(events.SystemStatusChanged, "status_monitor", &events.SystemStatusChangedData{
			Status:    state,
			RunID:     status.RunID,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}

	m.lastStatus = status
}
