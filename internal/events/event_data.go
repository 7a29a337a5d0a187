package events

import (
	"encoding/json"
	"time"
)

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// ResultSavedData contains data for ResultSaved events
type ResultSavedData struct {
	RunID        string  `json:"run_id"`
	Path         string  `json:"path"`
	FinalEnergy  float64 `json:"final_energy"`
	GroundEnergy float64 `json:"ground_energy"`
	BestLoss     float64 `json:"best_loss"`
	Success      bool    `json:"success"`
}

// EventType returns the event type for ResultSavedData
func (d *ResultSavedData) EventType() EventType {
	return ResultSaved
}

// ArchiveCreatedData contains data for ArchiveCreated events
type ArchiveCreatedData struct {
	Key       string `json:"key"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// EventType returns the event type for ArchiveCreatedData
func (d *ArchiveCreatedData) EventType() EventType {
	return ArchiveCreated
}

// ArchivePrunedData contains data for ArchivePruned events
type ArchivePrunedData struct {
	Deleted []string `json:"deleted"`
	Kept    int      `json:"kept"`
}

// EventType returns the event type for ArchivePrunedData
func (d *ArchivePrunedData) EventType() EventType {
	return ArchivePruned
}

// SystemStatusChangedData contains data for SystemStatusChanged events
type SystemStatusChangedData struct {
	Status    string `json:"status,omitempty"`
	RunID     string `json:"run_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

// EventType returns the event type for SystemStatusChangedData
func (d *SystemStatusChangedData) EventType() EventType {
	return SystemStatusChanged
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}

// RunProgressInfo contains progress information for a boosting run.
// Supports hierarchical progress with Phase, SubPhase, and Details for rich reporting.
type RunProgressInfo struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message,omitempty"`

	// Phase identifies the current high-level operation (e.g., "vqe_training",
	// "dbi_flow")
	Phase string `json:"phase,omitempty"`

	// SubPhase identifies the specific sub-operation within a phase (e.g., "round_0",
	// "step_2")
	SubPhase string `json:"sub_phase,omitempty"`

	// Details contains arbitrary key-value metrics for the current phase.
	// Common keys include:
	// - For vqe_training: best_loss, iterations, func_evaluations
	// - For dbi_flow: off_diagonal_norm, step_size
	Details map[string]interface{} `json:"details,omitempty"`
}

// RunStatusData contains data for run lifecycle events
type RunStatusData struct {
	RunID       string                 `json:"run_id"`
	Hamiltonian string                 `json:"hamiltonian"`
	Status      string                 `json:"status"` // "started", "progress", "completed", "failed"
	Description string                 `json:"description"`
	Progress    *RunProgressInfo       `json:"progress,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Duration    float64                `json:"duration,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}

// EventType returns the event type for RunStatusData
// Note: The actual event type is determined by the Status field
func (d *RunStatusData) EventType() EventType {
	switch d.Status {
	case "started":
		return RunStarted
	case "progress":
		return RunProgress
	case "completed":
		return RunCompleted
	case "failed":
		return RunFailed
	default:
		return RunStarted
	}
}

// emptyDataFor returns a zero value of the concrete data type registered
// for the event type, or nil when the type has no registered struct.
func emptyDataFor(eventType EventType) EventData {
	switch eventType {
	case RunStarted, RunProgress, RunCompleted, RunFailed:
		return &RunStatusData{}
	case ResultSaved:
		return &ResultSavedData{}
	case ArchiveCreated:
		return &ArchiveCreatedData{}
	case ArchivePruned:
		return &ArchivePrunedData{}
	case SystemStatusChanged:
		return &SystemStatusChangedData{}
	case ErrorOccurred:
		return &ErrorEventData{}
	default:
		return nil
	}
}

// EventWithData represents an event with typed data
type EventWithData struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}

// MarshalJSON customizes JSON serialization for EventWithData
func (e *EventWithData) MarshalJSON() ([]byte, error) {
	type Alias EventWithData
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	// Marshal the data separately
	if e.Data != nil {
		dataBytes, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		aux.Data = dataBytes
	}

	return json.Marshal(aux)
}

// UnmarshalJSON customizes JSON deserialization for EventWithData
func (e *EventWithData) UnmarshalJSON(data []byte) error {
	type Alias EventWithData
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	// Unmarshal data based on event type
	if len(aux.Data) > 0 {
		eventData := emptyDataFor(aux.Type)
		if eventData == nil {
			// For unknown types, use raw map
			var rawData map[string]interface{}
			if err := json.Unmarshal(aux.Data, &rawData); err != nil {
				return err
			}
			e.Data = &GenericEventData{Type: aux.Type, Data: rawData}
			return nil
		}

		if err := json.Unmarshal(aux.Data, eventData); err != nil {
			return err
		}
		e.Data = eventData
	}

	return nil
}

// GenericEventData is a fallback for events that don't have a specific type
type GenericEventData struct {
	Type EventType              `json:"-"`
	Data map[string]interface{} `json:"-"`
}

// EventType returns the event type for GenericEventData
func (d *GenericEventData) EventType() EventType {
	return d.Type
}

// MarshalJSON customizes JSON serialization for GenericEventData
func (d *GenericEventData) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Data)
}

// UnmarshalJSON customizes JSON deserialization for GenericEventData
func (d *GenericEventData) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &d.Data)
}
