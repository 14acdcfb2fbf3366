// Package events carries benchmark progress from the runner to live subscribers.
package events

import (
	"encoding/json"
	"time"
)

// EventType identifies a progress event
type EventType string

const (
	// RunStarted is published once, before any branch runs
	RunStarted EventType = "run_started"
	// BranchFinished is published when one synthesis branch has a result
	BranchFinished EventType = "branch_finished"
	// RunFinished is published last; no events follow it for the run
	RunFinished EventType = "run_finished"
)

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// RunStartedData contains data for RunStarted events
type RunStartedData struct {
	Entry     string `json:"entry"`
	Problem   string `json:"problem"`
	Display   string `json:"display"`
	Precision int    `json:"precision"`
	NumQudits int    `json:"num_qudits"`
}

// EventType returns the event type for RunStartedData
func (d *RunStartedData) EventType() EventType {
	return RunStarted
}

// BranchFinishedData contains data for BranchFinished events
type BranchFinishedData struct {
	Label          string   `json:"label"`
	Status         string   `json:"status"` // "succeeded", "failed"
	GateSet        []string `json:"gate_set,omitempty"`
	GateCount      int      `json:"gate_count"`
	Distance       *float64 `json:"distance,omitempty"`
	ElapsedSeconds *float64 `json:"elapsed_seconds,omitempty"`
	ArtifactPath   string   `json:"artifact_path,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// EventType returns the event type for BranchFinishedData
func (d *BranchFinishedData) EventType() EventType {
	return BranchFinished
}

// RunFinishedData contains data for RunFinished events
type RunFinishedData struct {
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Branches int    `json:"branches"`
}

// EventType returns the event type for RunFinishedData
func (d *RunFinishedData) EventType() EventType {
	return RunFinished
}

// Event is one progress update for a run
type Event struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Data      EventData `json:"data"`
}

// NewEvent stamps data for runID with the current time
func NewEvent(runID string, data EventData) Event {
	return Event{
		Type:      data.EventType(),
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// UnmarshalJSON decodes Data into the concrete type named by Type
func (e *Event) UnmarshalJSON(data []byte) error {
	type Alias Event
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if len(aux.Data) == 0 || string(aux.Data) == "null" {
		e.Data = nil
		return nil
	}

	var eventData EventData
	switch aux.Type {
	case RunStarted:
		eventData = &RunStartedData{}
	case BranchFinished:
		eventData = &BranchFinishedData{}
	case RunFinished:
		eventData = &RunFinishedData{}
	default:
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
