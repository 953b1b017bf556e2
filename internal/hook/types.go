// Package hook runs external programs when a capture session ends.
package hook

import "encoding/json"

// Event names a session outcome a hook can subscribe to.
type Event string

const (
	EventSucceeded Event = "succeeded"
	EventFailed    Event = "failed"
)

// Manifest describes a hook's metadata and the events it handles.
type Manifest struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Executable  string          `json:"executable"`
	Events      []Event         `json:"events"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Handles reports whether the hook subscribes to ev.
func (m Manifest) Handles(ev Event) bool {
	for _, e := range m.Events {
		if e == ev {
			return true
		}
	}
	return false
}

// Request is written to the hook's stdin as JSON.
type Request struct {
	Event       Event           `json:"event"`
	SessionID   string          `json:"session_id"`
	Challenge   string          `json:"challenge,omitempty"`
	FailureCode int             `json:"failure_code,omitempty"`
	Trigger     string          `json:"trigger,omitempty"`
	MotionScore float64         `json:"motion_score"`
	Images      []string        `json:"images,omitempty"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Response is read from the hook's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Hook is a discovered hook with its manifest and location.
type Hook struct {
	Manifest   Manifest
	Path       string
	Executable string
}
