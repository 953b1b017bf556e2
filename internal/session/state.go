// Package session runs one live capture attempt: it waits for a stable
// face, captures a motion template and a first still, then captures a
// second still once the head moves or the trigger delay runs out.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/livecapture/internal/capture"
)

// State is the phase of a capture session.
type State int

const (
	Idle State = iota
	FaceSearching
	TemplateArmed
	CapturingFirst
	AwaitingTrigger
	CapturingDelay
	CapturingSecond
	Completed
	Failed
)

var stateNames = [...]string{
	Idle:            "idle",
	FaceSearching:   "face_searching",
	TemplateArmed:   "template_armed",
	CapturingFirst:  "capturing_first",
	AwaitingTrigger: "awaiting_trigger",
	CapturingDelay:  "capturing_delay",
	CapturingSecond: "capturing_second",
	Completed:       "completed",
	Failed:          "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == Completed || s == Failed
}

// FailureCode identifies why a session failed. The numeric values are part
// of the external contract.
type FailureCode int

const (
	NoCameraAccess   FailureCode = 1
	NoFaceFound      FailureCode = 2
	NoMotionDetected FailureCode = 3
)

func (c FailureCode) String() string {
	switch c {
	case NoCameraAccess:
		return "no_camera_access"
	case NoFaceFound:
		return "no_face_found"
	case NoMotionDetected:
		return "no_motion_detected"
	default:
		return fmt.Sprintf("FailureCode(%d)", int(c))
	}
}

// Error makes a FailureCode usable as an error.
func (c FailureCode) Error() string {
	return "capture failed: " + c.String()
}

// ParseFailureCode converts a stored code back to a FailureCode.
func ParseFailureCode(v int) (FailureCode, error) {
	c := FailureCode(v)
	switch c {
	case NoCameraAccess, NoFaceFound, NoMotionDetected:
		return c, nil
	default:
		return 0, fmt.Errorf("unknown failure code %d", v)
	}
}

// Trigger records what caused the second capture.
type Trigger int

const (
	TriggerNone Trigger = iota
	TriggerMotion
	TriggerDelay
)

func (t Trigger) String() string {
	switch t {
	case TriggerMotion:
		return "motion"
	case TriggerDelay:
		return "delay"
	default:
		return "none"
	}
}

// ErrCancelled is returned by Wait when the session was cancelled.
var ErrCancelled = errors.New("session cancelled")

// Result is the single terminal outcome of a session. Either both images
// are set and Code is zero, or Code is set and both images are nil.
type Result struct {
	SessionID   string
	Challenge   Challenge
	Image1      *capture.Still
	Image2      *capture.Still
	Code        FailureCode
	Trigger     Trigger
	MotionScore float64
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Succeeded reports whether both stills were captured.
func (r Result) Succeeded() bool {
	return r.Code == 0 && r.Image1 != nil && r.Image2 != nil
}

// Err returns the failure code as an error, or nil on success.
func (r Result) Err() error {
	if r.Code == 0 {
		return nil
	}
	return r.Code
}
