// Package detector finds faces in frames. The session consumes it through
// the FaceDetector interface and only ever looks at the selected region.
package detector

import (
	"fmt"
	"time"

	"github.com/ayusman/livecapture/internal/capture"
)

// FaceDetector defines the interface for face detection implementations.
type FaceDetector interface {
	// Detect analyzes a frame and returns the face regions found in it,
	// in frame pixel coordinates. Returns an empty slice if there are none.
	Detect(frame *capture.Frame) ([]FaceRegion, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Func adapts a plain function to FaceDetector.
type Func func(frame *capture.Frame) ([]FaceRegion, error)

// Detect calls f.
func (f Func) Detect(frame *capture.Frame) ([]FaceRegion, error) { return f(frame) }

// Close is a no-op.
func (f Func) Close() error { return nil }

// Backend names accepted by New.
const (
	BackendYuNet    = "yunet"
	BackendCascade  = "cascade"
	BackendExternal = "external"
	BackendBright   = "bright"
)

// Config holds configuration options for face detection.
type Config struct {
	// Backend selects the implementation (default: yunet).
	Backend string

	// ModelPath is the YuNet ONNX model file.
	ModelPath string

	// CascadePath is the Haar cascade XML file.
	CascadePath string

	// Command runs the external detection service.
	Command []string

	// IdleTimeout shuts the external service down after this long without
	// requests.
	IdleTimeout time.Duration

	// RequestTimeout bounds one round trip to the external service. A
	// service that does not answer in time is killed and restarted on the
	// next request.
	RequestTimeout time.Duration

	// MinConfidence is the score threshold passed to model backends (0.0-1.0).
	MinConfidence float64

	// BrightThreshold is the luminance a pixel must reach to count as face
	// for the bright-region backend.
	BrightThreshold uint8
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Backend:         BackendYuNet,
		ModelPath:       "models/face_detection_yunet_2023mar.onnx",
		CascadePath:     "models/haarcascade_frontalface_default.xml",
		Command:         []string{"python3", "scripts/face_service.py"},
		IdleTimeout:     30 * time.Second,
		RequestTimeout:  DefaultRequestTimeout,
		MinConfidence:   0.6,
		BrightThreshold: 128,
	}
}

// New creates the detector named by cfg.Backend.
func New(cfg Config) (FaceDetector, error) {
	switch cfg.Backend {
	case BackendYuNet, "":
		return NewYuNet(cfg)
	case BackendCascade:
		return NewCascade(cfg)
	case BackendExternal:
		return NewExternal(cfg)
	case BackendBright:
		return NewBrightRegion(cfg.BrightThreshold), nil
	default:
		return nil, fmt.Errorf("unknown detector backend %q", cfg.Backend)
	}
}
