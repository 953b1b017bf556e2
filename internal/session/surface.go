package session

import (
	"errors"
	"fmt"

	"github.com/ayusman/livecapture/internal/capture"
)

// Surface turns the frame current at capture time into a still.
type Surface interface {
	Capture(frame *capture.Frame, tags ...string) (*capture.Still, error)
}

// SurfaceFunc adapts a plain function to Surface.
type SurfaceFunc func(frame *capture.Frame, tags ...string) (*capture.Still, error)

func (f SurfaceFunc) Capture(frame *capture.Frame, tags ...string) (*capture.Still, error) {
	return f(frame, tags...)
}

var errNoFrame = errors.New("no frame to capture")

// FrameSurface snapshots the analysed frame itself.
type FrameSurface struct {
	Mirror bool
}

func (s FrameSurface) Capture(frame *capture.Frame, tags ...string) (*capture.Still, error) {
	if frame == nil {
		return nil, errNoFrame
	}
	if s.Mirror {
		mirrored, err := capture.Mirror(frame)
		if err != nil {
			return nil, fmt.Errorf("mirror still: %w", err)
		}
		frame = mirrored
	}
	return capture.NewStill(frame, tags...), nil
}
