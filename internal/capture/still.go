package capture

import (
	"time"

	"github.com/google/uuid"
)

// Still is a captured photo handed to the caller at the end of a session.
type Still struct {
	ID         string
	Frame      *Frame
	Tags       []string
	CapturedAt time.Time
}

// NewStill snapshots frame as a still with a fresh ID.
func NewStill(frame *Frame, tags ...string) *Still {
	return &Still{
		ID:         uuid.New().String(),
		Frame:      frame,
		Tags:       tags,
		CapturedAt: time.Now(),
	}
}

// JPEG encodes the still.
func (s *Still) JPEG() ([]byte, error) {
	return EncodeJPEG(s.Frame)
}
