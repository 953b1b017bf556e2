package detector

import (
	"sync"

	"github.com/ayusman/livecapture/internal/capture"
)

// MockDetector is a test implementation of the FaceDetector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu     sync.Mutex
	faces  []FaceRegion
	err    error
	calls  int
	closed bool
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetFaces sets the regions that will be returned by Detect.
func (m *MockDetector) SetFaces(faces ...FaceRegion) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faces = faces
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Detect returns the pre-configured faces or error.
func (m *MockDetector) Detect(frame *capture.Frame) ([]FaceRegion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]FaceRegion, len(m.faces))
	copy(out, m.faces)
	return out, nil
}

// Calls returns how many times Detect ran.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close marks the mock closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// CenteredFace returns a region that qualifies under DefaultBounds in a
// frame of the given size.
func CenteredFace(frameWidth, frameHeight int) FaceRegion {
	w, h := frameWidth*35/100, frameHeight/2
	return FaceRegion{
		X:             (frameWidth - w) / 2,
		Y:             (frameHeight - h) / 2,
		Width:         w,
		Height:        h,
		Confidence:    0.95,
		HasConfidence: true,
	}
}
