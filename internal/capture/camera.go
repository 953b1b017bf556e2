// Package capture provides the frame source, captured stills and the motion
// template used by the live capture session.
package capture

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Default device settings.
const (
	DefaultFPS    = 15
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned when reading from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrNoCameraAccess is returned when the device cannot be opened, either
	// because permission was denied or because it does not exist.
	ErrNoCameraAccess = errors.New("no camera access")
	// ErrNoFrame is returned when the device is open but has no frame ready,
	// as webcams do for a few reads while warming up.
	ErrNoFrame = errors.New("no frame available")
)

// Camera is a source of frames. Implementations are safe for concurrent use.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*Frame, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// DeviceOptions requests a capture mode. Devices pick the closest mode they
// support; zero fields use the defaults.
type DeviceOptions struct {
	Width  int
	Height int
	FPS    int
}

func (o DeviceOptions) withDefaults() DeviceOptions {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.FPS <= 0 {
		o.FPS = DefaultFPS
	}
	return o
}

// deviceCamera reads from a local video device through gocv.
type deviceCamera struct {
	id   int
	opts DeviceOptions

	mu  sync.Mutex
	vc  *gocv.VideoCapture
	buf gocv.Mat
}

// NewCamera returns the video device with the given index in the default mode.
func NewCamera(deviceID int) Camera {
	return NewDeviceCamera(deviceID, DeviceOptions{})
}

// NewDeviceCamera returns the video device with the given index, requesting
// the mode in opts when opened.
func NewDeviceCamera(deviceID int, opts DeviceOptions) Camera {
	return &deviceCamera{id: deviceID, opts: opts.withDefaults()}
}

// Open starts the device. Failures wrap ErrNoCameraAccess. Opening an open
// camera is a no-op.
func (c *deviceCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.vc != nil {
		return nil
	}

	vc, err := gocv.OpenVideoCapture(c.id)
	if err != nil {
		return fmt.Errorf("%w: device %d: %v", ErrNoCameraAccess, c.id, err)
	}
	// Some platforms only report a denied permission by never opening.
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("%w: device %d did not open", ErrNoCameraAccess, c.id)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(c.opts.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(c.opts.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(c.opts.FPS))

	c.vc = vc
	c.buf = gocv.NewMat()
	return nil
}

// Close releases the device. Closing a closed camera is a no-op.
func (c *deviceCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.vc == nil {
		return nil
	}

	err := c.vc.Close()
	c.buf.Close()
	c.vc = nil
	return err
}

// ReadFrame grabs the next frame and copies it into an immutable Frame. The
// grab buffer is reused between reads.
func (c *deviceCamera) ReadFrame() (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.vc == nil {
		return nil, ErrCameraNotOpen
	}
	if ok := c.vc.Read(&c.buf); !ok || c.buf.Empty() {
		return nil, fmt.Errorf("%w: device %d", ErrNoFrame, c.id)
	}

	return FrameFromMat(c.buf, time.Now())
}

// SetFPS changes the requested frame rate, applying it immediately when the
// device is open. Non-positive values are ignored.
func (c *deviceCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.opts.FPS = fps
	if c.vc != nil {
		c.vc.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

func (c *deviceCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts.FPS
}

func (c *deviceCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vc != nil
}
