package capture

import (
	"fmt"
	"sync"
	"time"
)

// ReplayCamera plays back a fixed list of frames. Tests and the synthetic
// demo source use it in place of a device.
type ReplayCamera struct {
	frames  []*Frame
	index   int
	loop    bool
	deny    bool
	fps     int
	reads   int
	mu      sync.Mutex
	running bool
}

// NewReplayCamera creates a camera that returns frames in order. With loop
// set it starts over after the last frame; otherwise reads fail once the
// list is exhausted.
func NewReplayCamera(frames []*Frame, loop bool) *ReplayCamera {
	return &ReplayCamera{
		frames: frames,
		loop:   loop,
		fps:    DefaultFPS,
	}
}

// DenyAccess makes Open fail with ErrNoCameraAccess.
func (c *ReplayCamera) DenyAccess(deny bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deny = deny
}

func (c *ReplayCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deny {
		return fmt.Errorf("%w: replay camera denied", ErrNoCameraAccess)
	}
	c.running = true
	c.index = 0
	return nil
}

func (c *ReplayCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

// ReadFrame returns the next frame re-stamped with the current time, so
// looping playback still yields increasing timestamps.
func (c *ReplayCamera) ReadFrame() (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, ErrCameraNotOpen
	}

	if len(c.frames) == 0 {
		return nil, fmt.Errorf("no frames available")
	}

	if c.index >= len(c.frames) {
		if c.loop {
			c.index = 0
		} else {
			return nil, fmt.Errorf("no more frames")
		}
	}

	src := c.frames[c.index]
	c.index++
	c.reads++

	return NewFrame(src.pix, src.width, src.height, src.format, time.Now())
}

func (c *ReplayCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fps = fps
}

func (c *ReplayCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *ReplayCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Reads returns how many frames have been served.
func (c *ReplayCamera) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// SetFrames replaces the frame sequence
func (c *ReplayCamera) SetFrames(frames []*Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = frames
	c.index = 0
}

// Reset restarts playback from the beginning
func (c *ReplayCamera) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = 0
}
