package capture

import (
	"errors"
	"fmt"
)

// MaxMotionScore is the score of a patch that differs from the template by
// the full channel range at every sample.
const MaxMotionScore = 1.0

var (
	// ErrTemplateCaptured is returned when Capture is called a second time.
	ErrTemplateCaptured = errors.New("motion template already captured")
	// ErrTemplateEmpty is returned by Score before Capture.
	ErrTemplateEmpty = errors.New("motion template not captured")
	// ErrTemplateReleased is returned after Release.
	ErrTemplateReleased = errors.New("motion template released")
)

// TemplateConfig places the template footprint in a normalized frame of
// 2*ResizeCenterX by 2*ResizeCenterY samples. XPos and YPos offset the
// footprint's top-left corner from the center.
type TemplateConfig struct {
	Width         int `json:"width" validate:"gt=0"`
	Height        int `json:"height" validate:"gt=0"`
	XPos          int `json:"x_pos"`
	YPos          int `json:"y_pos"`
	ResizeCenterX int `json:"resize_center_x" validate:"gt=0"`
	ResizeCenterY int `json:"resize_center_y" validate:"gt=0"`
}

// DefaultTemplateConfig covers the central 40x40 samples of a 160x120
// normalized frame, where a well-placed face sits.
func DefaultTemplateConfig() TemplateConfig {
	return TemplateConfig{
		Width:         40,
		Height:        40,
		XPos:          -20,
		YPos:          -20,
		ResizeCenterX: 80,
		ResizeCenterY: 60,
	}
}

// Validate checks that the footprint lies inside the normalized frame.
func (c TemplateConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 || c.ResizeCenterX <= 0 || c.ResizeCenterY <= 0 {
		return fmt.Errorf("template dimensions must be positive: %+v", c)
	}
	left, top := c.ResizeCenterX+c.XPos, c.ResizeCenterY+c.YPos
	if left < 0 || top < 0 || left+c.Width > 2*c.ResizeCenterX || top+c.Height > 2*c.ResizeCenterY {
		return fmt.Errorf("template footprint (%d,%d %dx%d) outside normalized frame %dx%d",
			left, top, c.Width, c.Height, 2*c.ResizeCenterX, 2*c.ResizeCenterY)
	}
	return nil
}

// MotionTemplate is the reference luminance patch that later frames are
// compared against. It is captured once and read-only afterwards.
type MotionTemplate struct {
	cfg      TemplateConfig
	buf      []byte
	captured bool
	released bool
	seq      uint64
}

// NewMotionTemplate allocates the template buffer for cfg.
func NewMotionTemplate(cfg TemplateConfig) (*MotionTemplate, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &MotionTemplate{
		cfg: cfg,
		buf: make([]byte, cfg.Width*cfg.Height),
	}, nil
}

// Config returns the template geometry.
func (t *MotionTemplate) Config() TemplateConfig {
	return t.cfg
}

// Captured reports whether the template holds a reference patch.
func (t *MotionTemplate) Captured() bool {
	return t.captured && !t.released
}

// FrameSeq returns the sequence number of the frame the template was taken from.
func (t *MotionTemplate) FrameSeq() uint64 {
	return t.seq
}

// Capture samples the footprint of f into the template.
func (t *MotionTemplate) Capture(f *Frame) error {
	if t.released {
		return ErrTemplateReleased
	}
	if t.captured {
		return ErrTemplateCaptured
	}
	if f == nil {
		return fmt.Errorf("%w: nil frame", ErrInvalidFrame)
	}

	left, top := t.origin()
	i := 0
	for ty := 0; ty < t.cfg.Height; ty++ {
		sy := t.sourceY(f, top+ty)
		for tx := 0; tx < t.cfg.Width; tx++ {
			t.buf[i] = f.Luma(t.sourceX(f, left+tx), sy)
			i++
		}
	}
	t.captured = true
	t.seq = f.Seq()
	return nil
}

// Score compares the footprint of f with the template and returns the sum
// of absolute luminance differences normalized to [0, MaxMotionScore].
// It runs in O(template area) and does not allocate.
func (t *MotionTemplate) Score(f *Frame) (float64, error) {
	switch {
	case t.released:
		return 0, ErrTemplateReleased
	case !t.captured:
		return 0, ErrTemplateEmpty
	case f == nil:
		return 0, fmt.Errorf("%w: nil frame", ErrInvalidFrame)
	}

	left, top := t.origin()
	var sum uint64
	i := 0
	for ty := 0; ty < t.cfg.Height; ty++ {
		sy := t.sourceY(f, top+ty)
		for tx := 0; tx < t.cfg.Width; tx++ {
			luma, ref := f.Luma(t.sourceX(f, left+tx), sy), t.buf[i]
			if luma > ref {
				sum += uint64(luma - ref)
			} else {
				sum += uint64(ref - luma)
			}
			i++
		}
	}

	return float64(sum) / float64(len(t.buf)*255) * MaxMotionScore, nil
}

// Release drops the template buffer.
func (t *MotionTemplate) Release() {
	t.buf = nil
	t.released = true
}

func (t *MotionTemplate) origin() (int, int) {
	return t.cfg.ResizeCenterX + t.cfg.XPos, t.cfg.ResizeCenterY + t.cfg.YPos
}

// sourceX maps a normalized column to the nearest frame column.
func (t *MotionTemplate) sourceX(f *Frame, nx int) int {
	sx := (nx*f.width + f.width/2) / (2 * t.cfg.ResizeCenterX)
	if sx >= f.width {
		sx = f.width - 1
	}
	return sx
}

func (t *MotionTemplate) sourceY(f *Frame, ny int) int {
	sy := (ny*f.height + f.height/2) / (2 * t.cfg.ResizeCenterY)
	if sy >= f.height {
		sy = f.height - 1
	}
	return sy
}
