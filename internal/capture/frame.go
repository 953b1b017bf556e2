package capture

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"
)

// PixelFormat describes the byte layout of a Frame.
type PixelFormat int

const (
	// FormatGray is one 8-bit luminance byte per pixel.
	FormatGray PixelFormat = iota + 1
	// FormatBGR is three bytes per pixel in blue, green, red order (OpenCV native).
	FormatBGR
)

// BytesPerPixel returns the number of bytes a single pixel occupies.
func (p PixelFormat) BytesPerPixel() int {
	switch p {
	case FormatGray:
		return 1
	case FormatBGR:
		return 3
	default:
		return 0
	}
}

func (p PixelFormat) String() string {
	switch p {
	case FormatGray:
		return "gray"
	case FormatBGR:
		return "bgr"
	default:
		return fmt.Sprintf("PixelFormat(%d)", int(p))
	}
}

// ErrInvalidFrame is returned when frame dimensions and buffer size disagree.
var ErrInvalidFrame = errors.New("invalid frame")

var frameSeq atomic.Uint64

// Frame is an immutable, timestamped bitmap sample from a frame source.
// The pixel buffer is owned by the Frame and never written after construction.
type Frame struct {
	pix       []byte
	width     int
	height    int
	format    PixelFormat
	timestamp time.Time
	seq       uint64
}

// NewFrame wraps pix as a Frame. The caller must not modify pix afterwards.
func NewFrame(pix []byte, width, height int, format PixelFormat, ts time.Time) (*Frame, error) {
	bpp := format.BytesPerPixel()
	if bpp == 0 {
		return nil, fmt.Errorf("%w: unsupported pixel format %s", ErrInvalidFrame, format)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrInvalidFrame, width, height)
	}
	if len(pix) != width*height*bpp {
		return nil, fmt.Errorf("%w: buffer is %d bytes, want %d", ErrInvalidFrame, len(pix), width*height*bpp)
	}

	return &Frame{
		pix:       pix,
		width:     width,
		height:    height,
		format:    format,
		timestamp: ts,
		seq:       frameSeq.Add(1),
	}, nil
}

// FrameFromMat copies a BGR, BGRA or grayscale Mat into a new Frame.
func FrameFromMat(mat gocv.Mat, ts time.Time) (*Frame, error) {
	if mat.Empty() {
		return nil, fmt.Errorf("%w: empty mat", ErrInvalidFrame)
	}

	switch mat.Channels() {
	case 1:
		return NewFrame(mat.ToBytes(), mat.Cols(), mat.Rows(), FormatGray, ts)
	case 3:
		return NewFrame(mat.ToBytes(), mat.Cols(), mat.Rows(), FormatBGR, ts)
	case 4:
		bgr := gocv.NewMat()
		defer bgr.Close()
		gocv.CvtColor(mat, &bgr, gocv.ColorBGRAToBGR)
		return NewFrame(bgr.ToBytes(), bgr.Cols(), bgr.Rows(), FormatBGR, ts)
	default:
		return nil, fmt.Errorf("%w: %d channels", ErrInvalidFrame, mat.Channels())
	}
}

// Width returns the frame width in pixels.
func (f *Frame) Width() int { return f.width }

// Height returns the frame height in pixels.
func (f *Frame) Height() int { return f.height }

// Format returns the pixel format.
func (f *Frame) Format() PixelFormat { return f.format }

// Timestamp returns the capture time.
func (f *Frame) Timestamp() time.Time { return f.timestamp }

// Seq returns the process-wide sequence number assigned at construction.
func (f *Frame) Seq() uint64 { return f.seq }

// Luma returns the 8-bit luminance at (x, y). Coordinates must be in range.
func (f *Frame) Luma(x, y int) uint8 {
	switch f.format {
	case FormatGray:
		return f.pix[y*f.width+x]
	default:
		i := (y*f.width + x) * 3
		b, g, r := uint32(f.pix[i]), uint32(f.pix[i+1]), uint32(f.pix[i+2])
		// Rec.601 weights scaled by 256.
		return uint8((29*b + 150*g + 77*r) >> 8)
	}
}

// Mat returns a gocv Mat backed by a copy of the frame's pixels.
// The caller must Close it.
func (f *Frame) Mat() (gocv.Mat, error) {
	mt := gocv.MatTypeCV8UC3
	if f.format == FormatGray {
		mt = gocv.MatTypeCV8UC1
	}
	buf := make([]byte, len(f.pix))
	copy(buf, f.pix)
	return gocv.NewMatFromBytes(f.height, f.width, mt, buf)
}

// Bytes returns a copy of the raw pixel buffer.
func (f *Frame) Bytes() []byte {
	buf := make([]byte, len(f.pix))
	copy(buf, f.pix)
	return buf
}
