package capture

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// UploadMaxSide is the default longest side used by ResizeForUpload.
const UploadMaxSide = 640

// EncodeJPEG encodes a frame as JPEG.
func EncodeJPEG(f *Frame) ([]byte, error) {
	mat, err := f.Mat()
	if err != nil {
		return nil, fmt.Errorf("frame to mat: %w", err)
	}
	defer mat.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases native memory that Close frees.
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// Mirror returns a horizontally flipped copy of f, matching what the user
// sees in a front-camera preview.
func Mirror(f *Frame) (*Frame, error) {
	mat, err := f.Mat()
	if err != nil {
		return nil, fmt.Errorf("frame to mat: %w", err)
	}
	defer mat.Close()

	flipped := gocv.NewMat()
	defer flipped.Close()
	gocv.Flip(mat, &flipped, 1)

	return FrameFromMat(flipped, f.Timestamp())
}

// ResizeForUpload scales f so that its longest side is at most maxSide,
// preserving the aspect ratio. Frames already small enough are returned as is.
func ResizeForUpload(f *Frame, maxSide int) (*Frame, error) {
	if maxSide <= 0 {
		maxSide = UploadMaxSide
	}
	longest := f.Width()
	if f.Height() > longest {
		longest = f.Height()
	}
	if longest <= maxSide {
		return f, nil
	}

	scale := float64(maxSide) / float64(longest)
	size := image.Pt(int(float64(f.Width())*scale), int(float64(f.Height())*scale))

	mat, err := f.Mat()
	if err != nil {
		return nil, fmt.Errorf("frame to mat: %w", err)
	}
	defer mat.Close()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(mat, &resized, size, 0, 0, gocv.InterpolationArea)

	return FrameFromMat(resized, f.Timestamp())
}
