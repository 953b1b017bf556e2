package capture

import (
	"fmt"
	"time"
)

// Luminance levels used by the synthetic generators.
const (
	SyntheticBackground = 30
	SyntheticFaceBase   = 140
)

// SolidFrame returns a grayscale frame filled with luma. It panics if the
// size is not positive.
func SolidFrame(width, height int, luma uint8) *Frame {
	pix := make([]byte, width*height)
	for i := range pix {
		pix[i] = luma
	}
	return mustFrame(pix, width, height)
}

// FaceFrame returns a grayscale frame with a textured bright blob roughly
// the size of a face at arm's length, centered and then shifted by (dx, dy).
// Blob pixels are never darker than SyntheticFaceBase and the background is
// SyntheticBackground, so a luminance threshold between the two finds it.
func FaceFrame(width, height, dx, dy int) *Frame {
	faceW, faceH := width*35/100, height/2
	left := (width-faceW)/2 + dx
	top := (height-faceH)/2 + dy

	pix := make([]byte, width*height)
	for y := 0; y < height; y++ {
		row := pix[y*width : (y+1)*width]
		for x := range row {
			fx, fy := x-left, y-top
			if fx < 0 || fy < 0 || fx >= faceW || fy >= faceH {
				row[x] = SyntheticBackground
				continue
			}
			// Diagonal sawtooth so any shift changes most samples.
			row[x] = uint8(SyntheticFaceBase + ((fx+fy)%32)*3)
		}
	}
	return mustFrame(pix, width, height)
}

// NodSequence returns settle centered face frames followed by one frame
// with the face moved down by amplitude pixels.
func NodSequence(width, height, settle, amplitude int) []*Frame {
	frames := make([]*Frame, 0, settle+1)
	for i := 0; i < settle; i++ {
		frames = append(frames, FaceFrame(width, height, 0, 0))
	}
	return append(frames, FaceFrame(width, height, 0, amplitude))
}

func mustFrame(pix []byte, width, height int) *Frame {
	f, err := NewFrame(pix, width, height, FormatGray, time.Now())
	if err != nil {
		panic(fmt.Sprintf("synthetic frame: %v", err))
	}
	return f
}
