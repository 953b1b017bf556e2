package detector

import "github.com/ayusman/livecapture/internal/capture"

// minBrightFraction is the share of sampled pixels that must be bright
// before a region is reported.
const minBrightFraction = 0.02

// BrightRegionDetector reports the bounding box of all pixels at or above a
// luminance threshold. It needs no model and pairs with the synthetic frame
// generators for demos and tests.
type BrightRegionDetector struct {
	threshold uint8
	step      int
}

// NewBrightRegion creates a detector with the given luminance threshold.
func NewBrightRegion(threshold uint8) *BrightRegionDetector {
	if threshold == 0 {
		threshold = 128
	}
	return &BrightRegionDetector{threshold: threshold, step: 2}
}

// Detect returns at most one region. It has no confidence.
func (d *BrightRegionDetector) Detect(frame *capture.Frame) ([]FaceRegion, error) {
	w, h := frame.Width(), frame.Height()
	minX, minY, maxX, maxY := w, h, -1, -1
	bright, sampled := 0, 0

	for y := 0; y < h; y += d.step {
		for x := 0; x < w; x += d.step {
			sampled++
			if frame.Luma(x, y) < d.threshold {
				continue
			}
			bright++
			minX, minY = min(minX, x), min(minY, y)
			maxX, maxY = max(maxX, x), max(maxY, y)
		}
	}

	if sampled == 0 || float64(bright)/float64(sampled) < minBrightFraction {
		return nil, nil
	}
	return []FaceRegion{{
		X:      minX,
		Y:      minY,
		Width:  maxX - minX + d.step,
		Height: maxY - minY + d.step,
	}}, nil
}

// Close is a no-op.
func (d *BrightRegionDetector) Close() error {
	return nil
}
