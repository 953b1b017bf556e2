package detector

import (
	"fmt"
	"image"
	"sync"

	"github.com/ayusman/livecapture/internal/capture"
	"gocv.io/x/gocv"
)

// cascadeSearchPaths are tried when the configured cascade file cannot be loaded.
var cascadeSearchPaths = []string{
	"/usr/local/share/opencv4/haarcascades/haarcascade_frontalface_default.xml",
	"/usr/share/opencv4/haarcascades/haarcascade_frontalface_default.xml",
	"/opt/homebrew/share/opencv4/haarcascades/haarcascade_frontalface_default.xml",
}

// CascadeDetector finds frontal faces with an OpenCV Haar cascade. It
// reports no confidence.
type CascadeDetector struct {
	classifier gocv.CascadeClassifier
	gray       gocv.Mat
	mu         sync.Mutex
}

// NewCascade loads the cascade at cfg.CascadePath, falling back to the
// usual OpenCV install locations.
func NewCascade(cfg Config) (*CascadeDetector, error) {
	classifier := gocv.NewCascadeClassifier()

	loaded := classifier.Load(cfg.CascadePath)
	for _, path := range cascadeSearchPaths {
		if loaded {
			break
		}
		loaded = classifier.Load(path)
	}
	if !loaded {
		classifier.Close()
		return nil, fmt.Errorf("failed to load face cascade from %s or alternative paths", cfg.CascadePath)
	}

	return &CascadeDetector{
		classifier: classifier,
		gray:       gocv.NewMat(),
	}, nil
}

// Detect runs the cascade on an equalized grayscale copy of frame.
func (d *CascadeDetector) Detect(frame *capture.Frame) ([]FaceRegion, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	img, err := frame.Mat()
	if err != nil {
		return nil, fmt.Errorf("frame to mat: %w", err)
	}
	defer img.Close()

	if frame.Format() == capture.FormatGray {
		gocv.EqualizeHist(img, &d.gray)
	} else {
		gocv.CvtColor(img, &d.gray, gocv.ColorBGRToGray)
		gocv.EqualizeHist(d.gray, &d.gray)
	}

	minSide := frame.Width() / 8
	rects := d.classifier.DetectMultiScaleWithParams(
		d.gray,
		1.1,
		3,
		0,
		image.Pt(minSide, minSide),
		image.Pt(frame.Width(), frame.Height()),
	)

	regions := make([]FaceRegion, len(rects))
	for i, r := range rects {
		regions[i] = FaceRegion{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
	}
	return regions, nil
}

// Close releases the classifier.
func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gray.Close()
	return d.classifier.Close()
}
