package detector

import (
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/ayusman/livecapture/internal/capture"
	"gocv.io/x/gocv"
)

// YuNetDetector uses OpenCV's FaceDetectorYN with the YuNet ONNX model.
type YuNetDetector struct {
	detector gocv.FaceDetectorYN
	faces    gocv.Mat
	mu       sync.Mutex
}

// NewYuNet loads the model at cfg.ModelPath.
func NewYuNet(cfg Config) (*YuNetDetector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("yunet model: %w", err)
	}

	// Input size is updated per frame.
	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath,
		"",
		image.Pt(capture.DefaultWidth, capture.DefaultHeight),
		float32(cfg.MinConfidence),
		0.3,
		5000,
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &YuNetDetector{
		detector: detector,
		faces:    gocv.NewMat(),
	}, nil
}

// Detect runs the model on frame.
func (d *YuNetDetector) Detect(frame *capture.Frame) ([]FaceRegion, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	img, err := bgrMat(frame)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	d.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))
	d.detector.Detect(img, &d.faces)

	// Rows are x, y, w, h, five landmark pairs, score.
	regions := make([]FaceRegion, 0, d.faces.Rows())
	for r := 0; r < d.faces.Rows(); r++ {
		regions = append(regions, FaceRegion{
			X:             int(d.faces.GetFloatAt(r, 0)),
			Y:             int(d.faces.GetFloatAt(r, 1)),
			Width:         int(d.faces.GetFloatAt(r, 2)),
			Height:        int(d.faces.GetFloatAt(r, 3)),
			Confidence:    float64(d.faces.GetFloatAt(r, 14)),
			HasConfidence: true,
		})
	}

	return regions, nil
}

// Close releases the model.
func (d *YuNetDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faces.Close()
	d.detector.Close()
	return nil
}

// bgrMat returns frame as a three-channel Mat. The caller must Close it.
func bgrMat(frame *capture.Frame) (gocv.Mat, error) {
	img, err := frame.Mat()
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("frame to mat: %w", err)
	}
	if frame.Format() != capture.FormatGray {
		return img, nil
	}
	defer img.Close()

	bgr := gocv.NewMat()
	gocv.CvtColor(img, &bgr, gocv.ColorGrayToBGR)
	return bgr, nil
}
