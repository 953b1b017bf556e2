package detector

import "image"

// FaceRegion is a detected face bounding box in frame pixels.
type FaceRegion struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`

	// Confidence is only meaningful when HasConfidence is set.
	Confidence    float64 `json:"confidence,omitempty"`
	HasConfidence bool    `json:"has_confidence"`
}

// Area returns the region area in pixels.
func (r FaceRegion) Area() int {
	return r.Width * r.Height
}

// Center returns the center point of the region.
func (r FaceRegion) Center() image.Point {
	return image.Pt(r.X+r.Width/2, r.Y+r.Height/2)
}

// Rect returns the region as an image.Rectangle.
func (r FaceRegion) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// SelectBest picks the region the session tracks when several are found.
// The highest confidence wins, with ties going to the larger area. Regions
// without a confidence rank below any that carry one and among themselves
// by area. It returns nil when regions is empty.
func SelectBest(regions []FaceRegion) *FaceRegion {
	var best *FaceRegion
	for i := range regions {
		r := &regions[i]
		if best == nil || better(r, best) {
			best = r
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

func better(a, b *FaceRegion) bool {
	if a.HasConfidence != b.HasConfidence {
		return a.HasConfidence
	}
	if a.HasConfidence && a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.Area() > b.Area()
}

// Bounds decides whether a face is positioned well enough to count toward
// stability.
type Bounds struct {
	// MinWidth and MaxWidth bound the face width as a fraction of the frame width.
	MinWidth float64 `json:"min_width" validate:"gte=0,lte=1"`
	MaxWidth float64 `json:"max_width" validate:"gtefield=MinWidth,lte=1"`

	// MaxCenterOffset bounds how far the face center may sit from the frame
	// center, as a fraction of each frame dimension.
	MaxCenterOffset float64 `json:"max_center_offset" validate:"gte=0,lte=0.5"`

	// MinConfidence applies only to regions that carry a confidence.
	MinConfidence float64 `json:"min_confidence" validate:"gte=0,lte=1"`
}

// DefaultBounds accepts a face between 15% and 90% of the frame width whose
// center is within a quarter of the frame from the middle.
func DefaultBounds() Bounds {
	return Bounds{
		MinWidth:        0.15,
		MaxWidth:        0.9,
		MaxCenterOffset: 0.25,
		MinConfidence:   0.6,
	}
}

// Qualifies reports whether r satisfies the bounds in a frame of the given size.
func (b Bounds) Qualifies(r FaceRegion, frameWidth, frameHeight int) bool {
	if frameWidth <= 0 || frameHeight <= 0 || r.Width <= 0 || r.Height <= 0 {
		return false
	}
	if r.HasConfidence && r.Confidence < b.MinConfidence {
		return false
	}

	width := float64(r.Width) / float64(frameWidth)
	if width < b.MinWidth || width > b.MaxWidth {
		return false
	}

	c := r.Center()
	dx := absf(float64(c.X)/float64(frameWidth) - 0.5)
	dy := absf(float64(c.Y)/float64(frameHeight) - 0.5)
	return dx <= b.MaxCenterOffset && dy <= b.MaxCenterOffset
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
