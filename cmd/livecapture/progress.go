package main

import (
	"io"
	"math"
	"sync"

	"github.com/ayusman/livecapture/internal/session"
	"github.com/schollz/progressbar/v3"
)

// progressMax is the bar's full scale.
const progressMax = 100

// progressPresenter draws session progress as a terminal bar.
type progressPresenter struct {
	mu        sync.Mutex
	bar       *progressbar.ProgressBar
	cfg       session.Config
	last      int
	finished  bool
	lastLabel string
}

func newProgressPresenter(w io.Writer, cfg session.Config) *progressPresenter {
	bar := progressbar.NewOptions(progressMax,
		progressbar.OptionSetDescription("Looking for a face"),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetRenderBlankState(true),
	)
	return &progressPresenter{bar: bar, cfg: cfg}
}

func (p *progressPresenter) Instruction(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished || text == p.lastLabel {
		return
	}
	p.lastLabel = text
	p.bar.Describe(text)
}

func (p *progressPresenter) Overlay(o session.Overlay) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return
	}
	pct := stageProgress(o, p.cfg)
	// The bar only moves forward; motion scores jitter.
	if pct > p.last {
		p.last = pct
		p.bar.Set(pct)
	}
}

// Finish completes or abandons the bar.
func (p *progressPresenter) Finish(ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return
	}
	p.finished = true
	if ok {
		p.bar.Finish()
		return
	}
	p.bar.Exit()
}

// stageProgress maps an overlay onto 0-100. Face search fills the first
// 40%, motion towards the threshold the next 50%, the captures the rest.
func stageProgress(o session.Overlay, cfg session.Config) int {
	switch o.State {
	case session.FaceSearching:
		if cfg.StabilityThreshold <= 0 {
			return 0
		}
		frac := math.Min(float64(o.FoundFaces)/float64(cfg.StabilityThreshold), 1)
		return int(frac * 40)
	case session.TemplateArmed, session.CapturingFirst:
		return 40
	case session.AwaitingTrigger:
		if cfg.MotionThreshold <= 0 {
			return 45
		}
		frac := math.Min(o.MotionScore/cfg.MotionThreshold, 1)
		return 45 + int(frac*45)
	case session.CapturingDelay, session.CapturingSecond:
		return 95
	case session.Completed:
		return progressMax
	default:
		return 0
	}
}
