package session

import (
	"sync"
	"sync/atomic"

	"github.com/ayusman/livecapture/internal/detector"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Overlay is the debug information published on every analysis tick.
type Overlay struct {
	State       State                `json:"state"`
	Face        *detector.FaceRegion `json:"face,omitempty"`
	FoundFaces  int                  `json:"found_faces"`
	MotionScore float64              `json:"motion_score"`
	FrameSeq    uint64               `json:"frame_seq"`
}

// Presenter receives informational updates. Nothing it does feeds back
// into the session.
type Presenter interface {
	Instruction(text string)
	Overlay(o Overlay)
}

// NopPresenter discards everything.
type NopPresenter struct{}

func (NopPresenter) Instruction(string) {}
func (NopPresenter) Overlay(Overlay)    {}

// Presenters fans updates out to several presenters in order.
type Presenters []Presenter

func (ps Presenters) Instruction(text string) {
	for _, p := range ps {
		p.Instruction(text)
	}
}

func (ps Presenters) Overlay(o Overlay) {
	for _, p := range ps {
		p.Overlay(o)
	}
}

// Queue defaults.
const (
	DefaultPresenterQueue = 32
	DefaultOverlayRate    = rate.Limit(10)
)

// presenterQueue runs a Presenter on its own goroutine so the analysis
// loop never waits on it. Updates are dropped when the queue is full and
// overlays are rate limited.
type presenterQueue struct {
	target  Presenter
	limiter *rate.Limiter
	log     *logrus.Entry

	mu     sync.Mutex
	ch     chan func()
	closed bool
	done   chan struct{}

	dropped atomic.Uint64
}

func newPresenterQueue(target Presenter, size int, overlays rate.Limit, log *logrus.Entry) *presenterQueue {
	if size <= 0 {
		size = DefaultPresenterQueue
	}
	q := &presenterQueue{
		target:  target,
		limiter: rate.NewLimiter(overlays, 1),
		log:     log,
		ch:      make(chan func(), size),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *presenterQueue) run() {
	defer close(q.done)
	for fn := range q.ch {
		fn()
	}
}

func (q *presenterQueue) Instruction(text string) {
	q.enqueue(func() { q.target.Instruction(text) })
}

func (q *presenterQueue) Overlay(o Overlay) {
	if !q.limiter.Allow() {
		return
	}
	q.enqueue(func() { q.target.Overlay(o) })
}

func (q *presenterQueue) enqueue(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	select {
	case q.ch <- fn:
	default:
		q.dropped.Add(1)
	}
}

// Close stops accepting updates and waits until queued ones are delivered.
func (q *presenterQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	<-q.done
	if n := q.dropped.Load(); n > 0 {
		q.log.WithField("dropped", n).Debug("presenter updates dropped")
	}
}
