package capture

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/livecapture/internal/logging"
	"github.com/sirupsen/logrus"
)

// ErrAlreadySubscribed is returned when a second subscriber attaches to a Feed.
var ErrAlreadySubscribed = errors.New("feed already has a subscriber")

// FrameSource delivers frames at a fixed cadence on its own goroutine.
type FrameSource interface {
	// Subscribe starts delivery. It returns an error wrapping
	// ErrNoCameraAccess, and delivers nothing, when the camera is unavailable.
	// fn runs on the delivery goroutine and must not call Unsubscribe.
	Subscribe(fn func(*Frame)) error
	// Unsubscribe stops delivery. No callback runs after it returns.
	Unsubscribe()
}

// Feed turns a polled Camera into a FrameSource. Frames are read at the
// camera's FPS on a dedicated goroutine and handed to a single subscriber.
type Feed struct {
	camera Camera
	log    *logrus.Entry

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}

	latest    atomic.Pointer[Frame]
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewFeed wraps cam. A nil logger discards log output.
func NewFeed(cam Camera, log *logrus.Entry) *Feed {
	if log == nil {
		log = logging.Discard()
	}
	return &Feed{camera: cam, log: log}
}

// Camera returns the wrapped camera.
func (f *Feed) Camera() Camera {
	return f.camera
}

// Subscribe opens the camera and starts delivering frames to fn.
func (f *Feed) Subscribe(fn func(*Frame)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.stop != nil {
		return ErrAlreadySubscribed
	}

	if err := f.camera.Open(); err != nil {
		return err
	}

	f.stop = make(chan struct{})
	f.done = make(chan struct{})
	go f.run(fn, f.stop, f.done)

	f.log.WithField("fps", f.camera.FPS()).Debug("frame delivery started")
	return nil
}

// Unsubscribe stops delivery, waits for the delivery goroutine to exit and
// closes the camera.
func (f *Feed) Unsubscribe() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.stop == nil {
		return
	}

	close(f.stop)
	<-f.done
	f.stop = nil
	f.done = nil

	if err := f.camera.Close(); err != nil {
		f.log.WithError(err).Warn("closing camera")
	}
	f.latest.Store(nil)

	f.log.WithFields(logrus.Fields{
		"delivered": f.delivered.Load(),
		"dropped":   f.dropped.Load(),
	}).Debug("frame delivery stopped")
}

// Latest returns the most recently delivered frame, or nil when idle.
func (f *Feed) Latest() *Frame {
	return f.latest.Load()
}

// Active reports whether a subscriber is attached.
func (f *Feed) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stop != nil
}

func (f *Feed) run(fn func(*Frame), stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	fps := f.camera.FPS()
	if fps <= 0 {
		fps = DefaultFPS
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	var last time.Time
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			frame, err := f.camera.ReadFrame()
			if err != nil {
				f.dropped.Add(1)
				f.log.WithError(err).Debug("frame read failed")
				continue
			}

			// Out-of-order frames are dropped so subscribers see
			// timestamps in order.
			if frame.Timestamp().Before(last) {
				f.dropped.Add(1)
				continue
			}
			last = frame.Timestamp()

			select {
			case <-stop:
				return
			default:
			}

			f.latest.Store(frame)
			f.delivered.Add(1)
			fn(frame)
		}
	}
}
