package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/ayusman/livecapture/internal/capture"
	"github.com/ayusman/livecapture/internal/detector"
	"github.com/ayusman/livecapture/internal/logging"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("session already started")
	// ErrClosed is returned by Start after Cancel.
	ErrClosed = errors.New("session closed")
)

// Callbacks are invoked at most once per session, on their own goroutine,
// after the result is available on Done.
type Callbacks struct {
	OnSucceeded func(Result)
	OnFailed    func(Result)
}

// Deps are the collaborators of a session.
type Deps struct {
	Source    capture.FrameSource
	Detector  detector.FaceDetector
	Surface   Surface
	Presenter Presenter
	Callbacks Callbacks
	Log       *logrus.Entry
}

// Session runs a Machine on a single goroutine. Frames from the source land
// in a one-frame slot; each analysis tick takes whatever is newest. Timer
// firings and ticks are handled strictly one at a time.
type Session struct {
	id   string
	cfg  Config
	deps Deps
	log  *logrus.Entry

	machine   *Machine
	timers    *TimerSet
	presenter *presenterQueue

	latest atomic.Pointer[capture.Frame]
	last   *capture.Frame // owned by the loop
	state  atomic.Int32

	mu       sync.Mutex
	started  bool
	finished atomic.Bool
	stop     chan struct{}
	loopDone chan struct{}
	done     chan Result
}

// New validates cfg and prepares a session. Nothing runs until Start.
func New(cfg Config, deps Deps) (*Session, error) {
	if deps.Source == nil || deps.Detector == nil {
		return nil, errors.New("session requires a frame source and a face detector")
	}
	if deps.Presenter == nil {
		deps.Presenter = NopPresenter{}
	}
	log := deps.Log
	if log == nil {
		log = logging.Discard()
	}

	id := uuid.New().String()
	log = log.WithField("session", id[:8])

	s := &Session{
		id:       id,
		cfg:      cfg,
		deps:     deps,
		log:      log,
		timers:   NewTimerSet(),
		stop:     make(chan struct{}),
		loopDone: make(chan struct{}),
		done:     make(chan Result, 1),
	}
	s.presenter = newPresenterQueue(deps.Presenter, DefaultPresenterQueue, DefaultOverlayRate, log)

	m, err := NewMachine(id, cfg, deps.Detector, deps.Surface, s.presenter, s.timers, log)
	if err != nil {
		s.presenter.Close()
		return nil, err
	}
	s.machine = m
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Config returns the session configuration.
func (s *Session) Config() Config { return s.cfg }

// State returns the phase as of the last processed event.
func (s *Session) State() State { return State(s.state.Load()) }

// Done yields the result and is then closed. It is closed without a value
// when the session is cancelled.
func (s *Session) Done() <-chan Result { return s.done }

// Wait blocks until the session ends or ctx is done.
func (s *Session) Wait(ctx context.Context) (Result, error) {
	select {
	case res, ok := <-s.done:
		if !ok {
			return Result{}, ErrCancelled
		}
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Start subscribes to the frame source and begins analysis. Missing camera
// access is not an error here: it is reported as a NoCameraAccess result.
func (s *Session) Start(challenge Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished.Load() {
		return ErrClosed
	}
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	err := s.deps.Source.Subscribe(s.onFrame)
	access := err == nil
	if err != nil {
		s.log.WithError(err).Warn("frame source unavailable")
	}

	s.log.WithFields(logrus.Fields{
		"challenge": challenge,
		"access":    access,
	}).Info("session started")

	go s.run(access, challenge)
	return nil
}

// Cancel stops the session. When it returns, timers are stopped and the
// frame source is released. If the session had already produced its result,
// Cancel waits for the loop to release everything and the result is still
// delivered to the callbacks; otherwise no callback will run.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.finished.CompareAndSwap(false, true) {
		if s.started {
			<-s.loopDone
		}
		return
	}

	close(s.stop)
	s.timers.StopAll()
	if s.started {
		s.deps.Source.Unsubscribe()
		<-s.loopDone
	}
	s.machine.Cancel()
	s.state.Store(int32(s.machine.State()))
	s.presenter.Close()
	s.latest.Store(nil)
	close(s.done)

	s.log.Info("session cancelled")
}

func (s *Session) onFrame(f *capture.Frame) {
	s.latest.Store(f)
}

// takeFrame returns the newest unseen frame, or nil if none arrived since
// the previous call.
func (s *Session) takeFrame() *capture.Frame {
	f := s.latest.Swap(nil)
	if f != nil {
		s.last = f
	}
	return f
}

func (s *Session) run(access bool, challenge Challenge) {
	defer close(s.loopDone)

	res := s.machine.Start(access, challenge)
	s.state.Store(int32(s.machine.State()))
	if res != nil {
		s.finish(*res)
		return
	}

	for {
		select {
		case <-s.stop:
			return
		case ev := <-s.timers.Events():
			if !s.timers.Accept(ev) {
				continue
			}

			switch ev.Kind {
			case TimerAnalysis:
				res = s.machine.Tick(s.takeFrame())
			case TimerKill:
				res = s.machine.KillExpired()
			case TimerTrigger:
				s.takeFrame()
				res = s.machine.TriggerExpired(s.last)
			}
			s.state.Store(int32(s.machine.State()))

			if res != nil {
				s.finish(*res)
				return
			}
		}
	}
}

// finish delivers the result unless Cancel got there first.
func (s *Session) finish(res Result) {
	if !s.finished.CompareAndSwap(false, true) {
		return
	}

	s.timers.StopAll()
	s.deps.Source.Unsubscribe()
	s.presenter.Close()
	s.last = nil

	s.done <- res
	close(s.done)

	entry := s.log.WithField("state", State(s.state.Load()))
	if res.Succeeded() {
		entry.WithFields(logrus.Fields{
			"trigger":      res.Trigger,
			"motion_score": res.MotionScore,
		}).Info("capture succeeded")
	} else {
		entry.WithField("code", res.Code).Info("capture failed")
	}

	go s.dispatch(res)
}

func (s *Session) dispatch(res Result) {
	cb := s.deps.Callbacks
	if res.Succeeded() {
		if cb.OnSucceeded != nil {
			cb.OnSucceeded(res)
		}
		return
	}
	if cb.OnFailed != nil {
		cb.OnFailed(res)
	}
}
