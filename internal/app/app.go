// Package app wires the camera feed, face detector, store, hooks and
// presenters into capture sessions, one at a time.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ayusman/livecapture/internal/capture"
	"github.com/ayusman/livecapture/internal/detector"
	"github.com/ayusman/livecapture/internal/hook"
	"github.com/ayusman/livecapture/internal/logging"
	"github.com/ayusman/livecapture/internal/session"
	"github.com/ayusman/livecapture/internal/store"
	"github.com/sirupsen/logrus"
)

var (
	// ErrSessionActive is returned when a session is started while another runs.
	ErrSessionActive = errors.New("a capture session is already active")
	// ErrNoSession is returned when there is no session to cancel.
	ErrNoSession = errors.New("no active capture session")
	// ErrClosed is returned by StartSession after Close.
	ErrClosed = errors.New("app closed")
)

// Config holds configuration options for the application.
type Config struct {
	// Store persists sessions and stills. Optional.
	Store *store.Store
	// Feed supplies camera frames. Required.
	Feed *capture.Feed
	// Detector finds faces. Required; closed by Close.
	Detector detector.FaceDetector
	// Session is applied to every session started by the app.
	Session session.Config

	// CaptureDir receives the JPEGs of successful sessions. Empty disables writing.
	CaptureDir string
	// HookDir is scanned for result hooks. Empty disables hooks.
	HookDir     string
	HookTimeout time.Duration

	// MaxImageSide downscales stills whose longest side exceeds it before
	// encoding. Zero keeps the camera resolution.
	MaxImageSide int

	// Encode turns a still's frame into JPEG bytes. Defaults to capture.EncodeJPEG.
	Encode func(*capture.Frame) ([]byte, error)

	Log *logrus.Entry
}

// App runs capture sessions and handles their results.
type App struct {
	config   Config
	feed     *capture.Feed
	detector detector.FaceDetector
	hookMgr  *hook.Manager
	hookExec *hook.Executor
	encode   func(*capture.Frame) ([]byte, error)
	log      *logrus.Entry

	mu         sync.RWMutex
	current    *session.Session
	presenters session.Presenters
	callbacks  []func(session.Result)
	closed     bool

	ctx     context.Context
	cancel  context.CancelFunc
	pending sync.WaitGroup
}

// New creates a new App. The session configuration is validated up front
// so a bad value surfaces at startup rather than on the first capture.
func New(config Config) (*App, error) {
	if config.Feed == nil {
		return nil, errors.New("app requires a camera feed")
	}
	if config.Detector == nil {
		return nil, errors.New("app requires a face detector")
	}
	if err := config.Session.Validate(); err != nil {
		return nil, err
	}

	log := config.Log
	if log == nil {
		log = logging.For("app")
	}
	encode := config.Encode
	if encode == nil {
		encode = capture.EncodeJPEG
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		config:   config,
		feed:     config.Feed,
		detector: config.Detector,
		hookExec: hook.NewExecutor(config.HookTimeout),
		encode:   encode,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
	if config.HookDir != "" {
		a.hookMgr = hook.NewManager(config.HookDir)
	}
	if config.CaptureDir != "" {
		if err := os.MkdirAll(config.CaptureDir, 0755); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create capture dir: %w", err)
		}
	}

	return a, nil
}

// DiscoverHooks scans the hook directory and loads available hooks.
func (a *App) DiscoverHooks() error {
	if a.hookMgr == nil {
		return nil
	}
	if err := a.hookMgr.Discover(); err != nil {
		return err
	}
	a.log.WithField("hooks", len(a.hookMgr.List())).Info("hooks discovered")
	return nil
}

// AddPresenter registers a presenter for instructions and overlays of
// every subsequent session.
func (a *App) AddPresenter(p session.Presenter) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.presenters = append(a.presenters, p)
}

// RegisterResultCallback registers fn to run after each session result has
// been persisted. Callbacks run on the result goroutine, in order.
func (a *App) RegisterResultCallback(fn func(session.Result)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.callbacks = append(a.callbacks, fn)
}

// StartSession starts a capture session and returns its ID. Only one
// session runs at a time.
func (a *App) StartSession(challenge session.Challenge) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return "", ErrClosed
	}
	if a.current != nil {
		return "", ErrSessionActive
	}

	presenters := make(session.Presenters, len(a.presenters))
	copy(presenters, a.presenters)

	sess, err := session.New(a.config.Session, session.Deps{
		Source:    a.feed,
		Detector:  a.detector,
		Surface:   session.FrameSurface{Mirror: a.config.Session.Mirror},
		Presenter: presenters,
		Callbacks: session.Callbacks{
			OnSucceeded: a.handleResult,
			OnFailed:    a.handleResult,
		},
		Log: a.log,
	})
	if err != nil {
		return "", err
	}

	if st := a.config.Store; st != nil {
		if err := st.Sessions().Create(&store.Session{
			ID:        sess.ID(),
			Challenge: string(challenge),
		}); err != nil {
			return "", fmt.Errorf("failed to record session: %w", err)
		}
	}

	// The callback may fire as soon as Start returns, so count it first.
	a.pending.Add(1)
	if err := sess.Start(challenge); err != nil {
		a.pending.Done()
		return "", err
	}
	a.current = sess

	return sess.ID(), nil
}

// CancelSession cancels the active session. No result is produced for it.
func (a *App) CancelSession() error {
	a.mu.Lock()
	sess := a.current
	a.current = nil
	a.mu.Unlock()

	if sess == nil {
		return ErrNoSession
	}

	sess.Cancel()

	// Done holds a value only if the result beat the cancel, in which case
	// handleResult owns it.
	if _, delivered := <-sess.Done(); delivered {
		return nil
	}

	a.pending.Done()
	if st := a.config.Store; st != nil {
		if err := st.Sessions().Finish(sess.ID(), store.Outcome{Status: store.StatusCancelled}); err != nil {
			a.log.WithError(err).Warn("failed to record cancellation")
		}
	}
	return nil
}

// Current returns the active session, or nil.
func (a *App) Current() *session.Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current
}

// Feed returns the camera feed.
func (a *App) Feed() *capture.Feed {
	return a.feed
}

// Store returns the configured store, which may be nil.
func (a *App) Store() *store.Store {
	return a.config.Store
}

// Hooks returns the hook manager, or nil when hooks are disabled.
func (a *App) Hooks() *hook.Manager {
	return a.hookMgr
}

// Close cancels any active session, waits for in-flight result handling
// and releases the detector. The store is owned by the caller.
func (a *App) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	if err := a.CancelSession(); err != nil && !errors.Is(err, ErrNoSession) {
		a.log.WithError(err).Warn("cancel on close")
	}

	a.pending.Wait()
	a.cancel()

	if err := a.detector.Close(); err != nil {
		return fmt.Errorf("failed to close detector: %w", err)
	}
	a.log.Info("app closed")
	return nil
}
