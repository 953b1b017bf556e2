package session

import (
	"time"

	"github.com/ayusman/livecapture/internal/capture"
	"github.com/ayusman/livecapture/internal/detector"
	"github.com/ayusman/livecapture/internal/logging"
	"github.com/sirupsen/logrus"
)

// Instruction texts shown outside the challenge phase.
const (
	InstructionLookAtCamera = "Look straight into the camera"
	InstructionHoldStill    = "Hold still"
	InstructionDone         = "Done"
)

// Machine is the capture state machine. It is not safe for concurrent use:
// the Session runner drives it from a single goroutine, and tests drive it
// directly. Every method that reaches a terminal state returns the Result;
// all other calls return nil, and calls after the terminal state are no-ops.
type Machine struct {
	cfg       Config
	detector  detector.FaceDetector
	surface   Surface
	presenter Presenter
	timers    Timers
	log       *logrus.Entry

	id        string
	challenge Challenge
	startedAt time.Time

	state       State
	ended       bool
	foundFaces  int
	template    *capture.MotionTemplate
	image1      *capture.Still
	image2      *capture.Still
	trigger     Trigger
	motionScore float64
	settleLeft  int
}

// NewMachine allocates the motion template for one session.
func NewMachine(id string, cfg Config, det detector.FaceDetector, surface Surface, presenter Presenter, timers Timers, log *logrus.Entry) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tmpl, err := capture.NewMotionTemplate(cfg.Template)
	if err != nil {
		return nil, err
	}
	if presenter == nil {
		presenter = NopPresenter{}
	}
	if surface == nil {
		surface = FrameSurface{Mirror: cfg.Mirror}
	}
	if log == nil {
		log = logging.Discard()
	}

	return &Machine{
		id:        id,
		cfg:       cfg,
		detector:  det,
		surface:   surface,
		presenter: presenter,
		timers:    timers,
		log:       log,
		template:  tmpl,
	}, nil
}

// State returns the current phase.
func (m *Machine) State() State { return m.state }

// FoundFaces returns the current run of consecutive qualifying frames.
func (m *Machine) FoundFaces() int { return m.foundFaces }

// MotionScore returns the last computed template score.
func (m *Machine) MotionScore() float64 { return m.motionScore }

// Template exposes the motion template for inspection.
func (m *Machine) Template() *capture.MotionTemplate { return m.template }

// Start leaves Idle. Without camera access the session fails immediately;
// otherwise the analysis and kill timers start.
func (m *Machine) Start(cameraAccess bool, challenge Challenge) *Result {
	if m.state != Idle || m.ended {
		return nil
	}
	m.challenge = challenge
	m.startedAt = time.Now()

	if !cameraAccess {
		m.log.Warn("camera access denied")
		return m.fail(NoCameraAccess)
	}

	m.setState(FaceSearching)
	m.timers.StartAnalysis(m.cfg.TickPeriod)
	m.timers.StartKill(m.cfg.KillDeadline)
	m.presenter.Instruction(InstructionLookAtCamera)
	return nil
}

// Tick runs one analysis cycle on frame. A nil frame means no new frame
// arrived since the last tick and the cycle is skipped.
func (m *Machine) Tick(frame *capture.Frame) *Result {
	if m.ended || m.state == Idle {
		return nil
	}
	if frame == nil {
		return nil
	}

	switch m.state {
	case FaceSearching:
		return m.searchFace(frame)
	case TemplateArmed:
		return m.captureFirst(frame)
	case AwaitingTrigger:
		return m.measureMotion(frame)
	case CapturingDelay:
		m.settleLeft--
		if m.settleLeft > 0 {
			return nil
		}
		m.setState(CapturingSecond)
		return m.captureSecond(frame)
	case CapturingSecond:
		return m.captureSecond(frame)
	}
	return nil
}

// TriggerExpired forces the second capture from latest if the session is
// still waiting for motion.
func (m *Machine) TriggerExpired(latest *capture.Frame) *Result {
	if m.ended || m.state != AwaitingTrigger {
		return nil
	}
	m.log.WithField("motion_score", m.motionScore).Debug("trigger delay elapsed")
	return m.fire(TriggerDelay, latest)
}

// KillExpired fails the session with a code for the phase that stalled.
func (m *Machine) KillExpired() *Result {
	if m.ended || m.state == Idle || m.state.Terminal() {
		return nil
	}
	if m.state == FaceSearching {
		return m.fail(NoFaceFound)
	}
	// Past the face phase. In CapturingDelay and CapturingSecond motion was
	// seen but no second still exists, so nothing usable was captured.
	return m.fail(NoMotionDetected)
}

// Cancel tears the session down without producing a result.
func (m *Machine) Cancel() {
	if m.ended {
		return
	}
	m.timers.StopAll()
	m.release()
	m.ended = true
	m.state = Idle
	m.log.Debug("session cancelled")
}

func (m *Machine) searchFace(frame *capture.Frame) *Result {
	regions, err := m.detector.Detect(frame)
	if err != nil {
		m.log.WithError(err).Debug("face detection failed")
		regions = nil
	}

	best := detector.SelectBest(regions)
	if best != nil && m.cfg.Face.Qualifies(*best, frame.Width(), frame.Height()) {
		m.foundFaces++
	} else {
		m.foundFaces = 0
	}

	m.presenter.Overlay(Overlay{
		State:      m.state,
		Face:       best,
		FoundFaces: m.foundFaces,
		FrameSeq:   frame.Seq(),
	})

	if m.foundFaces < m.cfg.StabilityThreshold {
		return nil
	}

	if err := m.template.Capture(frame); err != nil {
		m.log.WithError(err).Warn("template capture failed")
		return nil
	}
	m.setState(TemplateArmed)
	m.presenter.Instruction(InstructionHoldStill)

	return m.captureFirst(frame)
}

func (m *Machine) captureFirst(frame *capture.Frame) *Result {
	m.setState(CapturingFirst)

	still, err := m.surface.Capture(frame)
	if err != nil {
		m.log.WithError(err).Warn("first capture failed, retrying")
		m.setState(TemplateArmed)
		return nil
	}
	m.image1 = still

	m.setState(AwaitingTrigger)
	if m.cfg.TriggerDelay > 0 {
		m.timers.StartTrigger(m.cfg.TriggerDelay)
	}
	m.presenter.Instruction(m.challenge.Instruction())
	return nil
}

func (m *Machine) measureMotion(frame *capture.Frame) *Result {
	score, err := m.template.Score(frame)
	if err != nil {
		m.log.WithError(err).Debug("motion score unavailable")
		return nil
	}
	m.motionScore = score

	m.presenter.Overlay(Overlay{
		State:       m.state,
		FoundFaces:  m.foundFaces,
		MotionScore: score,
		FrameSeq:    frame.Seq(),
	})

	if score < m.cfg.MotionThreshold {
		return nil
	}
	m.timers.StopTrigger()
	return m.fire(TriggerMotion, frame)
}

func (m *Machine) fire(trigger Trigger, frame *capture.Frame) *Result {
	m.trigger = trigger
	m.log.WithFields(logrus.Fields{
		"trigger":      trigger,
		"motion_score": m.motionScore,
	}).Debug("second capture triggered")

	if m.cfg.SettleTicks > 0 {
		m.settleLeft = m.cfg.SettleTicks
		m.setState(CapturingDelay)
		return nil
	}
	m.setState(CapturingSecond)
	return m.captureSecond(frame)
}

func (m *Machine) captureSecond(frame *capture.Frame) *Result {
	if frame == nil {
		return nil
	}
	still, err := m.surface.Capture(frame, m.challenge.Tags()...)
	if err != nil {
		m.log.WithError(err).Warn("second capture failed, retrying")
		return nil
	}
	m.image2 = still
	m.setState(Completed)
	m.presenter.Instruction(InstructionDone)

	res := m.result()
	m.timers.StopAll()
	m.release()
	m.ended = true
	return &res
}

func (m *Machine) fail(code FailureCode) *Result {
	m.timers.StopAll()
	m.setState(Failed)
	m.log.WithField("code", code).Info("capture failed")

	res := m.result()
	res.Code = code
	res.Image1, res.Image2 = nil, nil
	res.Trigger = TriggerNone

	m.release()
	m.ended = true
	return &res
}

func (m *Machine) result() Result {
	return Result{
		SessionID:   m.id,
		Challenge:   m.challenge,
		Image1:      m.image1,
		Image2:      m.image2,
		Trigger:     m.trigger,
		MotionScore: m.motionScore,
		StartedAt:   m.startedAt,
		FinishedAt:  time.Now(),
	}
}

// release drops the template and hands ownership of the stills to the result.
func (m *Machine) release() {
	m.template.Release()
	m.image1 = nil
	m.image2 = nil
}

func (m *Machine) setState(s State) {
	if s == m.state {
		return
	}
	m.log.WithFields(logrus.Fields{"from": m.state, "to": s}).Debug("state transition")
	m.state = s
}
