package session

import (
	"sync"
	"sync/atomic"
	"time"
)

// TimerKind names one of the three session timers.
type TimerKind int

const (
	TimerAnalysis TimerKind = iota
	TimerKill
	TimerTrigger
	numTimers
)

func (k TimerKind) String() string {
	switch k {
	case TimerAnalysis:
		return "analysis"
	case TimerKill:
		return "kill"
	case TimerTrigger:
		return "trigger"
	default:
		return "unknown"
	}
}

// TimerEvent is a timer firing. Token identifies the arming that produced
// it; events whose token is no longer current are stale.
type TimerEvent struct {
	Kind  TimerKind
	Token uint64
}

// Timers is what the Machine needs from a timer set.
type Timers interface {
	StartAnalysis(period time.Duration)
	StartKill(deadline time.Duration)
	StartTrigger(delay time.Duration)
	StopTrigger()
	StopAll()
}

// TimerSet owns the analysis ticker, kill timer and trigger timer of one
// session. Firings are posted to Events; the consumer must pass each one
// through Accept before acting on it. Analysis ticks coalesce so at most
// one is pending.
type TimerSet struct {
	events chan TimerEvent

	mu       sync.Mutex
	tokens   [numTimers]uint64
	armed    [numTimers]bool
	kill     *time.Timer
	trigger  *time.Timer
	tickStop chan struct{}
	stopped  bool
	done     chan struct{}

	tickPending atomic.Bool
}

// NewTimerSet creates an idle timer set.
func NewTimerSet() *TimerSet {
	return &TimerSet{
		events: make(chan TimerEvent, numTimers),
		done:   make(chan struct{}),
	}
}

// Events delivers timer firings.
func (t *TimerSet) Events() <-chan TimerEvent {
	return t.events
}

// StartAnalysis starts the periodic tick, replacing any running one.
func (t *TimerSet) StartAnalysis(period time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	t.stopTickLocked()

	token := t.bumpLocked(TimerAnalysis)
	stop := make(chan struct{})
	t.tickStop = stop
	t.armed[TimerAnalysis] = true

	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if !t.tickPending.CompareAndSwap(false, true) {
					continue
				}
				select {
				case t.events <- TimerEvent{Kind: TimerAnalysis, Token: token}:
				case <-stop:
					return
				}
			}
		}
	}()
}

// StartKill arms the session deadline.
func (t *TimerSet) StartKill(deadline time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	if t.kill != nil {
		t.kill.Stop()
	}
	t.kill = t.afterLocked(TimerKill, deadline)
}

// StartTrigger arms the one-shot trigger delay.
func (t *TimerSet) StartTrigger(delay time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	if t.trigger != nil {
		t.trigger.Stop()
	}
	t.trigger = t.afterLocked(TimerTrigger, delay)
}

// StopTrigger disarms the trigger delay. A firing already posted becomes stale.
func (t *TimerSet) StopTrigger() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.trigger != nil {
		t.trigger.Stop()
		t.trigger = nil
	}
	t.armed[TimerTrigger] = false
	t.bumpLocked(TimerTrigger)
}

// StopAll stops every timer and invalidates all outstanding events. The
// set cannot be restarted.
func (t *TimerSet) StopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	t.stopped = true
	close(t.done)

	t.stopTickLocked()
	if t.kill != nil {
		t.kill.Stop()
		t.kill = nil
	}
	if t.trigger != nil {
		t.trigger.Stop()
		t.trigger = nil
	}
	for k := range t.tokens {
		t.armed[k] = false
		t.tokens[k]++
	}
}

// Accept reports whether ev is current and should be acted on. It also
// re-opens the analysis slot so the next tick can be posted.
func (t *TimerSet) Accept(ev TimerEvent) bool {
	if ev.Kind == TimerAnalysis {
		t.tickPending.Store(false)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped || ev.Kind < 0 || ev.Kind >= numTimers {
		return false
	}
	return ev.Token == t.tokens[ev.Kind]
}

// Active returns the number of running timers.
func (t *TimerSet) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, a := range t.armed {
		if a {
			n++
		}
	}
	return n
}

func (t *TimerSet) bumpLocked(kind TimerKind) uint64 {
	t.tokens[kind]++
	return t.tokens[kind]
}

func (t *TimerSet) afterLocked(kind TimerKind, d time.Duration) *time.Timer {
	token := t.bumpLocked(kind)
	t.armed[kind] = true

	return time.AfterFunc(d, func() {
		t.mu.Lock()
		current := !t.stopped && t.tokens[kind] == token
		if current {
			t.armed[kind] = false
		}
		t.mu.Unlock()
		if !current {
			return
		}

		select {
		case t.events <- TimerEvent{Kind: kind, Token: token}:
		case <-t.done:
		}
	})
}

func (t *TimerSet) stopTickLocked() {
	if t.tickStop != nil {
		close(t.tickStop)
		t.tickStop = nil
	}
	t.armed[TimerAnalysis] = false
}
