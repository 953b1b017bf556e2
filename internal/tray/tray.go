// Package tray provides a system tray interface for livecapture.
package tray

import (
	"fmt"
	"sync"

	"github.com/ayusman/livecapture/internal/session"
	"github.com/getlantern/systray"
)

// Tray represents the system tray application. It is a session.Presenter
// and shows the current instruction and the last outcome.
type Tray struct {
	onStart  func() error
	onCancel func() error
	onOpen   func()
	onQuit   func()

	active bool
	status string
	last   string
	mu     sync.RWMutex

	// Menu items stored for later updates
	menuCapture *systray.MenuItem
	menuStatus  *systray.MenuItem
	menuLast    *systray.MenuItem
}

// New creates a new idle Tray.
func New() *Tray {
	return &Tray{
		status: "Idle",
		last:   "Last: none",
	}
}

// OnStart sets the callback run when "Start Capture" is clicked.
func (t *Tray) OnStart(fn func() error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStart = fn
}

// OnCancel sets the callback run when "Cancel Capture" is clicked.
func (t *Tray) OnCancel(fn func() error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCancel = fn
}

// OnOpen sets the callback run when "Open Preview..." is clicked.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops a running tray.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("LiveCapture")
	systray.SetTooltip("LiveCapture face capture")

	t.mu.Lock()
	t.menuCapture = systray.AddMenuItem(captureTitle(t.active), "Start or cancel a capture session")
	systray.AddSeparator()

	t.menuStatus = systray.AddMenuItem(t.status, "Current instruction")
	t.menuStatus.Disable()
	t.menuLast = systray.AddMenuItem(t.last, "Outcome of the last session")
	t.menuLast.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open Preview...", "Open the live preview in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit LiveCapture")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuCapture.ClickedCh:
				t.handleCapture()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

// handleCapture starts a session when idle and cancels it when active.
func (t *Tray) handleCapture() {
	t.mu.RLock()
	active := t.active
	start, cancel := t.onStart, t.onCancel
	t.mu.RUnlock()

	// Call the callback outside the lock to prevent deadlocks
	if active {
		status := "Cancelled"
		if cancel != nil {
			if err := cancel(); err != nil {
				status = "Error: " + err.Error()
			}
		}
		t.setActive(false, status)
		return
	}

	// A fast failure may report its result before start returns.
	t.setActive(true, "Starting...")
	if start != nil {
		if err := start(); err != nil {
			t.setActive(false, "Error: "+err.Error())
		}
	}
}

// handleOpen handles the preview menu item click.
func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

func (t *Tray) setActive(active bool, status string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.active = active
	t.status = status
	if t.menuCapture != nil {
		t.menuCapture.SetTitle(captureTitle(active))
		t.menuStatus.SetTitle(status)
	}
}

// Instruction shows the current instruction.
func (t *Tray) Instruction(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status = text
	if t.menuStatus != nil {
		t.menuStatus.SetTitle(text)
	}
}

// Overlay updates the tooltip with the analysis state.
func (t *Tray) Overlay(o session.Overlay) {
	t.mu.RLock()
	ready := t.menuStatus != nil
	t.mu.RUnlock()

	if ready {
		systray.SetTooltip(fmt.Sprintf("%s (faces %d, motion %.2f)", o.State, o.FoundFaces, o.MotionScore))
	}
}

// Result records a finished session and returns the tray to idle.
func (t *Tray) Result(res session.Result) {
	last := resultTitle(res)

	t.mu.Lock()
	t.last = last
	if t.menuLast != nil {
		t.menuLast.SetTitle(last)
	}
	t.mu.Unlock()

	t.setActive(false, "Idle")
}

// Active reports whether the tray believes a session is running.
func (t *Tray) Active() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active
}

// Status returns the status line.
func (t *Tray) Status() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Last returns the last-outcome line.
func (t *Tray) Last() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

func captureTitle(active bool) string {
	if active {
		return "■ Cancel Capture"
	}
	return "● Start Capture"
}

func resultTitle(res session.Result) string {
	if res.Succeeded() {
		return fmt.Sprintf("Last: captured (%s)", res.Trigger)
	}
	return "Last: " + res.Code.String()
}
