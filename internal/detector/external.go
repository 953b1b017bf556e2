package detector

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/ayusman/livecapture/internal/capture"
	jsoniter "github.com/json-iterator/go"
)

// DefaultRequestTimeout bounds a request when Config.RequestTimeout is unset.
const DefaultRequestTimeout = 2 * time.Second

// ErrRequestTimeout is returned when the external service does not answer
// within the request timeout.
var ErrRequestTimeout = errors.New("external detector: request timed out")

// ExternalDetector delegates detection to a long-running helper process.
// Each request is a 4-byte big-endian length followed by a JPEG; each
// response is one JSON line: {"faces":[{"x":..,"y":..,"w":..,"h":..,"score":..}]}.
// Coordinates are in frame pixels. The process starts lazily on the first
// request and is stopped after IdleTimeout without requests. A request that
// takes longer than RequestTimeout kills the process.
type ExternalDetector struct {
	command        []string
	idleTimeout    time.Duration
	requestTimeout time.Duration

	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	idleTimer *time.Timer
}

// NewExternal creates a detector that runs cfg.Command on demand.
func NewExternal(cfg Config) (*ExternalDetector, error) {
	if len(cfg.Command) == 0 {
		return nil, errors.New("external detector: empty command")
	}
	if _, err := exec.LookPath(cfg.Command[0]); err != nil {
		return nil, fmt.Errorf("external detector: %w", err)
	}

	idle := cfg.IdleTimeout
	if idle <= 0 {
		idle = 30 * time.Second
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return &ExternalDetector{
		command:        cfg.Command,
		idleTimeout:    idle,
		requestTimeout: timeout,
	}, nil
}

type externalResponse struct {
	Faces []externalFace `json:"faces"`
	Error string         `json:"error,omitempty"`
}

type externalFace struct {
	X     float64  `json:"x"`
	Y     float64  `json:"y"`
	W     float64  `json:"w"`
	H     float64  `json:"h"`
	Score *float64 `json:"score,omitempty"`
}

// Detect sends frame to the helper and parses its answer.
func (d *ExternalDetector) Detect(frame *capture.Frame) ([]FaceRegion, error) {
	data, err := capture.EncodeJPEG(frame)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	line, err := d.roundTrip(data)
	if err != nil {
		// A broken pipe leaves the protocol out of sync; restart next time.
		_ = d.shutdown()
		return nil, err
	}

	var resp externalResponse
	if err := jsoniter.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("external detector: %s", resp.Error)
	}

	regions := make([]FaceRegion, len(resp.Faces))
	for i, f := range resp.Faces {
		regions[i] = FaceRegion{
			X:      int(f.X),
			Y:      int(f.Y),
			Width:  int(f.W),
			Height: int(f.H),
		}
		if f.Score != nil {
			regions[i].Confidence = *f.Score
			regions[i].HasConfidence = true
		}
	}

	d.resetIdleTimer()
	return regions, nil
}

type exchangeResult struct {
	line []byte
	err  error
}

// roundTrip runs one exchange with the service, killing it if no answer
// arrives within the request timeout. The caller restarts it on error.
func (d *ExternalDetector) roundTrip(data []byte) ([]byte, error) {
	stdin, stdout := d.stdin, d.stdout
	done := make(chan exchangeResult, 1)
	go func() {
		line, err := exchange(stdin, stdout, data)
		done <- exchangeResult{line: line, err: err}
	}()

	timer := time.NewTimer(d.requestTimeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.line, r.err
	case <-timer.C:
		// Killing the process closes its pipes, which unblocks the exchange.
		if d.cmd != nil && d.cmd.Process != nil {
			_ = d.cmd.Process.Kill()
		}
		return nil, fmt.Errorf("%w after %v", ErrRequestTimeout, d.requestTimeout)
	}
}

func exchange(w io.Writer, r *bufio.Reader, data []byte) ([]byte, error) {
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := w.Write(length); err != nil {
		return nil, fmt.Errorf("write length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("write data: %w", err)
	}

	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return line, nil
}

// Close shuts down the helper process.
func (d *ExternalDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *ExternalDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	d.cmd = exec.Command(d.command[0], d.command[1:]...)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start detection service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true

	return nil
}

func (d *ExternalDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

func (d *ExternalDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(d.idleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.shutdown()
	})
}
