package main

import (
	"fmt"
	"os"
	"time"

	"github.com/ayusman/livecapture/internal/session"
	"github.com/spf13/cobra"
)

// exitInterrupted is returned when a capture is cancelled with Ctrl+C.
const exitInterrupted = 130

type captureOptions struct {
	sourceOptions
	challenge  string
	noProgress bool

	stability    int
	motion       float64
	tick         time.Duration
	killDeadline time.Duration
	triggerDelay time.Duration
	mirror       bool
}

func newCaptureCmd(c *cli) *cobra.Command {
	var o captureOptions

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Run one capture session in the terminal",
		Long: `Run one capture session and exit with its outcome:
  0  both stills captured
  1  no camera access
  2  no face found
  3  no motion detected`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationTerminal: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCapture(cmd, o)
		},
	}

	o.sourceOptions.register(cmd)
	f := cmd.Flags()
	f.StringVar(&o.challenge, "challenge", "", "Head movement to ask for: up, down, left, right or random")
	f.BoolVar(&o.noProgress, "no-progress", false, "Log to the console instead of drawing a progress bar")
	f.IntVar(&o.stability, "stability", 0, "Consecutive qualifying frames before arming")
	f.Float64Var(&o.motion, "motion-threshold", 0, "Motion score that triggers the second still")
	f.DurationVar(&o.tick, "tick", 0, "Analysis tick period")
	f.DurationVar(&o.killDeadline, "kill-deadline", 0, "Give up after this long")
	f.DurationVar(&o.triggerDelay, "trigger-delay", 0, "Force the second still this long after the first (0 disables)")
	f.BoolVar(&o.mirror, "mirror", false, "Mirror stills horizontally")
	return cmd
}

// applySessionFlags overrides the configured session settings with the
// flags the user set.
func applySessionFlags(cmd *cobra.Command, o captureOptions, cfg *session.Config) error {
	f := cmd.Flags()
	if f.Changed("stability") {
		cfg.StabilityThreshold = o.stability
	}
	if f.Changed("motion-threshold") {
		cfg.MotionThreshold = o.motion
	}
	if f.Changed("tick") {
		cfg.TickPeriod = o.tick
	}
	if f.Changed("kill-deadline") {
		cfg.KillDeadline = o.killDeadline
	}
	if f.Changed("trigger-delay") {
		cfg.TriggerDelay = o.triggerDelay
	}
	if f.Changed("mirror") {
		cfg.Mirror = o.mirror
	}
	return cfg.Validate()
}

func parseChallengeFlag(s string) (session.Challenge, error) {
	if s == "random" {
		return session.RandomChallenge(), nil
	}
	return session.ParseChallenge(s)
}

func (c *cli) runCapture(cmd *cobra.Command, o captureOptions) error {
	if err := applySessionFlags(cmd, o, &c.cfg.Session); err != nil {
		return err
	}
	challenge, err := parseChallengeFlag(o.challenge)
	if err != nil {
		return err
	}

	a, err := c.buildApp(cmd, o.sourceOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	var progress *progressPresenter
	if !o.noProgress {
		progress = newProgressPresenter(os.Stderr, c.cfg.Session)
		a.AddPresenter(progress)
	}

	results := make(chan session.Result, 1)
	a.RegisterResultCallback(func(res session.Result) { results <- res })

	id, err := a.StartSession(challenge)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if challenge != session.ChallengeNone {
		fmt.Fprintf(os.Stderr, "%s\n", challenge.Instruction())
	}

	select {
	case res := <-results:
		if progress != nil {
			progress.Finish(res.Succeeded())
			fmt.Fprintln(os.Stderr)
		}
		printResult(out, res, c.cfg.CaptureDir)
		if !res.Succeeded() {
			return &exitError{code: int(res.Code)}
		}
		return nil

	case <-cmd.Context().Done():
		if progress != nil {
			progress.Finish(false)
			fmt.Fprintln(os.Stderr)
		}
		if err := a.CancelSession(); err != nil {
			c.log.WithError(err).Debug("cancel after interrupt")
		}
		return &exitError{code: exitInterrupted, err: fmt.Errorf("session %s cancelled", shortID(id))}
	}
}
