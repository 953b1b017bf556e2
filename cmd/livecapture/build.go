package main

import (
	"fmt"

	"github.com/ayusman/livecapture/internal/app"
	"github.com/ayusman/livecapture/internal/capture"
	"github.com/ayusman/livecapture/internal/detector"
	"github.com/ayusman/livecapture/internal/logging"
	"github.com/spf13/cobra"
)

// Frame sources selectable with --source.
const (
	sourceCamera    = "camera"
	sourceSynthetic = "synthetic"
)

// sourceOptions are the flags shared by commands that run sessions.
type sourceOptions struct {
	source   string
	detector string
	cameraID int
}

func (o *sourceOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.source, "source", sourceCamera, "Frame source: camera or synthetic")
	cmd.Flags().StringVar(&o.detector, "detector", "", "Face detector: yunet, cascade, external or bright (default from config)")
	cmd.Flags().IntVar(&o.cameraID, "camera", 0, "Camera device index (default from config)")
}

// syntheticFrames is a looping clip of a steady face followed by a nod,
// long enough at the default frame rate for a session to arm and trigger.
func syntheticFrames() []*capture.Frame {
	frames := capture.NodSequence(capture.DefaultWidth, capture.DefaultHeight, 2*capture.DefaultFPS, 24)
	for i := 0; i < capture.DefaultFPS; i++ {
		frames = append(frames, capture.FaceFrame(capture.DefaultWidth, capture.DefaultHeight, 0, 24))
	}
	return frames
}

// buildApp assembles the camera feed, detector and app from configuration
// and flags.
func (c *cli) buildApp(cmd *cobra.Command, o sourceOptions) (*app.App, error) {
	detCfg := c.cfg.Detector
	if cmd.Flags().Changed("detector") {
		detCfg.Backend = o.detector
	}

	var cam capture.Camera
	switch o.source {
	case sourceCamera:
		id := c.cfg.CameraID
		if cmd.Flags().Changed("camera") {
			id = o.cameraID
		}
		cam = capture.NewDeviceCamera(id, capture.DeviceOptions{
			Width:  c.cfg.CameraWidth,
			Height: c.cfg.CameraHeight,
			FPS:    c.cfg.FPS,
		})
	case sourceSynthetic:
		cam = capture.NewReplayCamera(syntheticFrames(), true)
		// Synthetic frames carry no real face; pair them with the matching detector.
		if !cmd.Flags().Changed("detector") {
			detCfg.Backend = detector.BackendBright
		}
	default:
		return nil, fmt.Errorf("unknown source %q", o.source)
	}
	cam.SetFPS(c.cfg.FPS)

	det, err := detector.New(detCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s detector: %w", detCfg.Backend, err)
	}

	a, err := app.New(app.Config{
		Store:        c.store,
		Feed:         capture.NewFeed(cam, logging.For("feed")),
		Detector:     det,
		Session:      c.cfg.Session,
		CaptureDir:   c.cfg.CaptureDir,
		HookDir:      c.cfg.HookDir,
		HookTimeout:  c.cfg.HookTimeout,
		MaxImageSide: c.cfg.MaxImageSide,
		Log:          logging.For("app"),
	})
	if err != nil {
		det.Close()
		return nil, err
	}

	if err := a.DiscoverHooks(); err != nil {
		c.log.WithError(err).Warn("hook discovery failed")
	}

	c.log.WithFields(logging.Fields{
		"source":   o.source,
		"detector": detCfg.Backend,
	}).Debug("app ready")
	return a, nil
}
