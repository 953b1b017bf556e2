package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ayusman/livecapture/internal/capture"
	"github.com/ayusman/livecapture/internal/hook"
	"github.com/ayusman/livecapture/internal/session"
	"github.com/ayusman/livecapture/internal/store"
	"github.com/sirupsen/logrus"
)

// handleResult runs once per finished session, off the session loop.
//
// Result pipeline:
// 1. Encode both stills (success only)
// 2. Write them to the capture dir
// 3. Record the outcome and stills in the store
// 4. Release the session slot and notify callbacks
// 5. Run the hooks subscribed to the outcome
func (a *App) handleResult(res session.Result) {
	defer a.pending.Done()

	log := a.log.WithField("session", shortID(res.SessionID))

	var (
		stills []*store.Still
		paths  []string
	)
	if res.Succeeded() {
		var err error
		stills, err = a.encodeStills(res)
		if err != nil {
			log.WithError(err).Error("failed to encode stills")
		}
		paths = a.writeStills(stills, log)
	}

	a.persist(res, stills, log)

	a.mu.Lock()
	if a.current != nil && a.current.ID() == res.SessionID {
		a.current = nil
	}
	callbacks := make([]func(session.Result), len(a.callbacks))
	copy(callbacks, a.callbacks)
	a.mu.Unlock()

	for _, fn := range callbacks {
		fn(res)
	}

	a.runHooks(res, paths, log)
}

// encodeStills converts the result's images into store rows.
func (a *App) encodeStills(res session.Result) ([]*store.Still, error) {
	images := []*capture.Still{res.Image1, res.Image2}
	stills := make([]*store.Still, 0, len(images))

	for i, img := range images {
		frame := img.Frame
		if a.config.MaxImageSide > 0 {
			resized, err := capture.ResizeForUpload(frame, a.config.MaxImageSide)
			if err != nil {
				return nil, fmt.Errorf("image %d: %w", i+1, err)
			}
			frame = resized
		}

		data, err := a.encode(frame)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i+1, err)
		}
		stills = append(stills, &store.Still{
			ID:         img.ID,
			SessionID:  res.SessionID,
			Position:   i + 1,
			Width:      frame.Width(),
			Height:     frame.Height(),
			Tags:       img.Tags,
			JPEG:       data,
			CapturedAt: img.CapturedAt,
		})
	}
	return stills, nil
}

// writeStills writes JPEGs to the capture dir and returns their paths.
func (a *App) writeStills(stills []*store.Still, log *logrus.Entry) []string {
	if a.config.CaptureDir == "" {
		return nil
	}

	paths := make([]string, 0, len(stills))
	for _, st := range stills {
		path := filepath.Join(a.config.CaptureDir, fmt.Sprintf("%s-%d.jpg", st.SessionID, st.Position))
		if err := os.WriteFile(path, st.JPEG, 0644); err != nil {
			log.WithError(err).WithField("path", path).Error("failed to write still")
			continue
		}
		paths = append(paths, path)
	}
	return paths
}

func (a *App) persist(res session.Result, stills []*store.Still, log *logrus.Entry) {
	st := a.config.Store
	if st == nil {
		return
	}

	outcome := store.Outcome{
		Status:      store.StatusFailed,
		FailureCode: int(res.Code),
		MotionScore: res.MotionScore,
		FinishedAt:  res.FinishedAt,
	}
	if res.Succeeded() {
		outcome.Status = store.StatusSucceeded
		outcome.Trigger = res.Trigger.String()
	}

	if err := st.Sessions().Finish(res.SessionID, outcome); err != nil {
		log.WithError(err).Error("failed to record outcome")
		return
	}
	if len(stills) == 0 {
		return
	}
	if err := st.Stills().Create(stills...); err != nil {
		log.WithError(err).Error("failed to store stills")
	}
}

// runHooks executes every hook subscribed to the result's event. A failing
// hook is logged and does not stop the others.
func (a *App) runHooks(res session.Result, paths []string, log *logrus.Entry) {
	if a.hookMgr == nil {
		return
	}

	event := hook.EventFailed
	if res.Succeeded() {
		event = hook.EventSucceeded
	}

	req := &hook.Request{
		Event:       event,
		SessionID:   res.SessionID,
		Challenge:   string(res.Challenge),
		FailureCode: int(res.Code),
		MotionScore: res.MotionScore,
		Images:      paths,
	}
	if res.Succeeded() {
		req.Trigger = res.Trigger.String()
	}

	for _, h := range a.hookMgr.ForEvent(event) {
		entry := log.WithField("hook", h.Manifest.Name)
		resp, err := a.hookExec.Execute(a.ctx, h, req)
		if err != nil {
			entry.WithError(err).Warn("hook failed")
			continue
		}
		if !resp.Success {
			entry.WithField("error", resp.Error).Warn("hook reported failure")
			continue
		}
		entry.Debug("hook completed")
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
