package e2e

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/livecapture/internal/app"
	"github.com/ayusman/livecapture/internal/capture"
	"github.com/ayusman/livecapture/internal/detector"
	"github.com/ayusman/livecapture/internal/logging"
	"github.com/ayusman/livecapture/internal/server"
	"github.com/ayusman/livecapture/internal/session"
	"github.com/ayusman/livecapture/internal/store"
)

const (
	frameW = 160
	frameH = 120
)

func fakeJPEG(f *capture.Frame) ([]byte, error) {
	return []byte{0xff, 0xd8, byte(f.Seq()), 0xff, 0xd9}, nil
}

type env struct {
	app    *app.App
	store  *store.Store
	camera *capture.ReplayCamera
	ts     *httptest.Server
	dir    string
}

func setup(t *testing.T, frames []*capture.Frame, mutate func(*app.Config)) *env {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	dir := t.TempDir()
	s, err := store.New(filepath.Join(dir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	cam := capture.NewReplayCamera(frames, true)
	cam.SetFPS(400)

	cfg := session.DefaultConfig()
	cfg.TickPeriod = 5 * time.Millisecond
	cfg.KillDeadline = 3 * time.Second
	cfg.TriggerDelay = 0

	appCfg := app.Config{
		Store:      s,
		Feed:       capture.NewFeed(cam, nil),
		Detector:   detector.NewBrightRegion(128),
		Session:    cfg,
		CaptureDir: filepath.Join(dir, "captures"),
		Encode:     fakeJPEG,
		Log:        logging.Discard(),
	}
	if mutate != nil {
		mutate(&appCfg)
	}

	a, err := app.New(appCfg)
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })

	srv := server.New(server.Config{App: a, Encode: fakeJPEG, Log: logging.Discard()})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return &env{app: a, store: s, camera: cam, ts: ts, dir: dir}
}

func nodFrames() []*capture.Frame {
	var frames []*capture.Frame
	for i := 0; i < 10; i++ {
		frames = append(frames, capture.FaceFrame(frameW, frameH, 0, 0))
	}
	for i := 0; i < 5; i++ {
		frames = append(frames, capture.FaceFrame(frameW, frameH, 0, 20))
	}
	return frames
}

func (e *env) start(t *testing.T, challenge string) string {
	t.Helper()
	resp, err := e.ts.Client().Post(e.ts.URL+"/api/sessions", "application/json",
		strings.NewReader(`{"challenge":"`+challenge+`"}`))
	if err != nil {
		t.Fatalf("start session error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("start status = %d: %s", resp.StatusCode, body)
	}

	var started struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&started); err != nil {
		t.Fatalf("decode start response: %v", err)
	}
	return started.ID
}

type storedSession struct {
	ID          string `json:"id"`
	Challenge   string `json:"challenge"`
	Status      string `json:"status"`
	FailureCode int    `json:"failure_code"`
	Trigger     string `json:"trigger"`
	Stills      []struct {
		Position int    `json:"position"`
		URL      string `json:"url"`
	} `json:"stills"`
}

// waitFinished polls the API until the session leaves the running state.
func (e *env) waitFinished(t *testing.T, id string) storedSession {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := e.ts.Client().Get(e.ts.URL + "/api/sessions/" + id)
		if err != nil {
			t.Fatalf("get session error = %v", err)
		}
		var got storedSession
		err = json.NewDecoder(resp.Body).Decode(&got)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decode session: %v", err)
		}
		if got.Status != string(store.StatusRunning) {
			return got
		}
		if time.Now().After(deadline) {
			t.Fatalf("session %s still running", id)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	e := setup(t, nodFrames(), nil)

	id := e.start(t, "down")
	got := e.waitFinished(t, id)

	t.Run("SessionSucceeded", func(t *testing.T) {
		if got.Status != string(store.StatusSucceeded) {
			t.Fatalf("status = %q, want succeeded", got.Status)
		}
		if got.Challenge != "down" {
			t.Errorf("challenge = %q, want down", got.Challenge)
		}
		if got.Trigger != "motion" {
			t.Errorf("trigger = %q, want motion", got.Trigger)
		}
		if len(got.Stills) != 2 {
			t.Fatalf("got %d stills, want 2", len(got.Stills))
		}
	})

	t.Run("DownloadImages", func(t *testing.T) {
		for _, st := range got.Stills {
			resp, err := e.ts.Client().Get(e.ts.URL + st.URL)
			if err != nil {
				t.Fatalf("GET %s error = %v", st.URL, err)
			}
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("GET %s status = %d", st.URL, resp.StatusCode)
			}
			if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
				t.Errorf("Content-Type = %q", ct)
			}
			if len(body) < 2 || body[0] != 0xff || body[1] != 0xd8 {
				t.Errorf("image %d is not a JPEG", st.Position)
			}
		}
	})

	t.Run("CaptureFilesWritten", func(t *testing.T) {
		for pos := 1; pos <= 2; pos++ {
			path := filepath.Join(e.dir, "captures", fmt.Sprintf("%s-%d.jpg", id, pos))
			if _, err := os.Stat(path); err != nil {
				t.Errorf("capture file missing: %v", err)
			}
		}
	})

	t.Run("NextSessionCanStart", func(t *testing.T) {
		next := e.start(t, "")
		if next == id {
			t.Error("session IDs must differ")
		}
		e.waitFinished(t, next)
	})

	t.Run("DeleteSession", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodDelete, e.ts.URL+"/api/sessions/"+id, nil)
		resp, err := e.ts.Client().Do(req)
		if err != nil {
			t.Fatalf("delete error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("delete status = %d, want %d", resp.StatusCode, http.StatusNoContent)
		}
		if _, err := e.store.Sessions().GetByID(id); err != store.ErrNotFound {
			t.Errorf("GetByID() after delete error = %v, want ErrNotFound", err)
		}
	})

	t.Run("HealthCheck", func(t *testing.T) {
		resp, err := e.ts.Client().Get(e.ts.URL + "/api/health")
		if err != nil {
			t.Fatalf("health error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("health status = %d", resp.StatusCode)
		}
	})
}

func TestE2E_FailureCodes(t *testing.T) {
	still := func() []*capture.Frame {
		return []*capture.Frame{capture.FaceFrame(frameW, frameH, 0, 0)}
	}
	empty := func() []*capture.Frame {
		return []*capture.Frame{capture.SolidFrame(frameW, frameH, capture.SyntheticBackground)}
	}

	tests := []struct {
		name   string
		frames []*capture.Frame
		deny   bool
		want   session.FailureCode
	}{
		{"no camera access", nodFrames(), true, session.NoCameraAccess},
		{"no face found", empty(), false, session.NoFaceFound},
		{"no motion detected", still(), false, session.NoMotionDetected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := setup(t, tt.frames, func(c *app.Config) {
				c.Session.KillDeadline = 400 * time.Millisecond
			})
			e.camera.DenyAccess(tt.deny)

			id := e.start(t, "")
			got := e.waitFinished(t, id)
			if got.Status != string(store.StatusFailed) {
				t.Fatalf("status = %q, want failed", got.Status)
			}
			if got.FailureCode != int(tt.want) {
				t.Errorf("failure_code = %d, want %d", got.FailureCode, tt.want)
			}
			if len(got.Stills) != 0 {
				t.Errorf("failed session has %d stills", len(got.Stills))
			}
		})
	}
}

func TestE2E_CancelAndHooks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	hookDir := t.TempDir()
	marker := filepath.Join(t.TempDir(), "events.log")
	dir := filepath.Join(hookDir, "log")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	manifest := `{"name":"log","executable":"log.sh","events":["succeeded","failed"]}`
	if err := os.WriteFile(filepath.Join(dir, "hook.json"), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}
	script := "#!/bin/sh\ncat >> " + marker + "\necho >> " + marker + "\necho '{\"success\":true}'\n"
	if err := os.WriteFile(filepath.Join(dir, "log.sh"), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	// A steady face never triggers, so the session stays running until cancelled.
	e := setup(t, []*capture.Frame{capture.FaceFrame(frameW, frameH, 0, 0)}, func(c *app.Config) {
		c.HookDir = hookDir
		c.Session.KillDeadline = 10 * time.Second
	})
	if err := e.app.DiscoverHooks(); err != nil {
		t.Fatalf("DiscoverHooks() error = %v", err)
	}

	id := e.start(t, "right")

	req, _ := http.NewRequest(http.MethodDelete, e.ts.URL+"/api/sessions/current", nil)
	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("cancel error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("cancel status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	got := e.waitFinished(t, id)
	if got.Status != string(store.StatusCancelled) {
		t.Errorf("status = %q, want cancelled", got.Status)
	}

	if err := e.app.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if data, err := os.ReadFile(marker); err == nil && len(data) > 0 {
		t.Errorf("hooks ran for a cancelled session: %s", data)
	}
}
