package api

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/livecapture/internal/app"
	"github.com/ayusman/livecapture/internal/session"
	"github.com/ayusman/livecapture/internal/store"
)

type fakeController struct {
	mu         sync.Mutex
	started    []session.Challenge
	startErr   error
	cancelErr  error
	cancelled  int
	currentSes *session.Session
}

func (c *fakeController) StartSession(ch session.Challenge) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startErr != nil {
		return "", c.startErr
	}
	c.started = append(c.started, ch)
	return "new-id", nil
}

func (c *fakeController) CancelSession() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelErr != nil {
		return c.cancelErr
	}
	c.cancelled++
	return nil
}

func (c *fakeController) Current() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentSes
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedSession stores a finished session with both stills.
func seedSession(t *testing.T, s *store.Store, id string) {
	t.Helper()
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := s.Sessions().Create(&store.Session{ID: id, Challenge: "left", StartedAt: started}); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := s.Sessions().Finish(id, store.Outcome{
		Status:      store.StatusSucceeded,
		Trigger:     "motion",
		MotionScore: 0.2,
		FinishedAt:  started.Add(4 * time.Second),
	}); err != nil {
		t.Fatalf("Finish() error: %v", err)
	}
	for pos := 1; pos <= 2; pos++ {
		if err := s.Stills().Create(&store.Still{
			ID:         id + "-still-" + string(rune('0'+pos)),
			SessionID:  id,
			Position:   pos,
			Width:      640,
			Height:     480,
			Tags:       []string{"left"},
			JPEG:       []byte{0xff, 0xd8, byte(pos), 0xff, 0xd9},
			CapturedAt: started.Add(time.Duration(pos) * time.Second),
		}); err != nil {
			t.Fatalf("Stills().Create() error: %v", err)
		}
	}
}

func serve(h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSessionHandler_List(t *testing.T) {
	s := setupTestStore(t)
	h := NewSessionHandler(s, nil)

	t.Run("empty list", func(t *testing.T) {
		rec := serve(h, http.MethodGet, "/api/sessions", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", ct)
		}

		var resp listSessionsResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Sessions == nil || len(resp.Sessions) != 0 {
			t.Errorf("expected empty non-null sessions, got %v", resp.Sessions)
		}
	})

	seedSession(t, s, "a")
	seedSession(t, s, "b")

	t.Run("respects limit", func(t *testing.T) {
		rec := serve(h, http.MethodGet, "/api/sessions?limit=1", nil)
		var resp listSessionsResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(resp.Sessions) != 1 {
			t.Errorf("expected 1 session, got %d", len(resp.Sessions))
		}
	})

	t.Run("rejects bad limit", func(t *testing.T) {
		for _, q := range []string{"abc", "0", "-3"} {
			rec := serve(h, http.MethodGet, "/api/sessions?limit="+q, nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("limit=%s: expected status %d, got %d", q, http.StatusBadRequest, rec.Code)
			}
		}
	})
}

func TestSessionHandler_Start(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		startErr   error
		wantStatus int
		wantCh     session.Challenge
	}{
		{"with challenge", `{"challenge":"left"}`, nil, http.StatusCreated, session.ChallengeLeft},
		{"empty body", ``, nil, http.StatusCreated, session.ChallengeNone},
		{"unknown challenge", `{"challenge":"sideways"}`, nil, http.StatusBadRequest, ""},
		{"invalid json", `{"challenge": 5}`, nil, http.StatusBadRequest, ""},
		{"already active", `{}`, app.ErrSessionActive, http.StatusConflict, ""},
		{"other error", `{}`, errors.New("boom"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeController{startErr: tt.startErr}
			h := NewSessionHandler(nil, c)

			rec := serve(h, http.MethodPost, "/api/sessions", []byte(tt.body))
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantStatus != http.StatusCreated {
				return
			}

			var resp startSessionResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.ID != "new-id" {
				t.Errorf("expected id new-id, got %q", resp.ID)
			}
			if len(c.started) != 1 || c.started[0] != tt.wantCh {
				t.Errorf("started = %v, want [%q]", c.started, tt.wantCh)
			}
		})
	}
}

func TestSessionHandler_StartRandom(t *testing.T) {
	c := &fakeController{}
	h := NewSessionHandler(nil, c)

	rec := serve(h, http.MethodPost, "/api/sessions", []byte(`{"challenge":"random"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, rec.Code)
	}
	if len(c.started) != 1 || c.started[0] == session.ChallengeNone {
		t.Errorf("random challenge not chosen: %v", c.started)
	}
}

func TestSessionHandler_Current(t *testing.T) {
	t.Run("no session", func(t *testing.T) {
		h := NewSessionHandler(nil, &fakeController{})
		rec := serve(h, http.MethodGet, "/api/sessions/current", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})

	t.Run("cancel", func(t *testing.T) {
		c := &fakeController{}
		h := NewSessionHandler(nil, c)
		rec := serve(h, http.MethodDelete, "/api/sessions/current", nil)
		if rec.Code != http.StatusNoContent {
			t.Errorf("expected status %d, got %d", http.StatusNoContent, rec.Code)
		}
		if c.cancelled != 1 {
			t.Errorf("expected 1 cancel, got %d", c.cancelled)
		}
	})

	t.Run("cancel without session", func(t *testing.T) {
		h := NewSessionHandler(nil, &fakeController{cancelErr: app.ErrNoSession})
		rec := serve(h, http.MethodDelete, "/api/sessions/current", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})

	t.Run("no controller", func(t *testing.T) {
		h := NewSessionHandler(nil, nil)
		for _, method := range []string{http.MethodGet, http.MethodDelete} {
			rec := serve(h, method, "/api/sessions/current", nil)
			if rec.Code != http.StatusServiceUnavailable {
				t.Errorf("%s: expected status %d, got %d", method, http.StatusServiceUnavailable, rec.Code)
			}
		}
		rec := serve(h, http.MethodPost, "/api/sessions", []byte(`{}`))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("POST: expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
		}
	})
}

func TestSessionHandler_Get(t *testing.T) {
	s := setupTestStore(t)
	seedSession(t, s, "abc")
	h := NewSessionHandler(s, nil)

	rec := serve(h, http.MethodGet, "/api/sessions/abc", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Stills []struct {
			Position int    `json:"position"`
			URL      string `json:"url"`
		} `json:"stills"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "abc" || resp.Status != "succeeded" {
		t.Errorf("unexpected session %+v", resp)
	}
	if len(resp.Stills) != 2 {
		t.Fatalf("expected 2 stills, got %d", len(resp.Stills))
	}
	if resp.Stills[1].URL != "/api/sessions/abc/images/2" {
		t.Errorf("unexpected url %q", resp.Stills[1].URL)
	}

	rec = serve(h, http.MethodGet, "/api/sessions/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d for missing session, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestSessionHandler_Delete(t *testing.T) {
	s := setupTestStore(t)
	seedSession(t, s, "abc")
	h := NewSessionHandler(s, nil)

	rec := serve(h, http.MethodDelete, "/api/sessions/abc", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}

	rec = serve(h, http.MethodDelete, "/api/sessions/abc", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d on second delete, got %d", http.StatusNotFound, rec.Code)
	}

	if _, err := s.Stills().Get("abc", 1); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("stills should be deleted with the session, got %v", err)
	}
}

func TestSessionHandler_Image(t *testing.T) {
	s := setupTestStore(t)
	seedSession(t, s, "abc")
	h := NewSessionHandler(s, nil)

	rec := serve(h, http.MethodGet, "/api/sessions/abc/images/2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("expected Content-Type image/jpeg, got %s", ct)
	}
	if got := rec.Body.Bytes(); len(got) != 5 || got[2] != 2 {
		t.Errorf("unexpected image bytes %v", got)
	}

	tests := []struct {
		path string
		want int
	}{
		{"/api/sessions/abc/images/3", http.StatusBadRequest},
		{"/api/sessions/abc/images/x", http.StatusBadRequest},
		{"/api/sessions/missing/images/1", http.StatusNotFound},
		{"/api/sessions/abc/other/1", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := serve(h, http.MethodGet, tt.path, nil)
		if rec.Code != tt.want {
			t.Errorf("%s: expected status %d, got %d", tt.path, tt.want, rec.Code)
		}
	}
}

func TestSessionHandler_MethodNotAllowed(t *testing.T) {
	h := NewSessionHandler(setupTestStore(t), &fakeController{})

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPut, "/api/sessions"},
		{http.MethodPost, "/api/sessions/current"},
		{http.MethodPatch, "/api/sessions/abc"},
		{http.MethodPost, "/api/sessions/abc/images/1"},
	}
	for _, tt := range tests {
		rec := serve(h, tt.method, tt.path, nil)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: expected status %d, got %d", tt.method, tt.path, http.StatusMethodNotAllowed, rec.Code)
		}
	}
}
