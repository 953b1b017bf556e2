package server

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ayusman/livecapture/internal/logging"
)

func newBareServer(t *testing.T, staticDir string) *Server {
	t.Helper()
	return New(Config{StaticDir: staticDir, Log: logging.Discard()})
}

func TestServer_Health(t *testing.T) {
	s := newBareServer(t, "")

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	if _, ok := body["uptime"]; !ok {
		t.Error("missing uptime field")
	}
	// Capture fields only appear when the server drives an app.
	if _, ok := body["capture"]; ok {
		t.Error("capture field present without an app")
	}
}

func TestServer_HealthMethods(t *testing.T) {
	s := newBareServer(t, "")

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		t.Run(method, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, httptest.NewRequest(method, "/api/health", nil))
			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
			}
		})
	}
}

func TestServer_Routes(t *testing.T) {
	static := t.TempDir()
	files := map[string]string{
		"index.html": "<html><body>preview</body></html>",
		"app.js":     "connect('/api/events')",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(static, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	tests := []struct {
		name       string
		staticDir  string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"index at root", static, "/", http.StatusOK, files["index.html"]},
		{"static asset", static, "/app.js", http.StatusOK, files["app.js"]},
		{"missing asset", static, "/missing.css", http.StatusNotFound, ""},
		{"no static dir", "", "/", http.StatusNotFound, ""},
		{"unknown api route", "", "/api/nonexistent", http.StatusNotFound, ""},
		// Session and preview routes need a store or an app.
		{"sessions without store", "", "/api/sessions", http.StatusNotFound, ""},
		{"stream without app", "", "/api/stream", http.StatusNotFound, ""},
		{"events without app", "", "/api/events", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newBareServer(t, tt.staticDir)
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("GET %s status = %d, want %d", tt.path, rec.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("GET %s body = %q, want %q", tt.path, rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestNew_WithoutApp(t *testing.T) {
	s := newBareServer(t, "/some/path")

	if s.config.StaticDir != "/some/path" {
		t.Errorf("StaticDir = %q", s.config.StaticDir)
	}
	if s.Events() != nil {
		t.Error("Events() should be nil without an app")
	}
	var _ http.Handler = s
}
