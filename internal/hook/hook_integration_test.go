package hook

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestHook_Archive_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	hookDir := findHookDir("archive")
	if hookDir == "" {
		t.Skip("archive hook not built")
	}

	mgr := NewManager(filepath.Dir(hookDir))
	if err := mgr.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	h, err := mgr.Get("archive")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	src := filepath.Join(t.TempDir(), "1.jpg")
	if err := os.WriteFile(src, []byte{0xff, 0xd8, 0xff, 0xd9}, 0644); err != nil {
		t.Fatal(err)
	}

	req := &Request{
		Event:     EventSucceeded,
		SessionID: "integration",
		Images:    []string{src},
		Config:    json.RawMessage(`{"dir":"` + t.TempDir() + `"}`),
	}

	resp, err := NewExecutor(5*time.Second).Execute(context.Background(), h, req)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !resp.Success {
		t.Fatalf("archive hook failed: %s", resp.Error)
	}
}

// findHookDir locates a built sample hook relative to the package directory.
func findHookDir(name string) string {
	candidates := []string{
		filepath.Join("../../plugins", name),
		filepath.Join("../../../plugins", name),
	}

	for _, dir := range candidates {
		if _, err := os.Stat(filepath.Join(dir, ManifestFile)); err != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return dir
		}
	}
	return ""
}
