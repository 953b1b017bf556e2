package hook

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// writeScriptHook writes a shell script into dir and returns a Hook for it.
func writeScriptHook(t *testing.T, dir, name, script string) *Hook {
	t.Helper()

	scriptPath := filepath.Join(dir, name+".sh")
	if err := os.WriteFile(scriptPath, []byte(script), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	return &Hook{
		Manifest: Manifest{
			Name:       name,
			Version:    "1.0.0",
			Executable: name + ".sh",
			Events:     []Event{EventSucceeded, EventFailed},
		},
		Path:       dir,
		Executable: scriptPath,
	}
}

func TestExecutor_Execute(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	h := writeScriptHook(t, t.TempDir(), "test-hook", `#!/bin/sh
cat <<'EOF'
{"success":true,"data":{"message":"hello world"}}
EOF
`)

	request := &Request{
		Event:     EventSucceeded,
		SessionID: "s-1",
		Images:    []string{"/tmp/1.jpg", "/tmp/2.jpg"},
	}

	executor := NewExecutor(5 * time.Second)
	response, err := executor.Execute(context.Background(), h, request)
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	if !response.Success {
		t.Errorf("expected success=true, got false")
	}
	if response.Error != "" {
		t.Errorf("expected empty error, got %q", response.Error)
	}

	var data map[string]interface{}
	if err := json.Unmarshal(response.Data, &data); err != nil {
		t.Fatalf("failed to unmarshal response data: %v", err)
	}
	if data["message"] != "hello world" {
		t.Errorf("expected message 'hello world', got %v", data["message"])
	}
}

func TestExecutor_Execute_ReadsStdin(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	h := writeScriptHook(t, t.TempDir(), "echo-hook", `#!/bin/sh
INPUT=$(cat)
echo "{\"success\":true,\"data\":{\"received\":$INPUT}}"
`)
	h.Manifest.Config = json.RawMessage(`{"dir":"/archive"}`)

	request := &Request{
		Event:       EventFailed,
		SessionID:   "s-2",
		Challenge:   "left",
		FailureCode: 3,
	}

	executor := NewExecutor(5 * time.Second)
	response, err := executor.Execute(context.Background(), h, request)
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	var data map[string]interface{}
	if err := json.Unmarshal(response.Data, &data); err != nil {
		t.Fatalf("failed to unmarshal response data: %v", err)
	}

	received, ok := data["received"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected 'received' to be an object, got %T", data["received"])
	}

	if received["event"] != "failed" {
		t.Errorf("expected event 'failed', got %v", received["event"])
	}
	if received["session_id"] != "s-2" {
		t.Errorf("expected session_id 's-2', got %v", received["session_id"])
	}
	if received["failure_code"] != float64(3) {
		t.Errorf("expected failure_code 3, got %v", received["failure_code"])
	}

	config, ok := received["config"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected manifest config in request, got %T", received["config"])
	}
	if config["dir"] != "/archive" {
		t.Errorf("expected config dir '/archive', got %v", config["dir"])
	}
	if request.Config != nil {
		t.Error("Execute() should not modify the caller's request")
	}
}

func TestExecutor_Timeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	h := writeScriptHook(t, t.TempDir(), "slow-hook", `#!/bin/sh
sleep 10
echo '{"success":true}'
`)

	executor := NewExecutor(100 * time.Millisecond)
	start := time.Now()
	_, err := executor.Execute(context.Background(), h, &Request{Event: EventSucceeded})
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("expected timeout error, got: %v", err)
	}
	if elapsed > 5*time.Second {
		t.Errorf("timeout took too long: %v", elapsed)
	}
}

func TestExecutor_Execute_CancelledContext(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	h := writeScriptHook(t, t.TempDir(), "slow-hook", `#!/bin/sh
sleep 10
`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	executor := NewExecutor(5 * time.Second)
	if _, err := executor.Execute(ctx, h, &Request{Event: EventSucceeded}); err == nil {
		t.Fatal("expected error for cancelled context, got nil")
	}
}

func TestExecutor_Execute_ErrorResponse(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	h := writeScriptHook(t, t.TempDir(), "error-hook", `#!/bin/sh
echo '{"success":false,"error":"archive dir not writable"}'
`)

	executor := NewExecutor(5 * time.Second)
	response, err := executor.Execute(context.Background(), h, &Request{Event: EventSucceeded})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	if response.Success {
		t.Error("expected success=false, got true")
	}
	if response.Error != "archive dir not writable" {
		t.Errorf("expected error 'archive dir not writable', got %q", response.Error)
	}
}

func TestExecutor_Execute_InvalidJSON(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	h := writeScriptHook(t, t.TempDir(), "bad-hook", `#!/bin/sh
echo 'not json'
`)

	executor := NewExecutor(5 * time.Second)
	_, err := executor.Execute(context.Background(), h, &Request{Event: EventSucceeded})
	if err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
	if !strings.Contains(err.Error(), "failed to parse hook response") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestExecutor_Execute_NonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	h := writeScriptHook(t, t.TempDir(), "exit-hook", `#!/bin/sh
echo "boom" >&2
exit 1
`)

	executor := NewExecutor(5 * time.Second)
	_, err := executor.Execute(context.Background(), h, &Request{Event: EventFailed})
	if err == nil {
		t.Fatal("expected error for non-zero exit, got nil")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected stderr in error, got: %v", err)
	}
}

func TestNewExecutor(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		want    time.Duration
	}{
		{"explicit", 2 * time.Second, 2 * time.Second},
		{"zero uses default", 0, DefaultTimeout},
		{"negative uses default", -time.Second, DefaultTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewExecutor(tt.timeout).Timeout(); got != tt.want {
				t.Errorf("Timeout() = %v, want %v", got, tt.want)
			}
		})
	}
}
