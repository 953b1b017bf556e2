// Package main provides a desktop notification hook.
// It uses osascript on macOS and notify-send elsewhere.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Request represents the input from the hook executor.
type Request struct {
	Event       string          `json:"event"`
	SessionID   string          `json:"session_id"`
	Challenge   string          `json:"challenge"`
	FailureCode int             `json:"failure_code"`
	Trigger     string          `json:"trigger"`
	MotionScore float64         `json:"motion_score"`
	Images      []string        `json:"images"`
	Config      json.RawMessage `json:"config"`
}

// Response represents the output to the hook executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// failureMessages maps failure codes to user-facing text.
var failureMessages = map[int]string{
	1: "Camera access was denied",
	2: "No face was found",
	3: "No movement was detected",
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	title, body, err := message(req)
	if err != nil {
		writeErrorResponse(err.Error())
		return
	}

	if err := notify(title, body); err != nil {
		writeErrorResponse(fmt.Sprintf("notification failed: %v", err))
		return
	}

	writeSuccessResponse()
}

// message builds the notification title and body for a request.
func message(req Request) (string, string, error) {
	switch req.Event {
	case "succeeded":
		return "Capture complete", fmt.Sprintf("Captured %d images (%s trigger)", len(req.Images), req.Trigger), nil
	case "failed":
		msg, ok := failureMessages[req.FailureCode]
		if !ok {
			msg = fmt.Sprintf("Failure code %d", req.FailureCode)
		}
		return "Capture failed", msg, nil
	default:
		return "", "", fmt.Errorf("unknown event: %s", req.Event)
	}
}

func notify(title, body string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf(`display notification %q with title %q`, escape(body), escape(title))
		cmd = exec.Command("osascript", "-e", script)
	case "linux":
		cmd = exec.Command("notify-send", title, body)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

// escape strips characters AppleScript string literals cannot carry.
func escape(s string) string {
	return strings.NewReplacer(`"`, `'`, `\`, `/`).Replace(s)
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	resp := Response{
		Success: false,
		Error:   errMsg,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse() {
	resp := Response{
		Success: true,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
