// Package main provides an archive hook.
// It copies the stills of a successful session into a dated directory
// together with a JSON sidecar describing the session.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
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

// Config is read from the manifest's config block.
type Config struct {
	Dir string `json:"dir"`
}

// sidecar is written next to the archived stills.
type sidecar struct {
	SessionID   string    `json:"session_id"`
	Challenge   string    `json:"challenge,omitempty"`
	Trigger     string    `json:"trigger,omitempty"`
	MotionScore float64   `json:"motion_score"`
	Images      []string  `json:"images"`
	ArchivedAt  time.Time `json:"archived_at"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	if req.Event != "succeeded" {
		writeErrorResponse(fmt.Sprintf("unsupported event: %s", req.Event))
		return
	}

	dir, err := archive(req)
	if err != nil {
		writeErrorResponse(fmt.Sprintf("archive failed: %v", err))
		return
	}

	data, _ := json.Marshal(map[string]string{"dir": dir})
	writeSuccessResponse(data)
}

// archive copies the request's images into <root>/<date>/<session id>.
func archive(req Request) (string, error) {
	if req.SessionID == "" {
		return "", fmt.Errorf("session_id is required")
	}
	if len(req.Images) == 0 {
		return "", fmt.Errorf("no images to archive")
	}

	var cfg Config
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return "", fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if cfg.Dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		cfg.Dir = filepath.Join(home, "livecapture-archive")
	}

	now := time.Now()
	dir := filepath.Join(cfg.Dir, now.Format("2006-01-02"), req.SessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	names := make([]string, 0, len(req.Images))
	for _, src := range req.Images {
		name := filepath.Base(src)
		if err := copyFile(src, filepath.Join(dir, name)); err != nil {
			return "", err
		}
		names = append(names, name)
	}

	meta, err := json.MarshalIndent(sidecar{
		SessionID:   req.SessionID,
		Challenge:   req.Challenge,
		Trigger:     req.Trigger,
		MotionScore: req.MotionScore,
		Images:      names,
		ArchivedAt:  now,
	}, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, "session.json"), meta, 0644); err != nil {
		return "", err
	}

	return dir, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
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
func writeSuccessResponse(data json.RawMessage) {
	resp := Response{
		Success: true,
		Data:    data,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
