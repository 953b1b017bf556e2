package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ayusman/livecapture/internal/capture"
)

// StreamInterval is the MJPEG frame period (~15 FPS).
const StreamInterval = 66 * time.Millisecond

// FrameProvider exposes the newest camera frame. *capture.Feed implements it.
type FrameProvider interface {
	Latest() *capture.Frame
}

// StreamHandler serves MJPEG frames from the camera feed. Frames only flow
// while a session holds the feed; in between the stream idles.
type StreamHandler struct {
	frames   FrameProvider
	encode   func(*capture.Frame) ([]byte, error)
	interval time.Duration
}

// NewStreamHandler creates a new StreamHandler. A nil encode uses capture.EncodeJPEG.
func NewStreamHandler(frames FrameProvider, encode func(*capture.Frame) ([]byte, error)) *StreamHandler {
	if encode == nil {
		encode = capture.EncodeJPEG
	}
	return &StreamHandler{frames: frames, encode: encode, interval: StreamInterval}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var lastSeq uint64
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		frame := h.frames.Latest()
		if frame == nil || frame.Seq() == lastSeq {
			continue
		}
		lastSeq = frame.Seq()

		buf, err := h.encode(frame)
		if err != nil {
			continue
		}

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(buf))
		if _, err := w.Write(buf); err != nil {
			return
		}
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}
