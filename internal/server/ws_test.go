package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/livecapture/internal/capture"
	"github.com/ayusman/livecapture/internal/session"
	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, h *EventHub) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("bad event %s: %v", data, err)
	}
	return ev
}

func TestEventHub_Broadcast(t *testing.T) {
	h := NewEventHub(nil)
	conn := dialHub(t, h)

	h.Instruction("Look at the camera")
	ev := readEvent(t, conn)
	if ev.Type != EventInstruction || ev.Instruction != "Look at the camera" {
		t.Errorf("unexpected instruction event %+v", ev)
	}
	if ev.Timestamp == 0 {
		t.Error("event timestamp not set")
	}

	h.Overlay(session.Overlay{State: session.AwaitingTrigger, FoundFaces: 5, MotionScore: 0.04})
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if !strings.Contains(string(raw), `"state":"awaiting_trigger"`) {
		t.Errorf("overlay state not encoded by name: %s", raw)
	}
}

func TestEventHub_Result(t *testing.T) {
	h := NewEventHub(nil)
	conn := dialHub(t, h)

	frame := capture.SolidFrame(8, 8, 10)
	h.Result(session.Result{
		SessionID:   "abc",
		Image1:      capture.NewStill(frame),
		Image2:      capture.NewStill(frame),
		Trigger:     session.TriggerDelay,
		MotionScore: 0.01,
	})
	ev := readEvent(t, conn)
	if ev.Type != EventResult || ev.Result == nil {
		t.Fatalf("unexpected event %+v", ev)
	}
	if !ev.Result.Succeeded || ev.Result.Trigger != "delay" || len(ev.Result.Images) != 2 {
		t.Errorf("unexpected success payload %+v", ev.Result)
	}

	h.Result(session.Result{SessionID: "def", Code: session.NoFaceFound})
	ev = readEvent(t, conn)
	if ev.Result.Succeeded || ev.Result.FailureCode != 2 || ev.Result.Failure != "no_face_found" {
		t.Errorf("unexpected failure payload %+v", ev.Result)
	}
}

func TestEventHub_ClientDisconnect(t *testing.T) {
	h := NewEventHub(nil)
	conn := dialHub(t, h)
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client not removed after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Broadcasting with no clients is a no-op.
	h.Instruction("nobody listening")
}
