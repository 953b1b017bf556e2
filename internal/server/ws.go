package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/ayusman/livecapture/internal/logging"
	"github.com/ayusman/livecapture/internal/session"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Event types sent on /api/events.
const (
	EventInstruction = "instruction"
	EventOverlay     = "overlay"
	EventResult      = "result"
)

const (
	clientBuffer = 16
	writeTimeout = 2 * time.Second
)

// Event is one websocket message.
type Event struct {
	Type        string           `json:"type"`
	Instruction string           `json:"instruction,omitempty"`
	Overlay     *session.Overlay `json:"overlay,omitempty"`
	Result      *ResultEvent     `json:"result,omitempty"`
	Timestamp   int64            `json:"timestamp"`
}

// ResultEvent summarizes a finished session.
type ResultEvent struct {
	SessionID   string   `json:"session_id"`
	Succeeded   bool     `json:"succeeded"`
	FailureCode int      `json:"failure_code,omitempty"`
	Failure     string   `json:"failure,omitempty"`
	Trigger     string   `json:"trigger,omitempty"`
	MotionScore float64  `json:"motion_score"`
	Images      []string `json:"images,omitempty"`
}

// EventHub broadcasts session presentation updates to websocket clients.
// It is a session.Presenter; register Result as an app result callback.
type EventHub struct {
	log     *logrus.Entry
	clients map[*websocket.Conn]chan []byte
	mu      sync.RWMutex
}

// NewEventHub creates an EventHub with no clients.
func NewEventHub(log *logrus.Entry) *EventHub {
	if log == nil {
		log = logging.Discard()
	}
	return &EventHub{
		log:     log,
		clients: make(map[*websocket.Conn]chan []byte),
	}
}

// Instruction broadcasts an instruction event.
func (h *EventHub) Instruction(text string) {
	h.Broadcast(Event{Type: EventInstruction, Instruction: text})
}

// Overlay broadcasts an overlay event.
func (h *EventHub) Overlay(o session.Overlay) {
	h.Broadcast(Event{Type: EventOverlay, Overlay: &o})
}

// Result broadcasts a session result with links to its images.
func (h *EventHub) Result(res session.Result) {
	ev := &ResultEvent{
		SessionID:   res.SessionID,
		Succeeded:   res.Succeeded(),
		MotionScore: res.MotionScore,
	}
	if res.Succeeded() {
		ev.Trigger = res.Trigger.String()
		ev.Images = []string{
			"/api/sessions/" + res.SessionID + "/images/1",
			"/api/sessions/" + res.SessionID + "/images/2",
		}
	} else {
		ev.FailureCode = int(res.Code)
		ev.Failure = res.Code.String()
	}
	h.Broadcast(Event{Type: EventResult, Result: ev})
}

// Broadcast sends ev to every client. Clients whose buffer is full miss it.
func (h *EventHub) Broadcast(ev Event) {
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return
	}

	msg, err := json.Marshal(ev)
	if err != nil {
		h.log.WithError(err).Warn("failed to encode event")
		return
	}

	for _, send := range h.clients {
		select {
		case send <- msg:
		default:
		}
	}
}

// Clients returns the number of connected clients.
func (h *EventHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	send := make(chan []byte, clientBuffer)
	h.mu.Lock()
	h.clients[conn] = send
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		// Keep connection alive by reading messages
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-readDone:
			return
		case msg := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}
