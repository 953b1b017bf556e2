package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/livecapture/internal/app"
	"github.com/ayusman/livecapture/internal/session"
	"github.com/ayusman/livecapture/internal/store"
)

// DefaultListLimit caps GET /api/sessions when no limit is given.
const DefaultListLimit = 50

// Controller starts and cancels capture sessions. *app.App implements it.
type Controller interface {
	StartSession(challenge session.Challenge) (string, error)
	CancelSession() error
	Current() *session.Session
}

// SessionHandler handles HTTP requests for capture sessions.
type SessionHandler struct {
	store      *store.Store
	controller Controller
}

// NewSessionHandler creates a SessionHandler. Either argument may be nil;
// the routes that need it then answer 503.
func NewSessionHandler(s *store.Store, c Controller) *SessionHandler {
	return &SessionHandler{store: s, controller: c}
}

// ServeHTTP routes:
//
//	GET    /api/sessions
//	POST   /api/sessions
//	GET    /api/sessions/current
//	DELETE /api/sessions/current
//	GET    /api/sessions/{id}
//	DELETE /api/sessions/{id}
//	GET    /api/sessions/{id}/images/{1|2}
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.start(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	parts := strings.Split(path, "/")

	if parts[0] == "current" && len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.current(w, r)
		case http.MethodDelete:
			h.cancel(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id := parts[0]
	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, id)
		case http.MethodDelete:
			h.delete(w, r, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case len(parts) == 3 && parts[1] == "images":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.image(w, r, id, parts[2])
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

// Request and response types

type startSessionRequest struct {
	Challenge string `json:"challenge"`
}

type startSessionResponse struct {
	ID          string `json:"id"`
	Challenge   string `json:"challenge"`
	Instruction string `json:"instruction,omitempty"`
}

type currentSessionResponse struct {
	ID    string        `json:"id"`
	State session.State `json:"state"`
}

type stillResponse struct {
	ID         string   `json:"id"`
	Position   int      `json:"position"`
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	Tags       []string `json:"tags"`
	URL        string   `json:"url"`
	CapturedAt string   `json:"captured_at"`
}

type sessionResponse struct {
	*store.Session
	Stills []stillResponse `json:"stills,omitempty"`
}

type listSessionsResponse struct {
	Sessions []*store.Session `json:"sessions"`
}

// list handles GET /api/sessions?limit=N.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "Storage not configured")
		return
	}

	limit := DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	sessions, err := h.store.Sessions().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*store.Session{}
	}

	writeJSON(w, http.StatusOK, listSessionsResponse{Sessions: sessions})
}

// start handles POST /api/sessions. An empty body or challenge starts a
// session without a challenge; "random" picks one.
func (h *SessionHandler) start(w http.ResponseWriter, r *http.Request) {
	if h.controller == nil {
		writeError(w, http.StatusServiceUnavailable, "Capture not available")
		return
	}

	var req startSessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	var challenge session.Challenge
	if req.Challenge == "random" {
		challenge = session.RandomChallenge()
	} else {
		c, err := session.ParseChallenge(req.Challenge)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		challenge = c
	}

	id, err := h.controller.StartSession(challenge)
	if err != nil {
		if errors.Is(err, app.ErrSessionActive) {
			writeError(w, http.StatusConflict, "A session is already active")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to start session")
		return
	}

	writeJSON(w, http.StatusCreated, startSessionResponse{
		ID:          id,
		Challenge:   string(challenge),
		Instruction: challenge.Instruction(),
	})
}

// current handles GET /api/sessions/current.
func (h *SessionHandler) current(w http.ResponseWriter, r *http.Request) {
	if h.controller == nil {
		writeError(w, http.StatusServiceUnavailable, "Capture not available")
		return
	}

	sess := h.controller.Current()
	if sess == nil {
		writeError(w, http.StatusNotFound, "No active session")
		return
	}

	writeJSON(w, http.StatusOK, currentSessionResponse{ID: sess.ID(), State: sess.State()})
}

// cancel handles DELETE /api/sessions/current.
func (h *SessionHandler) cancel(w http.ResponseWriter, r *http.Request) {
	if h.controller == nil {
		writeError(w, http.StatusServiceUnavailable, "Capture not available")
		return
	}

	if err := h.controller.CancelSession(); err != nil {
		if errors.Is(err, app.ErrNoSession) {
			writeError(w, http.StatusNotFound, "No active session")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to cancel session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// get handles GET /api/sessions/{id}, including still metadata.
func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "Storage not configured")
		return
	}

	sess, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	stills, err := h.store.Stills().ListBySession(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list stills")
		return
	}

	response := sessionResponse{Session: sess}
	for _, st := range stills {
		response.Stills = append(response.Stills, stillResponse{
			ID:         st.ID,
			Position:   st.Position,
			Width:      st.Width,
			Height:     st.Height,
			Tags:       st.Tags,
			URL:        fmt.Sprintf("/api/sessions/%s/images/%d", id, st.Position),
			CapturedAt: st.CapturedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, response)
}

// delete handles DELETE /api/sessions/{id}. Stills go with it.
func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "Storage not configured")
		return
	}

	if err := h.store.Sessions().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// image handles GET /api/sessions/{id}/images/{1|2}.
func (h *SessionHandler) image(w http.ResponseWriter, r *http.Request, id, pos string) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "Storage not configured")
		return
	}

	position, err := strconv.Atoi(pos)
	if err != nil || (position != 1 && position != 2) {
		writeError(w, http.StatusBadRequest, "Image position must be 1 or 2")
		return
	}

	st, err := h.store.Stills().Get(id, position)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Image not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get image")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(st.JPEG)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(st.JPEG)
}
