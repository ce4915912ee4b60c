package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/iammorganparry/clive/apps/interviewer/internal/events"
	"github.com/iammorganparry/clive/apps/interviewer/internal/interview"
)

const (
	eventsWriteWait = 10 * time.Second
	eventsPongWait  = 60 * time.Second
	eventsPingEvery = (eventsPongWait * 9) / 10
	eventsReadLimit = 512
)

// EventHandler streams session events over WebSocket.
type EventHandler struct {
	hub      *events.Hub
	sessions *interview.Sessions
	upgrader websocket.Upgrader
}

func NewEventHandler(hub *events.Hub, sessions *interview.Sessions, origins []string) *EventHandler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &EventHandler{
		hub:      hub,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

// Stream handles GET /session/{id}/events
func (h *EventHandler) Stream(w http.ResponseWriter, r *http.Request) {
	sub, err := h.subscribe(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer h.hub.Unsubscribe(sub)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(eventsReadLimit)
	if err := conn.SetReadDeadline(time.Now().Add(eventsPongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(eventsPongWait))
	})

	// The client never sends anything we act on; reading only surfaces close frames.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(eventsPingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-readerDone:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session deleted"),
					time.Now().Add(eventsWriteWait))
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(eventsWriteWait)); err != nil {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(eventsWriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// subscribe registers for the session's events and only then confirms the
// session exists. A delete that lands after the check publishes to this
// subscription and closes it.
func (h *EventHandler) subscribe(ctx context.Context, id string) (*events.Subscription, error) {
	sub := h.hub.Subscribe(id)
	if _, err := h.sessions.Get(ctx, id); err != nil {
		h.hub.Unsubscribe(sub)
		return nil, err
	}
	return sub, nil
}
