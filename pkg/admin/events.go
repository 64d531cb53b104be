package admin

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mockbird/mockbird/pkg/notify"
)

const (
	// eventWriteWait bounds how long one event write may take.
	eventWriteWait = 10 * time.Second

	// eventPongWait is how long the connection survives without a pong.
	eventPongWait = 60 * time.Second

	// eventPingPeriod must be shorter than eventPongWait.
	eventPingPeriod = 50 * time.Second
)

// handleEvents upgrades to a WebSocket and streams the user's capture
// events until the client disconnects.
func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	events, unsubscribe, err := a.bus.Subscribe(r.Context(), userID)
	if err != nil {
		a.log.Error("cannot subscribe to events", "user_id", userID, "error", err)
		http.Error(w, "cannot subscribe", http.StatusInternalServerError)
		return
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		unsubscribe()
		a.log.Warn("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	a.log.Debug("event subscriber connected", "user_id", userID)

	closed := make(chan struct{})
	go a.readPump(conn, closed)
	a.writePump(conn, events, closed)

	unsubscribe()
	_ = conn.Close()
	a.log.Debug("event subscriber disconnected", "user_id", userID)
}

// readPump discards inbound frames; its job is answering pings and
// noticing when the peer goes away.
func (a *API) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(eventPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(eventPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (a *API) writePump(conn *websocket.Conn, events <-chan *notify.Event, closed <-chan struct{}) {
	ticker := time.NewTicker(eventPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
