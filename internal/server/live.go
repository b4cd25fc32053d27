package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pauljones0/harvester/internal/notifier"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// handleLive streams collection and notice events over a websocket. The first
// message is the current view so clients need no separate fetch.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events, cancel := s.app.Hub().Subscribe()
	defer cancel()

	// Reads only serve control frames; the loop ends when the client goes away.
	gone := make(chan struct{})
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	view := s.app.Collection().View()
	initial := notifier.Event{Type: notifier.EventCollection, Mode: "initial", Count: len(view), Posts: view}
	if err := writeEvent(conn, initial); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}
			if err := writeEvent(conn, ev); err != nil {
				s.logger.Debug("Websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, ev notifier.Event) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}
