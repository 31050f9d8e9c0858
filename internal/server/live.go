package server

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// liveHub broadcasts the number of connected visitors to every connected
// client. The landing page uses it for the "N people viewing" counter.
type liveHub struct {
	logger     *zap.Logger
	clients    map[*websocket.Conn]struct{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
}

type liveCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

func newLiveHub(logger *zap.Logger) *liveHub {
	return &liveHub{
		logger:     logger,
		clients:    make(map[*websocket.Conn]struct{}),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

// run owns the clients map; all membership changes flow through channels so
// no lock is needed.
func (h *liveHub) run() {
	for {
		select {
		case conn := <-h.register:
			h.clients[conn] = struct{}{}
			h.broadcast()
		case conn := <-h.unregister:
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
				h.broadcast()
			}
		}
	}
}

func (h *liveHub) broadcast() {
	msg := liveCount{Type: "live_count", Count: len(h.clients)}
	for conn := range h.clients {
		if err := conn.WriteJSON(msg); err != nil {
			h.logger.Debug("live count write failed", zap.Error(err))
			delete(h.clients, conn)
			conn.Close()
		}
	}
}

var liveUpgrader = websocket.Upgrader{
	ReadBufferSize:  512,
	WriteBufferSize: 512,
	// Tracker runs on arbitrary landing page origins
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleLiveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := liveUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	s.live.register <- conn

	// Drain reads until the peer goes away
	go func() {
		defer func() { s.live.unregister <- conn }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
