package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"b5factor/internal/levels"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // same trust model as the CORS wildcard
	},
}

// Hub fans snapshot-version notifications out to websocket clients. It polls
// the loader's version once a second; the push carries only metadata, clients
// re-fetch the dashboard for rows.
type Hub struct {
	svc        *levels.Service
	clients    map[*streamClient]bool
	register   chan *streamClient
	unregister chan *streamClient
}

func newHub(svc *levels.Service) *Hub {
	return &Hub{
		svc:        svc,
		clients:    make(map[*streamClient]bool),
		register:   make(chan *streamClient),
		unregister: make(chan *streamClient),
	}
}

func (h *Hub) run() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lastVersion int64
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case <-ticker.C:
			snap := h.svc.Snapshot()
			if snap.Version == lastVersion {
				continue
			}
			lastVersion = snap.Version
			msg, err := json.Marshal(map[string]any{
				"type":       "snapshot",
				"version":    snap.Version,
				"day":        snap.Day,
				"row_count":  snap.RowCount,
				"updated_at": snap.UpdatedAt,
			})
			if err != nil {
				continue
			}
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					// Slow client: drop this notification, it will see the
					// next version change.
				}
			}
		}
	}
}

type streamClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}
	client := &streamClient{hub: s.hub, conn: conn, send: make(chan []byte, 16)}
	s.hub.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *streamClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *streamClient) writePump() {
	defer c.conn.Close()
	for {
		message, ok := <-c.send
		if !ok {
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}
