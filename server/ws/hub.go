package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"matchengine/series"
	"matchengine/wsutil"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type subscription struct {
	client   *Client
	seriesID string
}

// Hub fans out read-only series snapshots to subscribed clients. It holds no
// game logic; the HTTP API layer calls Broadcast after creating a series,
// ending a game, or creating a rematch series.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	subscribe  chan subscription
	unsubscribe chan subscription
	broadcast  chan *series.Series

	clients   map[*Client]bool
	bySeries  map[string]map[*Client]bool
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan subscription),
		unsubscribe: make(chan subscription),
		broadcast:   make(chan *series.Series, 64),
		clients:     make(map[*Client]bool),
		bySeries:    make(map[string]map[*Client]bool),
	}
}

// Run starts the hub's main loop. Should be run as a goroutine; returns when
// ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Print("ws hub: shutdown signal received, stopping")
			return

		case c := <-h.register:
			h.clients[c] = true

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				for seriesID, set := range h.bySeries {
					delete(set, c)
					if len(set) == 0 {
						delete(h.bySeries, seriesID)
					}
				}
				close(c.Send)
			}

		case sub := <-h.subscribe:
			if h.bySeries[sub.seriesID] == nil {
				h.bySeries[sub.seriesID] = make(map[*Client]bool)
			}
			h.bySeries[sub.seriesID][sub.client] = true

		case sub := <-h.unsubscribe:
			if set := h.bySeries[sub.seriesID]; set != nil {
				delete(set, sub.client)
			}

		case s := <-h.broadcast:
			blob, err := json.Marshal(SeriesUpdateMsg{Type: "series_update", Series: s})
			if err != nil {
				log.Printf("ws hub: marshal series update: %v", err)
				continue
			}
			for c := range h.bySeries[s.ID] {
				wsutil.SafeSend(c.Send, blob)
			}
		}
	}
}

// Broadcast queues s for delivery to every client subscribed to s.ID. It
// never blocks the caller for longer than the channel's buffer allows; a
// full buffer drops the update rather than stalling the HTTP request path.
func (h *Hub) Broadcast(s *series.Series) {
	select {
	case h.broadcast <- s:
	default:
		log.Printf("ws hub: broadcast buffer full, dropping update for series %s", s.ID)
	}
}

// ServeWS upgrades the request to a websocket connection and registers it.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}

	client := &Client{
		Hub:  h,
		Conn: conn,
		Send: make(chan []byte, 256),
	}

	h.register <- client

	go client.WritePump()
	go client.ReadPump()
}
