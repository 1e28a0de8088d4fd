package ws

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// Client is a middleman between a websocket connection and the hub. It
// subscribes to zero or more series and receives SeriesUpdateMsg pushes;
// it never drives a game action.
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte
}

// ReadPump pumps messages from the websocket connection to the hub. Runs in
// its own goroutine per connection.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws read error: %v", err)
			}
			break
		}
		c.handleMessage(message)
	}
}

// WritePump pumps messages from the send channel to the websocket
// connection. Runs in its own goroutine per connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	var envelope InboundEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.sendError("invalid message format")
		return
	}

	switch envelope.Type {
	case "subscribe":
		var msg SubscribeMsg
		if err := json.Unmarshal(envelope.Raw, &msg); err != nil || msg.SeriesID == "" {
			c.sendError("subscribe requires a seriesId")
			return
		}
		c.Hub.subscribe <- subscription{client: c, seriesID: msg.SeriesID}

	case "unsubscribe":
		var msg UnsubscribeMsg
		if err := json.Unmarshal(envelope.Raw, &msg); err != nil || msg.SeriesID == "" {
			c.sendError("unsubscribe requires a seriesId")
			return
		}
		c.Hub.unsubscribe <- subscription{client: c, seriesID: msg.SeriesID}

	default:
		c.sendError("unknown message type")
	}
}

func (c *Client) sendError(message string) {
	blob, err := json.Marshal(ErrorMsg{Type: "error", Message: message})
	if err != nil {
		return
	}
	select {
	case c.Send <- blob:
	default:
	}
}
