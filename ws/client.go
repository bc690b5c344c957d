package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/MarineRcher/notAlone-sub002/registry"
	"github.com/MarineRcher/notAlone-sub002/types"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	maxMessageSize  = 65536
	pongWait        = 2 * time.Minute
	pingPeriod      = time.Minute
	writeWait       = 10 * time.Second
	sendChannelSize = 256
)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	id   string
	user types.UserIdentity
	reg  *registry.Connection

	// Buffered channel of outbound messages.
	send chan []byte

	doneChan  chan struct{}
	closeOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, user types.UserIdentity) *Client {
	c := &Client{
		hub:      hub,
		conn:     conn,
		id:       uuid.New().String(),
		user:     user,
		send:     make(chan []byte, sendChannelSize),
		doneChan: make(chan struct{}),
	}
	c.reg = hub.HandleConnect(c.id, user, c)
	return c
}

func (c *Client) Id() string {
	return c.id
}

// Send queues a message for delivery. It never blocks: a slow or gone
// consumer just misses the message (delivery is best-effort, one attempt).
func (c *Client) Send(data []byte) {
	select {
	case <-c.doneChan:
		return
	default:
	}
	select {
	case c.send <- data:
	default:
		c.hub.logger.Warn("send buffer full, dropping message", "connId", c.id)
	}
}

// Done is closed once the connection is torn down.
func (c *Client) Done() <-chan struct{} {
	return c.doneChan
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.doneChan)
	})
}

// ReadLoop pumps messages from the websocket connection to the hub.
//
// The application runs ReadLoop in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadLoop() {
	defer func() {
		c.conn.Close()
		c.close()
		c.hub.HandleDisconnect(c.id)
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("ws closed unexpected", "connId", c.id, "error", err)
			}
			return
		}

		message := types.WebsocketMessage{}
		err = json.Unmarshal(raw, &message)
		if err != nil {
			// malformed frame: drop it, the connection stays open
			c.hub.logger.Warn("could not unmarshal ws message", "connId", c.id, "error", err)
			continue
		}
		c.hub.Dispatch(c.reg, message)
	}
}

// WriteLoop pumps messages from the hub to the websocket connection.
//
// A goroutine running WriteLoop is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WriteLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.close()
	}()
	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Debug("could not write to ws connection, exiting write loop", "connId", c.id)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.logger.Debug("could not send ping message, exiting write loop", "connId", c.id)
				return
			}

		case <-c.doneChan:
			return
		}
	}
}
