package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/kilianp07/vmc/core/logger"
	"github.com/kilianp07/vmc/core/protocol"
	"github.com/kilianp07/vmc/core/registry"
)

// Client is one WebSocket observer. Outbound messages are queued on a
// buffered channel and written by a single goroutine, so the order in which
// Send is called is the order seen by the peer.
type Client struct {
	id      string
	conn    *websocket.Conn
	cfg     Config
	send    chan protocol.Message
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter
	log     logger.Logger
}

func newClient(id string, conn *websocket.Conn, cfg Config, log logger.Logger) *Client {
	c := &Client{
		id:   id,
		conn: conn,
		cfg:  cfg,
		send: make(chan protocol.Message, cfg.SendBuffer),
		done: make(chan struct{}),
		log:  log,
	}
	if cfg.CommandsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.CommandsPerSecond), cfg.CommandBurst)
	}
	return c
}

// ID returns the observer identity.
func (c *Client) ID() string { return c.id }

// Send queues msg without blocking.
func (c *Client) Send(msg protocol.Message) error {
	select {
	case <-c.done:
		return registry.ErrObserverClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return registry.ErrObserverClosed
	default:
		return registry.ErrSendBufferFull
	}
}

// Close stops the writer, which then closes the connection.
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

// allow reports whether another inbound command may be processed.
func (c *Client) allow() bool {
	return c.limiter == nil || c.limiter.Allow()
}

// readPump feeds inbound frames to handle until the peer goes away.
func (c *Client) readPump(handle func(payload []byte)) {
	c.conn.SetReadLimit(c.cfg.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.pongTimeout()))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.pongTimeout()))
	})
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.log.Warnf("observer %s read error: %v", c.id, err)
			}
			return
		}
		if !c.allow() {
			_ = c.Send(protocol.NewError(protocol.MsgRateLimited))
			continue
		}
		handle(payload)
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.pingPeriod())
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.writeTimeout()))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.log.Debugf("observer %s write error: %v", c.id, err)
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.writeTimeout()))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			c.flush()
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		}
	}
}

// flush writes what is still queued when the observer is closed.
func (c *Client) flush() {
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.writeTimeout()))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}
