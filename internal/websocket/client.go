package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
)

// Client is one open page listening for counter updates.
type Client struct {
	hub  *Hub
	conn *ws.Conn
	send chan []byte
}

func NewClient(hub *Hub, conn *ws.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

// queue buffers data for the write pump. It drops data for a slow client.
func (c *Client) queue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Run sends initial, then relays hub broadcasts until the page goes away or
// ctx is cancelled.
func (c *Client) Run(ctx context.Context, initial Message) {
	if data, err := json.Marshal(initial); err == nil {
		c.queue(data)
	}

	c.hub.Register(c)
	defer c.hub.Unregister(c)

	// Pages never send data frames. CloseRead answers pings and cancels the
	// context once the peer closes.
	readCtx := c.conn.CloseRead(ctx)

	err := c.writePump(readCtx)
	switch {
	case ctx.Err() != nil:
		c.conn.Close(ws.StatusGoingAway, "server shutting down")
	case err != nil && !errors.Is(err, context.Canceled):
		c.hub.logger.Debug("websocket write", "error", err)
		c.conn.CloseNow()
	default:
		c.conn.CloseNow()
	}
}

func (c *Client) writePump(ctx context.Context) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return nil
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(wctx, ws.MessageText, msg)
			cancel()
			if err != nil {
				return err
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
