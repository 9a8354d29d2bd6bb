package interview

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrDisconnected is returned when the peer has gone away.
var ErrDisconnected = errors.New("peer disconnected")

// Frame is one inbound peer frame.
type Frame struct {
	Binary bool
	Data   []byte
}

// Channel is the duplex link to the candidate's client.
type Channel interface {
	Send(ctx context.Context, msg Message) error
	// Frames delivers inbound frames in arrival order.
	Frames() <-chan Frame
	// Done is closed once the peer is gone or the channel was closed.
	Done() <-chan struct{}
	Close() error
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxFrameBytes  = 26 << 20
	frameQueueSize = 16
)

type wsChannel struct {
	conn   *websocket.Conn
	frames chan Frame
	done   chan struct{}

	writeMu   sync.Mutex
	doneOnce  sync.Once
	closeOnce sync.Once
}

// NewWebsocketChannel starts the read and keepalive pumps for conn.
func NewWebsocketChannel(conn *websocket.Conn) Channel {
	ch := &wsChannel{
		conn:   conn,
		frames: make(chan Frame, frameQueueSize),
		done:   make(chan struct{}),
	}
	conn.SetReadLimit(maxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go ch.readPump()
	go ch.pingPump()
	return ch
}

func (c *wsChannel) readPump() {
	defer c.markDone()
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		select {
		case c.frames <- Frame{Binary: kind == websocket.BinaryMessage, Data: data}:
		case <-c.done:
			return
		}
	}
}

func (c *wsChannel) pingPump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				c.markDone()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *wsChannel) markDone() {
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *wsChannel) Send(ctx context.Context, msg Message) error {
	select {
	case <-c.done:
		return ErrDisconnected
	default:
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.markDone()
		return errors.Join(ErrDisconnected, err)
	}
	return nil
}

func (c *wsChannel) Frames() <-chan Frame { return c.frames }

func (c *wsChannel) Done() <-chan struct{} { return c.done }

// Close sends a normal close frame and tears down the connection.
func (c *wsChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
		c.markDone()
	})
	return err
}
