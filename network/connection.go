// network/connection.go
package network

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var ErrConnectionClosed = errors.New("connection closed")

// Connection is the write side of one server-push client.
type Connection interface {
	WriteFrame(f Frame) error
	Close() error
	RemoteAddr() string
}

// SSEConnection writes frames as text/event-stream on a held-open response.
type SSEConnection struct {
	w            http.ResponseWriter
	rc           *http.ResponseController
	remote       string
	writeTimeout time.Duration
	mutex        sync.Mutex
	closed       bool
}

func NewSSEConnection(w http.ResponseWriter, r *http.Request, writeTimeout time.Duration) (*SSEConnection, error) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	c := &SSEConnection{
		w:            w,
		rc:           http.NewResponseController(w),
		remote:       r.RemoteAddr,
		writeTimeout: writeTimeout,
	}
	if err := c.rc.Flush(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *SSEConnection) WriteFrame(f Frame) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}
	if c.writeTimeout > 0 {
		// 不支持写超时的ResponseWriter(如测试用的Recorder)直接忽略
		err := c.rc.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		if err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
	}
	if _, err := c.w.Write(f.Encode()); err != nil {
		return err
	}
	return c.rc.Flush()
}

func (c *SSEConnection) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.closed = true
	return nil
}

func (c *SSEConnection) RemoteAddr() string {
	return c.remote
}

// WSConnection sends the same frames over a websocket, one text message each.
type WSConnection struct {
	conn         *websocket.Conn
	sendMutex    sync.Mutex
	writeTimeout time.Duration
	closeOnce    sync.Once
	closeErr     error
}

func NewWSConnection(conn *websocket.Conn, writeTimeout time.Duration) *WSConnection {
	return &WSConnection{conn: conn, writeTimeout: writeTimeout}
}

func (c *WSConnection) WriteFrame(f Frame) error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.conn.WriteMessage(websocket.TextMessage, f.Encode())
}

// Watch returns a context that is cancelled once the peer goes away. Clients
// never send frames, so anything read is discarded.
func (c *WSConnection) Watch(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		defer cancel()
		for {
			if _, _, err := c.conn.NextReader(); err != nil {
				return
			}
		}
	}()
	return ctx
}

func (c *WSConnection) Close() error {
	c.closeOnce.Do(func() {
		c.sendMutex.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.sendMutex.Unlock()
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *WSConnection) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
