// network/connection.go
package network

import (
	"encoding/json"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gautam-divyanshu/2d-metaverse-sub001/protocol"
)

// ErrConnectionClosed is returned by Send after Close has been called.
var ErrConnectionClosed = errors.New("connection closed")

type Connection interface {
	Send(env *protocol.Envelope) error
	ReadEnvelope() (*protocol.Envelope, error)
	Close() error
	RemoteAddr() net.Addr
	SetHeartbeat(interval time.Duration)
	Dropped() uint64
}

// WSConnection 基于 gorilla/websocket 的连接实现。出站消息进入有界队列，
// 由独立的写协程刷出；队列满时丢弃该帧，慢速对端不会阻塞广播方。
type WSConnection struct {
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
	closed    chan struct{}
	dropped   atomic.Uint64
}

func NewWSConnection(conn *websocket.Conn, queueSize int) *WSConnection {
	if queueSize <= 0 {
		queueSize = 64
	}
	c := &WSConnection{
		conn:   conn,
		send:   make(chan []byte, queueSize),
		closed: make(chan struct{}),
	}
	go c.writePump()
	return c
}

// Send 将帧编码后非阻塞入队；队列满则丢弃并计数
func (c *WSConnection) Send(env *protocol.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	select {
	case <-c.closed:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		c.dropped.Add(1)
		return nil
	}
}

// writePump 独立协程，将队列中的帧写到底层连接
func (c *WSConnection) writePump() {
	defer c.conn.Close()
	for {
		select {
		case <-c.closed:
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

func (c *WSConnection) ReadEnvelope() (*protocol.Envelope, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// SetHeartbeat 周期发送 ping，对端须在两个周期内回 pong
func (c *WSConnection) SetHeartbeat(interval time.Duration) {
	c.conn.SetReadDeadline(time.Now().Add(interval * 2))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(interval * 2))
	})
	go c.pingLoop(interval)
}

func (c *WSConnection) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}

// Dropped 返回因队列溢出而丢弃的帧数
func (c *WSConnection) Dropped() uint64 {
	return c.dropped.Load()
}

func (c *WSConnection) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	return c.conn.Close()
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
