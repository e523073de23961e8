package live

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jwalitptl/carelink-api/pkg/logger"
)

var (
	ErrClientClosed = errors.New("client closed")
	ErrBufferFull   = errors.New("client send buffer full")
)

const sendBuffer = 64

// Socket abstracts a websocket connection for testability.
type Socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one live connection. Outbound frames are queued and written by a
// single writer goroutine.
type Client struct {
	id     string
	bound  string
	socket Socket
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func NewClient(socket Socket) *Client {
	return &Client{
		id:     uuid.New().String(),
		socket: socket,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

func (c *Client) ID() string {
	return c.id
}

// Bind ties the client to an authenticated identity. A bound client is
// registered as soon as it runs and ignores register frames for anyone
// else. Call before Run.
func (c *Client) Bind(identity string) {
	c.bound = identity
}

// Send queues a frame without blocking.
func (c *Client) Send(frame []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		return ErrBufferFull
	}
}

// Run serves the connection until the peer goes away, then removes it from
// the registry. It blocks.
func (c *Client) Run(reg *Registry, log *logger.Logger) {
	go c.writePump(log)

	defer func() {
		reg.Unregister(c)
		c.close()
	}()

	if c.bound != "" {
		reg.Register(c, c.bound)
	}

	for {
		_, message, err := c.socket.ReadMessage()
		if err != nil {
			return
		}

		var frame Frame
		if err := json.Unmarshal(message, &frame); err != nil {
			continue
		}

		switch frame.Event {
		case EventRegister:
			identity := parseIdentity(frame.Data)
			if identity == "" {
				continue
			}
			if c.bound != "" && identity != c.bound {
				log.Warn("live register rejected for another identity", "client_id", c.id, "identity", identity)
				continue
			}
			reg.Register(c, identity)
			log.Debug("live session registered", "client_id", c.id, "identity", identity)
		}
	}
}

func (c *Client) writePump(log *logger.Logger) {
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			if err := c.socket.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Debug("live write failed", "client_id", c.id, "error", err.Error())
				c.close()
				return
			}
		}
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		c.socket.Close()
	})
}

// parseIdentity accepts either a bare string or {"userId": "..."}.
func parseIdentity(data json.RawMessage) string {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		return strings.TrimSpace(id)
	}

	var obj struct {
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		return strings.TrimSpace(obj.UserID)
	}
	return ""
}
