// Package live tracks which recipients currently hold an open realtime
// connection and pushes events to them.
package live

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Event names used on the wire.
const (
	EventRegister     = "register"
	EventNotification = "notification"
)

// Conn is a connection handle that can accept outbound frames.
type Conn interface {
	ID() string
	Send(frame []byte) error
}

// Frame is the envelope for every message on the live channel.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Registry maps a recipient identity to its most recent connection.
// A later Register for the same identity replaces the earlier handle.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Conn
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]Conn)}
}

func (r *Registry) Register(conn Conn, identity string) {
	if identity == "" || conn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[identity] = conn
}

// Unregister drops every identity whose stored handle is conn and
// returns how many were removed.
func (r *Registry) Unregister(conn Conn) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for identity, c := range r.sessions {
		if c == conn {
			delete(r.sessions, identity)
			removed++
		}
	}
	return removed
}

func (r *Registry) Lookup(identity string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.sessions[identity]
	return c, ok
}

// Deliver pushes an event to identity if it is connected. The bool is false
// when no session exists, which is not an error.
func (r *Registry) Deliver(identity, event string, payload interface{}) (bool, error) {
	conn, ok := r.Lookup(identity)
	if !ok {
		return false, nil
	}

	frame, err := EncodeFrame(event, payload)
	if err != nil {
		return false, err
	}
	if err := conn.Send(frame); err != nil {
		return false, fmt.Errorf("failed to push %s to %s: %w", event, identity, err)
	}
	return true, nil
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func EncodeFrame(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	return json.Marshal(Frame{Event: event, Data: data})
}
