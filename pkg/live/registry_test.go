package live

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id     string
	mu     sync.Mutex
	frames [][]byte
	err    error
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeConn) received() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.frames...)
}

func TestRegisterLastConnectionWins(t *testing.T) {
	reg := NewRegistry()
	first := &fakeConn{id: "tab-1"}
	second := &fakeConn{id: "tab-2"}

	reg.Register(first, "patient-1")
	reg.Register(second, "patient-1")

	got, ok := reg.Lookup("patient-1")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 1, reg.Count())
}

func TestUnregisterOnlyRemovesMatchingHandle(t *testing.T) {
	reg := NewRegistry()
	stale := &fakeConn{id: "old"}
	current := &fakeConn{id: "new"}

	reg.Register(stale, "patient-1")
	reg.Register(current, "patient-1")

	assert.Equal(t, 0, reg.Unregister(stale))
	_, ok := reg.Lookup("patient-1")
	assert.True(t, ok)

	assert.Equal(t, 1, reg.Unregister(current))
	_, ok = reg.Lookup("patient-1")
	assert.False(t, ok)
}

func TestUnregisterRemovesEveryIdentityForHandle(t *testing.T) {
	reg := NewRegistry()
	conn := &fakeConn{id: "shared"}
	reg.Register(conn, "a")
	reg.Register(conn, "b")

	assert.Equal(t, 2, reg.Unregister(conn))
	assert.Zero(t, reg.Count())
}

func TestRegisterIgnoresEmptyIdentity(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeConn{}, "")
	assert.Zero(t, reg.Count())
}

func TestDeliver(t *testing.T) {
	reg := NewRegistry()
	conn := &fakeConn{id: "c"}
	reg.Register(conn, "clinic-1")

	delivered, err := reg.Deliver("clinic-1", EventNotification, map[string]string{"message": "hi"})
	require.NoError(t, err)
	assert.True(t, delivered)

	frames := conn.received()
	require.Len(t, frames, 1)

	var frame Frame
	require.NoError(t, json.Unmarshal(frames[0], &frame))
	assert.Equal(t, EventNotification, frame.Event)
	assert.JSONEq(t, `{"message":"hi"}`, string(frame.Data))
}

func TestDeliverOfflineIsNotAnError(t *testing.T) {
	delivered, err := NewRegistry().Deliver("nobody", EventNotification, "x")
	assert.NoError(t, err)
	assert.False(t, delivered)
}

func TestDeliverSendFailure(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeConn{err: errors.New("closed")}, "p")

	delivered, err := reg.Deliver("p", EventNotification, "x")
	assert.Error(t, err)
	assert.False(t, delivered)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := &fakeConn{id: fmt.Sprint(i)}
			identity := fmt.Sprintf("user-%d", i%5)
			reg.Register(conn, identity)
			_, _ = reg.Deliver(identity, EventNotification, i)
			reg.Unregister(conn)
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, reg.Count(), 5)
}
