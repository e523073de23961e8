package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBrokerDelivers(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := b.Subscribe(ctx, "notifications")
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "notifications", map[string]string{"receiverId": "p1"}))
	require.NoError(t, b.Publish(ctx, "other", map[string]string{"ignored": "yes"}))

	select {
	case msg := <-msgs:
		assert.JSONEq(t, `{"receiverId":"p1"}`, string(msg))
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}

	select {
	case msg := <-msgs:
		t.Fatalf("unexpected message %s", msg)
	default:
	}
}

func TestMemoryBrokerUnsubscribesOnCancel(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	msgs, err := b.Subscribe(ctx, "notifications")
	require.NoError(t, err)

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-msgs:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryBrokerClosed(t *testing.T) {
	b := NewMemoryBroker()
	require.NoError(t, b.Close())

	assert.Error(t, b.Publish(context.Background(), "x", "y"))
	_, err := b.Subscribe(context.Background(), "x")
	assert.Error(t, err)
}
