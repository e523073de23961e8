package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwalitptl/carelink-api/internal/model"
	"github.com/jwalitptl/carelink-api/pkg/live"
	"github.com/jwalitptl/carelink-api/pkg/logger"
	"github.com/jwalitptl/carelink-api/pkg/messaging"
)

type PushResult string

const (
	PushDelivered PushResult = "delivered"
	PushOffline   PushResult = "offline"
	PushPublished PushResult = "published"
	PushFailed    PushResult = "failed"
)

// Pusher hands a stored notification to the live channel.
type Pusher interface {
	Push(ctx context.Context, n *model.Notification) (PushResult, error)
}

// LocalPusher delivers straight into this process's session registry.
type LocalPusher struct {
	registry *live.Registry
}

func NewLocalPusher(registry *live.Registry) *LocalPusher {
	return &LocalPusher{registry: registry}
}

func (p *LocalPusher) Push(_ context.Context, n *model.Notification) (PushResult, error) {
	ok, err := p.registry.Deliver(n.ReceiverID.String(), live.EventNotification, n)
	switch {
	case err != nil:
		return PushFailed, err
	case !ok:
		return PushOffline, nil
	}
	return PushDelivered, nil
}

// BrokerPusher publishes notifications so every API instance can deliver
// them to sessions it holds. RunRelay is the receiving side.
type BrokerPusher struct {
	broker  messaging.Broker
	channel string
}

func NewBrokerPusher(broker messaging.Broker, channel string) *BrokerPusher {
	return &BrokerPusher{broker: broker, channel: channel}
}

func (p *BrokerPusher) Push(ctx context.Context, n *model.Notification) (PushResult, error) {
	if err := p.broker.Publish(ctx, p.channel, n); err != nil {
		return PushFailed, fmt.Errorf("failed to publish notification: %w", err)
	}
	return PushPublished, nil
}

// RunRelay subscribes to channel and delivers each published notification
// to the local registry. It returns when ctx is done or the subscription
// closes.
func RunRelay(ctx context.Context, broker messaging.Broker, channel string, registry *live.Registry, log *logger.Logger) error {
	messages, err := broker.Subscribe(ctx, channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to notifications: %w", err)
	}

	log.Info("Notification relay started", "channel", channel)
	return relay(ctx, messages, registry, log)
}

func relay(ctx context.Context, messages <-chan []byte, registry *live.Registry, log *logger.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var n model.Notification
			if err := json.Unmarshal(msg, &n); err != nil {
				log.Warn("Dropping malformed notification", "error", err.Error())
				continue
			}
			if _, err := registry.Deliver(n.ReceiverID.String(), live.EventNotification, &n); err != nil {
				log.Warn("Failed to relay notification",
					"notification_id", n.ID.String(),
					"error", err.Error())
			}
		}
	}
}
