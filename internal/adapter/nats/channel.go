package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/classpad/classpad/internal/realtime"
)

// flushTimeout bounds the server round-trip used for subscription
// confirmation. The sender's own countdown is usually tighter.
const flushTimeout = 10 * time.Second

// channel is a transient handle to one broadcast subject. It is opened for
// a single send and closed by the sender on every terminal path.
type channel struct {
	nc      *nats.Conn
	subject string

	mu  sync.Mutex
	sub *nats.Subscription
}

// envelope is the wire format of a broadcast message.
type envelope struct {
	Type    string         `json:"type"`
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload"`
}

// Subscribe opens the subscription and confirms it with a server round-trip.
// A completed flush means the server has processed the SUB: the channel is
// active and a publish on it will reach current subscribers.
func (c *channel) Subscribe(onStatus func(realtime.Status)) error {
	sub, err := c.nc.Subscribe(c.subject, func(*nats.Msg) {
		// Broadcast channels are send-only here; inbound messages are
		// consumed by the WebSocket hub's wildcard subscription.
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", c.subject, err)
	}

	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()

	go func() {
		if err := c.nc.FlushTimeout(flushTimeout); err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				onStatus(realtime.StatusTimedOut)
			} else {
				onStatus(realtime.StatusChannelError)
			}
			return
		}
		onStatus(realtime.StatusSubscribed)
	}()

	return nil
}

// Send publishes one broadcast envelope and flushes it to the server.
func (c *channel) Send(ctx context.Context, eventName string, payload map[string]any) error {
	data, err := json.Marshal(envelope{Type: "broadcast", Event: eventName, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal broadcast: %w", err)
	}

	if err := c.nc.Publish(c.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", c.subject, err)
	}
	if err := c.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", c.subject, err)
	}
	return nil
}

// Close releases the subscription. Idempotent.
func (c *channel) Close() error {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()

	if sub == nil {
		return nil
	}
	if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrBadSubscription) {
		return fmt.Errorf("unsubscribe %s: %w", c.subject, err)
	}
	return nil
}
