// Package nats implements the realtime transport: broadcast channels over
// core NATS and the durable session event stream over JetStream.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/classpad/classpad/internal/config"
	"github.com/classpad/classpad/internal/domain/event"
	"github.com/classpad/classpad/internal/port/eventstore"
	"github.com/classpad/classpad/internal/realtime"
)

const streamName = "CLASSPAD"

// broadcastPrefix is the subject namespace for transient broadcast channels.
// These subjects are deliberately outside the JetStream stream: broadcasts
// are fire-and-forget, only durable session events are retained.
const broadcastPrefix = "broadcast."

// Bus holds the NATS connection and JetStream handle.
type Bus struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Connect establishes an authenticated connection to NATS and ensures the
// durable session event stream exists.
func Connect(ctx context.Context, cfg config.NATS) (*Bus, error) {
	nc, err := nats.Connect(cfg.URL, nats.Token(cfg.Key), nats.Name("classpad"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{"sessions.>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", cfg.URL, "stream", streamName)
	return &Bus{nc: nc, js: js}, nil
}

// Dial adapts the Bus to realtime.DialFunc. The underlying connection is
// shared; each call still gets its own channel handle.
func (b *Bus) Dial(realtime.Config) (realtime.Client, error) {
	return b, nil
}

// Channel opens a broadcast channel handle for the named topic.
func (b *Bus) Channel(name string) realtime.Channel {
	return &channel{nc: b.nc, subject: broadcastSubject(name)}
}

// IsConnected reports whether the underlying connection is up.
func (b *Bus) IsConnected() bool {
	return b.nc.IsConnected()
}

// Close shuts down the NATS connection.
func (b *Bus) Close() error {
	b.nc.Close()
	return nil
}

// broadcastSubject maps a channel name to its NATS subject. Subject tokens
// must not contain '.', '*', '>' or whitespace.
func broadcastSubject(name string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, name)
	return broadcastPrefix + sanitized
}

// --- durable session events (JetStream) ---

// PublishEvent records a session event on the durable stream.
func (b *Bus) PublishEvent(ctx context.Context, env event.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := "sessions." + env.SessionID + "." + env.Type
	if _, err := b.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// SubscribeEvents registers a handler for durable events of one session.
func (b *Bus) SubscribeEvents(ctx context.Context, sessionID string, h eventstore.Handler) (func(), error) {
	consumer, err := b.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		FilterSubject: "sessions." + sessionID + ".>",
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		var env event.Envelope
		if err := json.Unmarshal(msg.Data(), &env); err != nil {
			slog.Error("malformed session event", "subject", msg.Subject(), "error", err)
			_ = msg.Ack() // poison message, do not redeliver
			return
		}
		if err := h(ctx, env); err != nil {
			slog.Error("event handler failed", "subject", msg.Subject(), "error", err)
			if nakErr := msg.Nak(); nakErr != nil {
				slog.Error("nats nak failed", "error", nakErr)
			}
			return
		}
		if ackErr := msg.Ack(); ackErr != nil {
			slog.Error("nats ack failed", "error", ackErr)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}

	return cons.Stop, nil
}

// SubscribeBroadcasts feeds every broadcast message to fn, keyed by the
// originating channel name. Used by the WebSocket hub to fan deliveries out
// to connected editors.
func (b *Bus) SubscribeBroadcasts(fn func(channel string, data []byte)) (func(), error) {
	sub, err := b.nc.Subscribe(broadcastPrefix+">", func(msg *nats.Msg) {
		fn(strings.TrimPrefix(msg.Subject, broadcastPrefix), msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe broadcasts: %w", err)
	}
	return func() { _ = sub.Unsubscribe() }, nil
}
