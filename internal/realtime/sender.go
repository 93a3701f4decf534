// Package realtime implements reliable one-shot broadcast delivery over a
// pub/sub transport. A message is only published after the transport has
// confirmed the channel subscription is active, so a send never races a
// half-established channel and silently vanishes.
package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultTimeout bounds a broadcast when the request does not set one.
const DefaultTimeout = 5 * time.Second

// Status is the subscription state reported by a channel.
type Status string

const (
	StatusSubscribed   Status = "SUBSCRIBED"
	StatusChannelError Status = "CHANNEL_ERROR"
	StatusTimedOut     Status = "TIMED_OUT"
)

// Channel is a transient handle to a named pub/sub topic. A channel is
// opened for a single send and closed before the operation returns.
type Channel interface {
	// Subscribe registers the status observer and starts the subscription
	// attempt. The observer may be invoked from another goroutine.
	Subscribe(onStatus func(Status)) error
	// Send publishes one message on the channel.
	Send(ctx context.Context, event string, payload map[string]any) error
	// Close releases the channel. Safe to call once per channel.
	Close() error
}

// Client opens channels on the remote realtime service.
type Client interface {
	Channel(name string) Channel
}

// DialFunc produces a client from validated configuration. Implementations
// may return a shared connection; the sender never caches the result.
type DialFunc func(cfg Config) (Client, error)

// Config carries the two values required to reach the realtime service.
type Config struct {
	URL string
	Key string
}

// Request describes a single broadcast.
type Request struct {
	Channel string
	Event   string
	Payload map[string]any
	Timeout time.Duration // zero means DefaultTimeout
}

// Sender delivers broadcasts. Concurrent calls to Send are independent;
// the sender holds no state shared between them.
type Sender struct {
	cfg  Config
	dial DialFunc

	// Timeout applies to requests that do not set their own. Zero means
	// DefaultTimeout.
	Timeout time.Duration
}

// NewSender creates a Sender with injected configuration and dialer.
func NewSender(cfg Config, dial DialFunc) *Sender {
	return &Sender{cfg: cfg, dial: dial}
}

// Send opens the named channel, waits for subscription confirmation, sends
// exactly one message, and closes the channel. The channel is closed on
// every terminal path. Exactly one outcome is returned: nil on delivery,
// or one of the configuration / timeout / channel / send errors. No retries
// happen at this layer.
func (s *Sender) Send(ctx context.Context, req Request) error {
	if err := s.checkConfig(); err != nil {
		return err
	}
	if req.Channel == "" {
		return fmt.Errorf("%w: channel name is empty", ErrBadRequest)
	}
	if req.Event == "" {
		return fmt.Errorf("%w: event name is empty", ErrBadRequest)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = s.Timeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client, err := s.dial(s.cfg)
	if err != nil {
		return fmt.Errorf("realtime dial: %w", err)
	}

	ch := client.Channel(req.Channel)
	slog.Debug("broadcast starting", "channel", req.Channel, "event", req.Event, "timeout", timeout)

	// Settlement state. The timer and the status callback race; whichever
	// claims first owns teardown, the loser becomes a no-op.
	var (
		mu      sync.Mutex
		settled bool
	)
	claim := func() bool {
		mu.Lock()
		defer mu.Unlock()
		if settled {
			return false
		}
		settled = true
		return true
	}

	var closeOnce sync.Once
	closeChannel := func() {
		closeOnce.Do(func() {
			if err := ch.Close(); err != nil {
				slog.Warn("broadcast channel close failed", "channel", req.Channel, "error", err)
			}
		})
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	done := make(chan error, 1)

	err = ch.Subscribe(func(st Status) {
		if !claim() {
			// Timer already fired; the subscription is being torn down.
			return
		}
		timer.Stop()
		slog.Debug("broadcast channel status", "channel", req.Channel, "status", st)

		if st != StatusSubscribed {
			closeChannel()
			done <- &ChannelError{Channel: req.Channel, Status: st}
			return
		}

		sendErr := ch.Send(ctx, req.Event, req.Payload)
		closeChannel()
		if sendErr != nil {
			done <- &SendError{Channel: req.Channel, Event: req.Event, Err: sendErr}
			return
		}
		done <- nil
	})
	if err != nil {
		if claim() {
			closeChannel()
			return &ChannelError{Channel: req.Channel, Status: StatusChannelError, Err: err}
		}
		return <-done
	}

	select {
	case err := <-done:
		if err != nil {
			slog.Debug("broadcast failed", "channel", req.Channel, "event", req.Event, "error", err)
			return err
		}
		slog.Debug("broadcast delivered", "channel", req.Channel, "event", req.Event)
		return nil

	case <-timer.C:
		if !claim() {
			// The callback narrowly won; honor its outcome.
			return <-done
		}
		closeChannel()
		slog.Debug("broadcast timed out", "channel", req.Channel, "timeout", timeout)
		return fmt.Errorf("%w after %s on %q", ErrSubscribeTimeout, timeout, req.Channel)
	}
}

// checkConfig fails fast before any network activity when the endpoint or
// key is missing.
func (s *Sender) checkConfig() error {
	if s.cfg.URL == "" {
		return fmt.Errorf("%w: realtime url is not configured", ErrConfig)
	}
	if s.cfg.Key == "" {
		return fmt.Errorf("%w: realtime key is not configured", ErrConfig)
	}
	return nil
}

// Broadcast implements the broadcast port.
func (s *Sender) Broadcast(ctx context.Context, channel, event string, payload map[string]any) error {
	return s.Send(ctx, Request{Channel: channel, Event: event, Payload: payload})
}
