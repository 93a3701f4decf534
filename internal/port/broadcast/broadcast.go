// Package broadcast defines the port for delivering real-time events to a
// named session channel.
package broadcast

import "context"

// Broadcaster delivers one best-effort message to all current subscribers of
// a channel. Implementations confirm the channel subscription before sending.
type Broadcaster interface {
	Broadcast(ctx context.Context, channel, event string, payload map[string]any) error
}
