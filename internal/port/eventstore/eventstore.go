// Package eventstore defines the port for the durable session event stream.
package eventstore

import (
	"context"

	"github.com/classpad/classpad/internal/domain/event"
)

// Handler processes one durable event. Returning an error causes redelivery.
type Handler func(ctx context.Context, env event.Envelope) error

// EventStore records session events durably and replays them to consumers.
type EventStore interface {
	PublishEvent(ctx context.Context, env event.Envelope) error
	SubscribeEvents(ctx context.Context, sessionID string, h Handler) (func(), error)
}
