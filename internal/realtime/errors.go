package realtime

import (
	"errors"
	"fmt"
)

// ErrConfig indicates a missing endpoint URL or access key. Returned before
// any channel is created.
var ErrConfig = errors.New("realtime: configuration error")

// ErrBadRequest indicates an invalid broadcast request (empty channel or event).
var ErrBadRequest = errors.New("realtime: bad request")

// ErrSubscribeTimeout indicates the transport never reported a subscription
// status before the request timeout elapsed.
var ErrSubscribeTimeout = errors.New("realtime: subscription not confirmed")

// ChannelError is returned when the transport reports a failed subscription.
type ChannelError struct {
	Channel string
	Status  Status
	Err     error // underlying transport error, may be nil
}

func (e *ChannelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("realtime: channel %q reported %s: %v", e.Channel, e.Status, e.Err)
	}
	return fmt.Sprintf("realtime: channel %q reported %s", e.Channel, e.Status)
}

func (e *ChannelError) Unwrap() error { return e.Err }

// SendError is returned when the publish fails after a confirmed subscription.
type SendError struct {
	Channel string
	Event   string
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("realtime: send %q on %q failed: %v", e.Event, e.Channel, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
