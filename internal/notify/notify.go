// Package notify delivers finished messages over a single channel.
package notify

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotConfigured is returned by a channel missing required settings.
var ErrNotConfigured = errors.New("channel not configured")

// Notifier delivers one message. Implementations make a single attempt.
type Notifier interface {
	Name() string
	Send(ctx context.Context, message string) error
}

// SendError reports a failed delivery on a channel.
type SendError struct {
	Channel string
	Cause   error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("notify: send failed on %s: %v", e.Channel, e.Cause)
}

func (e *SendError) Unwrap() error { return e.Cause }
