package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// Log writes messages to w instead of delivering them. With a nil writer
// the message is logged through slog.
type Log struct {
	w io.Writer
}

// NewLog creates a notifier that prints to w.
func NewLog(w io.Writer) *Log {
	return &Log{w: w}
}

func (l *Log) Name() string { return "log" }

func (l *Log) Send(ctx context.Context, message string) error {
	if l.w == nil {
		slog.InfoContext(ctx, "message", "body", message)
		return nil
	}
	if _, err := fmt.Fprintln(l.w, message); err != nil {
		return &SendError{Channel: l.Name(), Cause: err}
	}
	return nil
}
