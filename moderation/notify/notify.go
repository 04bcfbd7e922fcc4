// Delivery of moderation notices to affected users.
//
// The caller supplies an ordered list of contact methods (direct message,
// in-channel ping, ...); delivery walks the list until one succeeds. Message
// rendering and the transports themselves live outside this module.
package notify

import (
	"context"
	"fmt"
	"log/slog"
)

// A single way of reaching a user. Name is recorded in the delivery outcome
// for audit and display.
type Transport interface {
	Name() string
	Send(ctx context.Context, communityID, userID, text string) error
}

type Outcome struct {
	Success bool
	// Which transport delivered the message; empty on failure.
	MethodUsed string
	// Human-readable detail, eg which method failed and why.
	Text string
}

// NewError builds a failed outcome without attempting delivery, for callers
// that have no message configured for an action.
func NewError(text string) Outcome {
	return Outcome{Success: false, Text: text}
}

// NotifyUser attempts each contact method in order until one succeeds. Each
// method gets exactly one attempt; retry policy across methods is expressed
// by the ordering of the list. On exhaustion the outcome carries the last
// error detail.
func NotifyUser(ctx context.Context, communityID, userID, text string, methods []Transport, logger *slog.Logger) Outcome {
	if logger == nil {
		logger = slog.Default()
	}
	if len(methods) == 0 {
		return NewError("no contact methods available")
	}

	var lastErr error
	var lastMethod string
	for _, m := range methods {
		err := m.Send(ctx, communityID, userID, text)
		if err == nil {
			attemptCount.WithLabelValues(m.Name(), "ok").Inc()
			return Outcome{
				Success:    true,
				MethodUsed: m.Name(),
				Text:       fmt.Sprintf("user notified with a %s", m.Name()),
			}
		}
		attemptCount.WithLabelValues(m.Name(), "error").Inc()
		logger.Debug("contact method failed", "method", m.Name(), "user", userID, "err", err)
		lastErr = err
		lastMethod = m.Name()
	}
	return NewError(fmt.Sprintf("failed to message user via %s: %v", lastMethod, lastErr))
}
