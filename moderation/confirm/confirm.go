// Interactive yes/no confirmation tied to a moderation flow.
//
// A flow that hits an anomaly (notification failed, unusually many prior
// warnings) presents a binary choice to the initiating moderator through an
// external prompt transport, then suspends until the answer arrives or a
// hard timeout elapses. Timeout resolves as decline, so a stalled human can
// never leak a suspended flow.
package confirm

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

const DefaultTimeout = 60 * time.Second

type Prompt struct {
	// Where to present the choice (channel, interaction, ...), opaque to
	// this package.
	Context      string
	Message      string
	ConfirmLabel string
	CancelLabel  string
	// Only this responder's answer counts; everyone else is ignored.
	RestrictToID string
	Timeout      time.Duration
}

// Presents prompts to humans and retracts them once resolved. Implemented by
// the platform-facing host.
type Prompter interface {
	Present(ctx context.Context, promptID string, p Prompt) error
	// Retract removes a resolved or expired prompt from view. Best effort.
	Retract(promptID string)
}

type pending struct {
	restrictToID string
	answer       chan bool
}

// Gate tracks in-flight prompts. One Gate per process; flows of any community
// share it.
type Gate struct {
	prompter Prompter
	pending  *xsync.MapOf[string, *pending]
	seq      atomic.Uint64
}

func NewGate(prompter Prompter) *Gate {
	return &Gate{
		prompter: prompter,
		pending:  xsync.NewMapOf[string, *pending](),
	}
}

// WaitForConfirm presents the prompt and suspends the calling flow until the
// allowed responder answers, the timeout elapses, or ctx is cancelled. The
// wait is a channel select; no shared worker is blocked. Timeout and
// cancellation both resolve to false.
func (g *Gate) WaitForConfirm(ctx context.Context, p Prompt) (bool, error) {
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}

	promptID := fmt.Sprintf("confirm-%d", g.seq.Add(1))
	w := &pending{
		restrictToID: p.RestrictToID,
		answer:       make(chan bool, 1),
	}
	g.pending.Store(promptID, w)
	defer func() {
		g.pending.Delete(promptID)
		g.prompter.Retract(promptID)
	}()

	if err := g.prompter.Present(ctx, promptID, p); err != nil {
		return false, fmt.Errorf("presenting confirmation prompt: %w", err)
	}

	timer := time.NewTimer(p.Timeout)
	defer timer.Stop()

	select {
	case confirmed := <-w.answer:
		resolvedCount.WithLabelValues(outcomeLabel(confirmed)).Inc()
		return confirmed, nil
	case <-timer.C:
		resolvedCount.WithLabelValues("timeout").Inc()
		return false, nil
	case <-ctx.Done():
		resolvedCount.WithLabelValues("cancelled").Inc()
		return false, ctx.Err()
	}
}

// Resolve feeds a response from the prompt transport into the waiting flow.
// Returns whether the response was accepted. Responses for unknown prompts
// or from other users are ignored, not errors.
func (g *Gate) Resolve(promptID, responderID string, confirmed bool) bool {
	w, ok := g.pending.Load(promptID)
	if !ok {
		return false
	}
	if w.restrictToID != "" && responderID != w.restrictToID {
		return false
	}
	// first accepted response wins; the waiter deletes the entry on wakeup
	if _, loaded := g.pending.LoadAndDelete(promptID); !loaded {
		return false
	}
	w.answer <- confirmed
	return true
}

func outcomeLabel(confirmed bool) string {
	if confirmed {
		return "confirmed"
	}
	return "declined"
}
