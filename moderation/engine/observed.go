package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/wardenbot/warden/moderation/cases"
	"github.com/wardenbot/warden/moderation/reversal"
	"github.com/wardenbot/warden/moderation/suppress"
)

// HandleObservedEvent is the gateway ingestion path for state-change events.
// It consumes any matching suppression marker first, so a bot-initiated
// action echoed back by the platform never produces a duplicate case.
// Returns whether the event was externally originated (no marker found).
// For external events it records a moderator-less audit case when
// configured, and cancels any now-stale pending reversal (eg, a manual
// platform unban clears a scheduled temp-ban expiry).
func (e *Engine) HandleObservedEvent(ctx context.Context, kind suppress.EventKind, communityID, userID string) (bool, error) {
	suppressed, err := e.Suppress.Consume(ctx, kind, communityID, userID)
	if err != nil {
		return false, fmt.Errorf("consuming suppression marker: %w", err)
	}
	if suppressed {
		observedEventCount.WithLabelValues(string(kind), "self").Inc()
		e.Logger.Debug("observed event matched own action, suppressed", "kind", string(kind), "user", userID)
		return false, nil
	}
	observedEventCount.WithLabelValues(string(kind), "external").Inc()

	if e.Reversals != nil {
		// an external state change makes the matching pending reversal moot
		switch kind {
		case suppress.EventUnban:
			if err := e.Reversals.Cancel(ctx, communityID, userID, reversal.KindUnban); err != nil {
				e.Logger.Error("cancelling reversal for observed unban", "user", userID, "err", err)
			}
		case suppress.EventUnmute:
			if err := e.Reversals.Cancel(ctx, communityID, userID, reversal.KindUnmute); err != nil {
				e.Logger.Error("cancelling reversal for observed unmute", "user", userID, "err", err)
			}
		}
	}

	if !e.Cfg.CaseOnManualActions {
		return true, nil
	}
	caseKind, ok := observedCaseKind(kind)
	if !ok {
		return true, nil
	}
	mc, err := e.Cases.CreateCase(ctx, cases.CreateParams{
		CommunityID:  communityID,
		TargetUserID: userID,
		ModeratorID:  "",
		Kind:         caseKind,
		Reason:       "",
		NoteDetails:  []string{fmt.Sprintf("Performed manually, observed %s event at the gateway", kind)},
	})
	if err != nil {
		return true, fmt.Errorf("%w: recording observed %s: %v", ErrPersistence, kind, err)
	}
	e.publish(caseKind, ActionRequest{CommunityID: communityID, TargetID: userID}, mc, "")
	return true, nil
}

func observedCaseKind(kind suppress.EventKind) (cases.Kind, bool) {
	switch kind {
	case suppress.EventBan:
		return cases.KindBan, true
	case suppress.EventUnban:
		return cases.KindUnban, true
	case suppress.EventKick:
		return cases.KindKick, true
	default:
		// mute state flaps too much to audit every observed change
		return 0, false
	}
}

// FireReversal is the reversal loop's entry point into the orchestrator: an
// expired temporary action runs back through the normal pipeline, producing
// its own case and suppression marker. Acting on a target already in the
// reversed state is a benign no-op.
func (e *Engine) FireReversal(ctx context.Context, rev reversal.Reversal) error {
	req := ActionRequest{
		CommunityID: rev.CommunityID,
		TargetID:    rev.TargetUserID,
		ModeratorID: e.BotUserID,
	}

	var err error
	switch rev.Kind {
	case reversal.KindUnban:
		req.Reason = "Tempban expired"
		_, err = e.Unban(ctx, req)
	case reversal.KindUnmute:
		req.Reason = "Tempmute expired"
		_, err = e.Unmute(ctx, req)
	default:
		return fmt.Errorf("unhandled reversal kind: %d", rev.Kind)
	}

	if errors.Is(err, ErrActionExecutionFailed) {
		// already reversed externally; the goal state holds
		e.Logger.Info("reversal target already in reversed state",
			"kind", rev.Kind.String(), "community", rev.CommunityID, "target", rev.TargetUserID)
		return nil
	}
	return err
}

var _ reversal.Firer = (*Engine)(nil)
