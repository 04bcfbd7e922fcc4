package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wardenbot/warden/moderation/cases"
	"github.com/wardenbot/warden/moderation/levels"
	"github.com/wardenbot/warden/moderation/notify"
	"github.com/wardenbot/warden/moderation/reversal"
	"github.com/wardenbot/warden/moderation/suppress"
)

// Note records an observation about a user. No real-world action, no
// notification; just the audit entry.
func (e *Engine) Note(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	return e.runAction(ctx, cases.KindNote, req, func(ctx context.Context, req ActionRequest) (*ActionResult, error) {
		if err := e.authorize(ctx, req, "can_note", false, levels.ActOnOpts{}); err != nil {
			return nil, err
		}
		reason := ParseReason(e.Cfg.ReasonAliases, req.Reason)
		mc, err := e.createCase(ctx, req, cases.KindNote, reason, notify.Outcome{})
		if err != nil {
			return nil, err
		}
		e.publish(cases.KindNote, req, mc, reason)
		return &ActionResult{Case: mc}, nil
	})
}

// Warn notifies the target and records a case. No platform state changes,
// so there is no suppression marker; the notification itself is the action,
// and a failed delivery needs the actor's explicit go-ahead to log anyway.
func (e *Engine) Warn(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	return e.runAction(ctx, cases.KindWarn, req, func(ctx context.Context, req ActionRequest) (*ActionResult, error) {
		if err := e.authorize(ctx, req, "can_warn", true, levels.ActOnOpts{}); err != nil {
			return nil, err
		}
		reason := ParseReason(e.Cfg.ReasonAliases, req.Reason)

		if e.Cfg.WarnNotifyEnabled {
			prior, err := e.Cases.CountByKindForUser(ctx, req.CommunityID, req.TargetID, cases.KindWarn)
			if err != nil {
				return nil, fmt.Errorf("%w: counting prior warnings: %v", ErrPersistence, err)
			}
			if prior >= e.Cfg.WarnNotifyThreshold {
				msg := strings.ReplaceAll(e.Cfg.WarnNotifyMessage, "{priorWarnings}", strconv.FormatInt(prior, 10))
				if msg == "" {
					msg = fmt.Sprintf("The user already has %d warnings. Warn anyway?", prior)
				}
				proceed, err := e.confirmProceed(ctx, req, msg)
				if err != nil {
					return nil, err
				}
				if !proceed {
					return nil, fmt.Errorf("%w: warn cancelled by moderator", ErrConfirmationDeclined)
				}
			}
		}

		outcome := e.notifyTarget(ctx, cases.KindWarn, req, reason)
		if !outcome.Success {
			proceed, err := e.confirmProceed(ctx, req, "Failed to message the user. Log the warning anyway?")
			if err != nil {
				return nil, err
			}
			if !proceed {
				return nil, fmt.Errorf("%w: %s", ErrNotificationFailed, outcome.Text)
			}
		}

		mc, err := e.createCase(ctx, req, cases.KindWarn, reason, outcome)
		if err != nil {
			return nil, err
		}
		e.publish(cases.KindWarn, req, mc, reason)
		return &ActionResult{Case: mc, Notify: outcome}, nil
	})
}

// Mute silences the target, optionally for a limited duration; a temporary
// mute schedules an unmute reversal.
func (e *Engine) Mute(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	return e.runAction(ctx, cases.KindMute, req, func(ctx context.Context, req ActionRequest) (*ActionResult, error) {
		if err := e.authorize(ctx, req, "can_mute", true, levels.ActOnOpts{}); err != nil {
			return nil, err
		}
		reason := ParseReason(e.Cfg.ReasonAliases, req.Reason)

		e.markSuppressed(ctx, suppress.EventMute, req)
		if err := e.Executor.Mute(ctx, req.CommunityID, req.TargetID, reason); err != nil {
			return nil, fmt.Errorf("%w: muting member: %v", ErrActionExecutionFailed, err)
		}

		result, err := e.finishAction(ctx, req, cases.KindMute, reason, true)
		if err != nil {
			return result, err
		}
		if req.Duration > 0 {
			if err := e.scheduleReversal(ctx, req, reversal.KindUnmute); err != nil {
				return result, err
			}
		} else {
			// upgrading a temp mute to permanent: a leftover scheduled
			// unmute must not fire later
			e.cancelReversal(ctx, req, reversal.KindUnmute)
		}
		return result, nil
	})
}

// Unmute lifts a mute. An explicit unmute cancels any pending scheduled
// unmute so the loop cannot fire a stale reversal later.
func (e *Engine) Unmute(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	return e.runAction(ctx, cases.KindUnmute, req, func(ctx context.Context, req ActionRequest) (*ActionResult, error) {
		if err := e.authorize(ctx, req, "can_mute", true, levels.ActOnOpts{}); err != nil {
			return nil, err
		}
		reason := ParseReason(e.Cfg.ReasonAliases, req.Reason)

		e.markSuppressed(ctx, suppress.EventUnmute, req)
		if err := e.Executor.Unmute(ctx, req.CommunityID, req.TargetID, reason); err != nil {
			return nil, fmt.Errorf("%w: unmuting member; are you sure they're muted? (%v)", ErrActionExecutionFailed, err)
		}

		result, err := e.finishAction(ctx, req, cases.KindUnmute, reason, false)
		if err != nil {
			return result, err
		}
		e.cancelReversal(ctx, req, reversal.KindUnmute)
		return result, nil
	})
}

// Kick removes the target from the community.
func (e *Engine) Kick(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	return e.runAction(ctx, cases.KindKick, req, func(ctx context.Context, req ActionRequest) (*ActionResult, error) {
		if err := e.authorize(ctx, req, "can_kick", true, levels.ActOnOpts{}); err != nil {
			return nil, err
		}
		reason := ParseReason(e.Cfg.ReasonAliases, req.Reason)

		e.markSuppressed(ctx, suppress.EventKick, req)
		if err := e.Executor.Kick(ctx, req.CommunityID, req.TargetID, reason); err != nil {
			return nil, fmt.Errorf("%w: kicking member: %v", ErrActionExecutionFailed, err)
		}

		return e.finishAction(ctx, req, cases.KindKick, reason, true)
	})
}

// Ban removes and blocks the target. A non-zero Duration makes it temporary:
// an unban reversal is scheduled for when it elapses.
func (e *Engine) Ban(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	return e.runAction(ctx, cases.KindBan, req, func(ctx context.Context, req ActionRequest) (*ActionResult, error) {
		if err := e.authorize(ctx, req, "can_ban", true, levels.ActOnOpts{}); err != nil {
			return nil, err
		}
		reason := ParseReason(e.Cfg.ReasonAliases, req.Reason)

		e.markSuppressed(ctx, suppress.EventBan, req)
		if err := e.Executor.Ban(ctx, req.CommunityID, req.TargetID, reason, req.DeleteDays); err != nil {
			return nil, fmt.Errorf("%w: banning member: %v", ErrActionExecutionFailed, err)
		}

		result, err := e.finishAction(ctx, req, cases.KindBan, reason, true)
		if err != nil {
			return result, err
		}
		if req.Duration > 0 {
			if err := e.scheduleReversal(ctx, req, reversal.KindUnban); err != nil {
				return result, err
			}
		} else {
			// upgrading a temp ban to permanent: a leftover scheduled
			// unban must not fire later
			e.cancelReversal(ctx, req, reversal.KindUnban)
		}
		return result, nil
	})
}

// Softban is a ban immediately followed by an unban: it clears the target's
// recent messages without keeping them out.
func (e *Engine) Softban(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	return e.runAction(ctx, cases.KindSoftban, req, func(ctx context.Context, req ActionRequest) (*ActionResult, error) {
		if err := e.authorize(ctx, req, "can_kick", true, levels.ActOnOpts{}); err != nil {
			return nil, err
		}
		reason := ParseReason(e.Cfg.ReasonAliases, req.Reason)

		deleteDays := req.DeleteDays
		if deleteDays <= 0 {
			deleteDays = 1
		}

		// both halves echo back from the gateway
		e.markSuppressed(ctx, suppress.EventBan, req)
		e.markSuppressed(ctx, suppress.EventUnban, req)
		if err := e.Executor.Ban(ctx, req.CommunityID, req.TargetID, reason, deleteDays); err != nil {
			return nil, fmt.Errorf("%w: softban (ban phase): %v", ErrActionExecutionFailed, err)
		}
		if err := e.Executor.Unban(ctx, req.CommunityID, req.TargetID, reason); err != nil {
			return nil, fmt.Errorf("%w: softban (unban phase): %v", ErrActionExecutionFailed, err)
		}

		return e.finishAction(ctx, req, cases.KindSoftban, reason, true)
	})
}

// Unban lifts a ban. The target is no longer a member, so authorization is
// permission-only. Any pending temp-ban reversal is cancelled so the loop
// never fires for this user afterward.
func (e *Engine) Unban(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	return e.runAction(ctx, cases.KindUnban, req, func(ctx context.Context, req ActionRequest) (*ActionResult, error) {
		if err := e.authorize(ctx, req, "can_unban", false, levels.ActOnOpts{}); err != nil {
			return nil, err
		}
		reason := ParseReason(e.Cfg.ReasonAliases, req.Reason)

		e.markSuppressed(ctx, suppress.EventUnban, req)
		if err := e.Executor.Unban(ctx, req.CommunityID, req.TargetID, reason); err != nil {
			return nil, fmt.Errorf("%w: unbanning member; are you sure they're banned? (%v)", ErrActionExecutionFailed, err)
		}

		result, err := e.finishAction(ctx, req, cases.KindUnban, reason, false)
		if err != nil {
			return result, err
		}
		e.cancelReversal(ctx, req, reversal.KindUnban)
		return result, nil
	})
}

// finishAction runs the tail shared by every flow whose real-world action
// already happened: notification (when the kind notifies), the
// confirmation-gated continuation on delivery failure, case creation, and
// event publication. From here the flow runs to completion, possibly
// degraded; the action cannot be undone by aborting.
func (e *Engine) finishAction(ctx context.Context, req ActionRequest, kind cases.Kind, reason string, notifies bool) (*ActionResult, error) {
	var outcome notify.Outcome
	if notifies {
		outcome = e.notifyTarget(ctx, kind, req, reason)
		if !outcome.Success {
			proceed, err := e.confirmProceed(ctx, req,
				fmt.Sprintf("Failed to message the user. Log the %s anyway?", kind))
			if err != nil {
				return nil, err
			}
			if !proceed {
				// the suppression marker is left to expire naturally
				return nil, fmt.Errorf("%w: %s", ErrNotificationFailed, outcome.Text)
			}
		}
	}

	mc, err := e.createCase(ctx, req, kind, reason, outcome)
	if err != nil {
		return &ActionResult{Notify: outcome}, err
	}
	e.publish(kind, req, mc, reason)
	return &ActionResult{Case: mc, Notify: outcome}, nil
}

func (e *Engine) scheduleReversal(ctx context.Context, req ActionRequest, kind reversal.Kind) error {
	if e.Reversals == nil {
		return fmt.Errorf("%w: temporary action requested but no reversal loop is wired", ErrPersistence)
	}
	expiresAt := time.Now().Add(req.Duration)
	if err := e.Reversals.Schedule(ctx, req.CommunityID, req.TargetID, kind, expiresAt); err != nil {
		e.Logger.Error("scheduling reversal failed; action is now permanent until manual reversal",
			"kind", kind.String(), "target", req.TargetID, "err", err)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// cancelReversal drops any pending scheduled reversal for the target so a
// stale record cannot fire after an opposing or permanent manual action.
// Failure to cancel is logged, not surfaced: the manual action already took
// effect.
func (e *Engine) cancelReversal(ctx context.Context, req ActionRequest, kind reversal.Kind) {
	if e.Reversals == nil {
		return
	}
	if err := e.Reversals.Cancel(ctx, req.CommunityID, req.TargetID, kind); err != nil {
		e.Logger.Error("cancelling pending reversal", "kind", kind.String(), "target", req.TargetID, "err", err)
	}
}

// SetCaseHidden hides or unhides a case by community-scoped number.
func (e *Engine) SetCaseHidden(ctx context.Context, communityID string, number int64, hidden bool) error {
	mc, err := e.Cases.FindByCaseNumber(ctx, communityID, number)
	if err != nil {
		return err
	}
	return e.Cases.SetHidden(ctx, mc.ID, hidden)
}

// AmendCaseReason replaces a case's reason; the only mutation allowed on a
// case besides hiding.
func (e *Engine) AmendCaseReason(ctx context.Context, communityID string, number int64, reason string) error {
	mc, err := e.Cases.FindByCaseNumber(ctx, communityID, number)
	if err != nil {
		return err
	}
	return e.Cases.AmendReason(ctx, mc.ID, ParseReason(e.Cfg.ReasonAliases, reason))
}
