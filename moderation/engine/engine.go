package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wardenbot/warden/moderation/cases"
	"github.com/wardenbot/warden/moderation/confirm"
	"github.com/wardenbot/warden/moderation/levels"
	"github.com/wardenbot/warden/moderation/modevents"
	"github.com/wardenbot/warden/moderation/notify"
	"github.com/wardenbot/warden/moderation/reversal"
	"github.com/wardenbot/warden/moderation/suppress"
)

// Platform capability for performing real-world moderation actions. Each
// operation is idempotent-safe at the platform: acting on a target already
// in the requested state returns an error the orchestrator treats as
// ActionExecutionFailed.
type Executor interface {
	Ban(ctx context.Context, communityID, userID, reason string, deleteDays int) error
	Unban(ctx context.Context, communityID, userID, reason string) error
	Kick(ctx context.Context, communityID, userID, reason string) error
	Mute(ctx context.Context, communityID, userID, reason string) error
	Unmute(ctx context.Context, communityID, userID, reason string) error
}

// Produces the user-facing notice text for an action. Rendering (templates,
// localization) lives outside this module; ok=false means no message is
// configured for the action kind and no notification should be attempted.
type MessageRenderer interface {
	RenderNotification(kind cases.Kind, communityID, reason string) (string, bool)
}

type EngineConfig struct {
	// substitutions applied to reasons before length enforcement
	ReasonAliases map[string]string
	// prompt for another warning when the target already has this many
	WarnNotifyEnabled   bool
	WarnNotifyThreshold int64
	// shown in the confirmation prompt; {priorWarnings} is substituted
	WarnNotifyMessage string
	// create audit cases for observed events with no suppression marker
	CaseOnManualActions bool
	ConfirmTimeout      time.Duration
}

// Orchestrates the end-to-end flow for each moderation action kind:
// authorization, suppression marking, the real-world action, user
// notification with confirmation-gated retry, case creation, scheduled
// reversals, and domain event publication.
//
// All handles are typed and injected at construction; several may be nil for
// reduced deployments (Bus, Confirm, Config) and the engine degrades
// accordingly.
type Engine struct {
	Logger    *slog.Logger
	Levels    levels.Resolver
	Config    levels.ConfigResolver
	Executor  Executor
	Renderer  MessageRenderer
	Cases     cases.Store
	Suppress  suppress.Registry
	Reversals *reversal.Loop
	Confirm   *confirm.Gate
	Bus       *modevents.Bus
	// default contact method ordering; overridable per request
	Methods []notify.Transport
	// the bot's own account, used as moderator for self-initiated reversals
	BotUserID string
	Cfg       EngineConfig
}

// One moderation action against one target.
type ActionRequest struct {
	CommunityID string
	TargetID    string
	// who the case is attributed to
	ModeratorID string
	// the initiating actor, when acting on behalf of another moderator;
	// empty means same as ModeratorID
	AuthorID    string
	Reason      string
	Attachments []string
	// temporary actions: how long until the reversal fires; zero = permanent
	Duration time.Duration
	// bans: days of message history to purge
	DeleteDays int
	// override the engine's default contact methods for this action
	ContactMethods []notify.Transport
	// where confirmation prompts for this flow are presented; empty
	// disables the retry-confirmation gate for the flow
	PromptContext string
}

type ActionResult struct {
	Case   *cases.ModerationCase
	Notify notify.Outcome
}

// the initiating actor: the one who answers confirmation prompts
func (req ActionRequest) actorID() string {
	if req.AuthorID != "" {
		return req.AuthorID
	}
	return req.ModeratorID
}

type actionFunc func(ctx context.Context, req ActionRequest) (*ActionResult, error)

// Shared wrapper for every action entry point: validation, panic recovery
// (similar to an HTTP server, a broken flow must not take the process down),
// and outcome metrics.
func (e *Engine) runAction(ctx context.Context, kind cases.Kind, req ActionRequest, fn actionFunc) (res *ActionResult, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.Logger.Error("moderation action execution exception",
				"err", r, "kind", kind.String(), "community", req.CommunityID, "target", req.TargetID)
			res = nil
			err = fmt.Errorf("action execution exception: %v", r)
		}
		actionDuration.WithLabelValues(kind.String()).Observe(time.Since(start).Seconds())
		actionCount.WithLabelValues(kind.String(), statusLabel(err)).Inc()
	}()

	if req.CommunityID == "" || req.TargetID == "" {
		return nil, fmt.Errorf("moderation action requires community and target")
	}
	return fn(ctx, req)
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// authorize checks the initiating actor's permission key (when a config
// resolver is wired) and, for member targets, the level comparison. Flows
// the bot starts itself (scheduled reversals) skip both.
func (e *Engine) authorize(ctx context.Context, req ActionRequest, permissionKey string, checkLevels bool, opts levels.ActOnOpts) error {
	if req.ModeratorID == e.BotUserID && req.AuthorID == "" {
		return nil
	}

	if e.Config != nil && permissionKey != "" {
		granted, err := levels.HasPermission(ctx, e.Config, permissionKey, levels.MatchParams{
			CommunityID: req.CommunityID,
			UserID:      req.actorID(),
			ChannelID:   req.PromptContext,
			Level:       e.Levels.Level(req.CommunityID, req.actorID()),
		})
		if err != nil {
			return fmt.Errorf("resolving permission config: %w", err)
		}
		if !granted {
			return fmt.Errorf("%w: missing permission %q", ErrAuthorizationDenied, permissionKey)
		}
	}

	if checkLevels && !levels.CanActOn(e.Levels, req.CommunityID, req.actorID(), req.TargetID, opts) {
		return fmt.Errorf("%w: cannot act on this target", ErrAuthorizationDenied)
	}
	return nil
}

// notifyTarget renders and delivers the user-facing notice for the action.
func (e *Engine) notifyTarget(ctx context.Context, kind cases.Kind, req ActionRequest, reason string) notify.Outcome {
	text, ok := e.Renderer.RenderNotification(kind, req.CommunityID, reason)
	if !ok {
		return notify.NewError(fmt.Sprintf("no %s message configured", kind))
	}
	methods := req.ContactMethods
	if methods == nil {
		methods = e.Methods
	}
	return notify.NotifyUser(ctx, req.CommunityID, req.TargetID, text, methods, e.Logger)
}

// confirmProceed suspends the flow on a yes/no prompt to the initiating
// actor. Without a gate or a prompt context there is nobody to ask, which
// resolves as decline.
func (e *Engine) confirmProceed(ctx context.Context, req ActionRequest, message string) (bool, error) {
	if e.Confirm == nil || req.PromptContext == "" {
		return false, nil
	}
	return e.Confirm.WaitForConfirm(ctx, confirm.Prompt{
		Context:      req.PromptContext,
		Message:      message,
		ConfirmLabel: "Yes",
		CancelLabel:  "No",
		RestrictToID: req.actorID(),
		Timeout:      e.Cfg.ConfirmTimeout,
	})
}

// createCase persists the audit record for a completed action. The caller
// has already performed the real-world action, so a failure here is
// surfaced loudly but cannot be rolled back.
func (e *Engine) createCase(ctx context.Context, req ActionRequest, kind cases.Kind, reason string, outcome notify.Outcome) (*cases.ModerationCase, error) {
	var notes []string
	if outcome.Text != "" {
		notes = append(notes, ucfirst(outcome.Text))
	}
	actingAs := ""
	if req.AuthorID != "" && req.AuthorID != req.ModeratorID {
		actingAs = req.AuthorID
	}
	mc, err := e.Cases.CreateCase(ctx, cases.CreateParams{
		CommunityID:  req.CommunityID,
		TargetUserID: req.TargetID,
		ModeratorID:  req.ModeratorID,
		ActingAsID:   actingAs,
		Kind:         kind,
		Reason:       reasonWithAttachments(reason, req.Attachments),
		Attachments:  req.Attachments,
		NoteDetails:  notes,
	})
	if err != nil {
		e.Logger.Error("case creation failed after real-world action",
			"kind", kind.String(), "community", req.CommunityID, "target", req.TargetID, "err", err)
		return nil, fmt.Errorf("%w: creating case: %v", ErrPersistence, err)
	}
	return mc, nil
}

func (e *Engine) publish(kind cases.Kind, req ActionRequest, mc *cases.ModerationCase, reason string) {
	if e.Bus == nil {
		return
	}
	evt := modevents.Event{
		Kind:         kind,
		CommunityID:  req.CommunityID,
		TargetUserID: req.TargetID,
		ModeratorID:  req.ModeratorID,
		Reason:       reason,
	}
	if mc != nil {
		evt.CaseNumber = mc.CaseNumber
	}
	e.Bus.Publish(evt)
}

// markSuppressed registers the expected gateway echo for an action the
// engine is about to perform. A failed action leaves the marker to expire
// naturally within its window.
func (e *Engine) markSuppressed(ctx context.Context, kind suppress.EventKind, req ActionRequest) {
	if e.Suppress == nil {
		return
	}
	if err := e.Suppress.Mark(ctx, kind, req.CommunityID, req.TargetID); err != nil {
		// worst case is one duplicate audit entry; not worth failing the action
		e.Logger.Warn("marking suppression failed", "kind", string(kind), "target", req.TargetID, "err", err)
	}
}
