package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wardenbot/warden/moderation/cases"
)

// templateRenderer produces the user-facing notice for each action kind.
// Kinds without a message (notes, softbans) notify nobody.
type templateRenderer struct{}

var noticeTemplates = map[cases.Kind]string{
	cases.KindWarn:   "You have received a warning: %s",
	cases.KindMute:   "You have been muted: %s",
	cases.KindUnmute: "You have been unmuted: %s",
	cases.KindKick:   "You have been kicked: %s",
	cases.KindBan:    "You have been banned: %s",
}

func (r *templateRenderer) RenderNotification(kind cases.Kind, communityID, reason string) (string, bool) {
	tmpl, ok := noticeTemplates[kind]
	if !ok {
		return "", false
	}
	if reason == "" {
		reason = "no reason given"
	}
	return fmt.Sprintf(tmpl, reason), true
}

// dryRunExecutor logs actions instead of performing them, for running the
// daemon without a gateway.
type dryRunExecutor struct {
	logger *slog.Logger
}

func (d *dryRunExecutor) log(action, communityID, userID, reason string) error {
	d.logger.Info("dry-run action", "action", action, "community", communityID, "user", userID, "reason", reason)
	return nil
}

func (d *dryRunExecutor) Ban(ctx context.Context, communityID, userID, reason string, deleteDays int) error {
	return d.log("ban", communityID, userID, reason)
}

func (d *dryRunExecutor) Unban(ctx context.Context, communityID, userID, reason string) error {
	return d.log("unban", communityID, userID, reason)
}

func (d *dryRunExecutor) Kick(ctx context.Context, communityID, userID, reason string) error {
	return d.log("kick", communityID, userID, reason)
}

func (d *dryRunExecutor) Mute(ctx context.Context, communityID, userID, reason string) error {
	return d.log("mute", communityID, userID, reason)
}

func (d *dryRunExecutor) Unmute(ctx context.Context, communityID, userID, reason string) error {
	return d.log("unmute", communityID, userID, reason)
}

// dryRunResolver has no member data, so level-gated actions fail closed;
// dry-run flows are driven as the bot itself.
type dryRunResolver struct {
	botUserID string
}

func (d *dryRunResolver) Level(communityID, userID string) int64         { return 0 }
func (d *dryRunResolver) IsOwnerOrAdmin(communityID, userID string) bool { return false }
func (d *dryRunResolver) IsSelf(userID string) bool                      { return userID == d.botUserID }
