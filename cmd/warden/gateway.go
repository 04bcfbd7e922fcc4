package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/wardenbot/warden/moderation/confirm"
)

// HTTP client for the chat gateway sidecar: the process holding the platform
// connection. The daemon drives real-world actions, user notifications, and
// confirmation prompts through it; observed state changes and prompt answers
// come back on the daemon's own API.
//
// Implements engine.Executor, notify.Transport, confirm.Prompter, and
// levels.Resolver.
type GatewayClient struct {
	host      string
	botUserID string
	client    *http.Client
	// outbound message sends only; moderation actions are never throttled
	msgLimiter *rate.Limiter
	logger     *slog.Logger
}

func NewGatewayClient(host, botUserID string, msgRateLimit int, logger *slog.Logger) *GatewayClient {
	return &GatewayClient{
		host:      host,
		botUserID: botUserID,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		msgLimiter: rate.NewLimiter(rate.Limit(msgRateLimit), 1),
		logger:     logger.With("system", "gateway"),
	}
}

func (g *GatewayClient) post(ctx context.Context, path string, body any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.host+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("gateway POST %s failed: status=%d body=%s", path, resp.StatusCode, msg)
	}
	return nil
}

type gatewayAction struct {
	Action      string `json:"action"`
	CommunityID string `json:"communityId"`
	UserID      string `json:"userId"`
	Reason      string `json:"reason,omitempty"`
	DeleteDays  int    `json:"deleteDays,omitempty"`
}

func (g *GatewayClient) action(ctx context.Context, action, communityID, userID, reason string, deleteDays int) error {
	return g.post(ctx, "/actions", gatewayAction{
		Action:      action,
		CommunityID: communityID,
		UserID:      userID,
		Reason:      reason,
		DeleteDays:  deleteDays,
	})
}

func (g *GatewayClient) Ban(ctx context.Context, communityID, userID, reason string, deleteDays int) error {
	return g.action(ctx, "ban", communityID, userID, reason, deleteDays)
}

func (g *GatewayClient) Unban(ctx context.Context, communityID, userID, reason string) error {
	return g.action(ctx, "unban", communityID, userID, reason, 0)
}

func (g *GatewayClient) Kick(ctx context.Context, communityID, userID, reason string) error {
	return g.action(ctx, "kick", communityID, userID, reason, 0)
}

func (g *GatewayClient) Mute(ctx context.Context, communityID, userID, reason string) error {
	return g.action(ctx, "mute", communityID, userID, reason, 0)
}

func (g *GatewayClient) Unmute(ctx context.Context, communityID, userID, reason string) error {
	return g.action(ctx, "unmute", communityID, userID, reason, 0)
}

func (g *GatewayClient) Name() string { return "direct message" }

// Send delivers a direct message through the gateway, throttled so a burst of
// moderation actions cannot trip platform send limits.
func (g *GatewayClient) Send(ctx context.Context, communityID, userID, text string) error {
	if err := g.msgLimiter.Wait(ctx); err != nil {
		return err
	}
	return g.post(ctx, "/messages", map[string]string{
		"communityId": communityID,
		"userId":      userID,
		"text":        text,
	})
}

type gatewayPrompt struct {
	PromptID     string `json:"promptId"`
	Context      string `json:"context"`
	Message      string `json:"message"`
	ConfirmLabel string `json:"confirmLabel"`
	CancelLabel  string `json:"cancelLabel"`
	RestrictToID string `json:"restrictToId"`
	TimeoutMs    int64  `json:"timeoutMs"`
}

func (g *GatewayClient) Present(ctx context.Context, promptID string, p confirm.Prompt) error {
	return g.post(ctx, "/prompts", gatewayPrompt{
		PromptID:     promptID,
		Context:      p.Context,
		Message:      p.Message,
		ConfirmLabel: p.ConfirmLabel,
		CancelLabel:  p.CancelLabel,
		RestrictToID: p.RestrictToID,
		TimeoutMs:    p.Timeout.Milliseconds(),
	})
}

func (g *GatewayClient) Retract(promptID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.post(ctx, "/prompts/"+url.PathEscape(promptID)+"/retract", struct{}{}); err != nil {
		g.logger.Warn("retracting prompt failed", "promptId", promptID, "err", err)
	}
}

type memberInfo struct {
	Level        int64 `json:"level"`
	OwnerOrAdmin bool  `json:"ownerOrAdmin"`
}

func (g *GatewayClient) member(communityID, userID string) (memberInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	path := fmt.Sprintf("%s/communities/%s/members/%s",
		g.host, url.PathEscape(communityID), url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return memberInfo{}, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return memberInfo{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return memberInfo{}, fmt.Errorf("gateway member lookup failed: status=%d", resp.StatusCode)
	}
	var info memberInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return memberInfo{}, err
	}
	return info, nil
}

// Level resolves the member's permission level. Lookup failures resolve to
// zero, which fails closed: a zero-level actor can act on nobody.
func (g *GatewayClient) Level(communityID, userID string) int64 {
	info, err := g.member(communityID, userID)
	if err != nil {
		g.logger.Warn("member level lookup failed", "community", communityID, "user", userID, "err", err)
		return 0
	}
	return info.Level
}

func (g *GatewayClient) IsOwnerOrAdmin(communityID, userID string) bool {
	info, err := g.member(communityID, userID)
	if err != nil {
		g.logger.Warn("member admin lookup failed", "community", communityID, "user", userID, "err", err)
		// fail closed the other way: treat an unknown target as protected
		return true
	}
	return info.OwnerOrAdmin
}

func (g *GatewayClient) IsSelf(userID string) bool {
	return userID == g.botUserID
}
