package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wardenbot/warden/moderation/cases"
	"github.com/wardenbot/warden/moderation/confirm"
	"github.com/wardenbot/warden/moderation/levels"
	"github.com/wardenbot/warden/moderation/notify"
	"github.com/wardenbot/warden/moderation/reversal"
	"github.com/wardenbot/warden/moderation/suppress"
)

// Map-backed level resolver for tests and fakes.
type FixtureLevels struct {
	Levels map[string]int64
	Admins map[string]bool
	BotID  string
}

func (f *FixtureLevels) Level(communityID, userID string) int64 {
	return f.Levels[userID]
}

func (f *FixtureLevels) IsOwnerOrAdmin(communityID, userID string) bool {
	return f.Admins[userID]
}

func (f *FixtureLevels) IsSelf(userID string) bool {
	return userID == f.BotID
}

type fixtureSnapshot struct {
	deny map[string]bool
}

func (s fixtureSnapshot) PermissionGranted(key string) bool { return !s.deny[key] }

// Config resolver granting every permission except the listed keys.
type FixtureConfig struct {
	Deny map[string]bool
}

func (f *FixtureConfig) GetMatchingConfig(ctx context.Context, params levels.MatchParams) (levels.ConfigSnapshot, error) {
	return fixtureSnapshot{deny: f.Deny}, nil
}

// Records executed platform actions; individual operations can be scripted
// to fail by name.
type FixtureExecutor struct {
	mu    sync.Mutex
	Calls []string
	Fail  map[string]error
}

func (f *FixtureExecutor) record(op, communityID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, fmt.Sprintf("%s:%s/%s", op, communityID, userID))
	return f.Fail[op]
}

func (f *FixtureExecutor) Ban(ctx context.Context, communityID, userID, reason string, deleteDays int) error {
	return f.record("ban", communityID, userID)
}

func (f *FixtureExecutor) Unban(ctx context.Context, communityID, userID, reason string) error {
	return f.record("unban", communityID, userID)
}

func (f *FixtureExecutor) Kick(ctx context.Context, communityID, userID, reason string) error {
	return f.record("kick", communityID, userID)
}

func (f *FixtureExecutor) Mute(ctx context.Context, communityID, userID, reason string) error {
	return f.record("mute", communityID, userID)
}

func (f *FixtureExecutor) Unmute(ctx context.Context, communityID, userID, reason string) error {
	return f.record("unmute", communityID, userID)
}

func (f *FixtureExecutor) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// A contact method that records deliveries and can be scripted to fail.
type FixtureTransport struct {
	TransportName string
	Err           error

	mu   sync.Mutex
	Sent []string
}

func (f *FixtureTransport) Name() string { return f.TransportName }

func (f *FixtureTransport) Send(ctx context.Context, communityID, userID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Sent = append(f.Sent, userID+": "+text)
	return nil
}

func (f *FixtureTransport) SentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Sent)
}

// Answers every confirmation prompt on behalf of the allowed responder.
type ScriptedPrompter struct {
	Gate *confirm.Gate
	// reply to give; Silent leaves the prompt to time out instead
	Answer bool
	Silent bool
}

func (p *ScriptedPrompter) Present(ctx context.Context, promptID string, prompt confirm.Prompt) error {
	if p.Silent {
		return nil
	}
	go p.Gate.Resolve(promptID, prompt.RestrictToID, p.Answer)
	return nil
}

func (p *ScriptedPrompter) Retract(promptID string) {}

// Renders a plain notice for every kind unless disabled for it.
type FixtureRenderer struct {
	Disabled map[cases.Kind]bool
}

func (f *FixtureRenderer) RenderNotification(kind cases.Kind, communityID, reason string) (string, bool) {
	if f.Disabled[kind] {
		return "", false
	}
	return fmt.Sprintf("You have received a %s: %s", kind, reason), true
}

// EngineTestFixture assembles a fully in-memory engine: map levels
// ("mod"=50, "member"=10, bot id "bot"), allow-all config, recording
// executor and transport, auto-confirming prompter, mem stores, and a
// reversal loop that only sweeps when the test says so. Intentionally
// exported, for use in other packages.
func EngineTestFixture() *Engine {
	lv := &FixtureLevels{
		Levels: map[string]int64{"mod": 50, "member": 10, "peer": 50, "admin": 90},
		Admins: map[string]bool{"admin": true},
		BotID:  "bot",
	}
	prompter := &ScriptedPrompter{Answer: true}
	gate := confirm.NewGate(prompter)
	prompter.Gate = gate

	eng := &Engine{
		Logger:    slog.Default(),
		Levels:    lv,
		Config:    &FixtureConfig{},
		Executor:  &FixtureExecutor{},
		Renderer:  &FixtureRenderer{},
		Cases:     cases.NewMemStore(),
		Suppress:  suppress.NewMemRegistry(time.Minute),
		Confirm:   gate,
		Methods:   []notify.Transport{&FixtureTransport{TransportName: "direct message"}},
		BotUserID: "bot",
		Cfg: EngineConfig{
			WarnNotifyEnabled:   true,
			WarnNotifyThreshold: 3,
			WarnNotifyMessage:   "The user already has {priorWarnings} warnings. Warn anyway?",
			ConfirmTimeout:      100 * time.Millisecond,
		},
	}
	eng.Reversals = reversal.NewLoop(reversal.NewMemStore(), eng, time.Hour, slog.Default())
	return eng
}
