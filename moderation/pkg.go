package moderation

import (
	"github.com/wardenbot/warden/moderation/cases"
	"github.com/wardenbot/warden/moderation/engine"
	"github.com/wardenbot/warden/moderation/suppress"
)

type Engine = engine.Engine
type EngineConfig = engine.EngineConfig
type ActionRequest = engine.ActionRequest
type ActionResult = engine.ActionResult
type Executor = engine.Executor
type MessageRenderer = engine.MessageRenderer

type ModerationCase = cases.ModerationCase
type CaseKind = cases.Kind

var (
	KindBan     = cases.KindBan
	KindUnban   = cases.KindUnban
	KindNote    = cases.KindNote
	KindWarn    = cases.KindWarn
	KindKick    = cases.KindKick
	KindMute    = cases.KindMute
	KindUnmute  = cases.KindUnmute
	KindSoftban = cases.KindSoftban

	EventBan    = suppress.EventBan
	EventUnban  = suppress.EventUnban
	EventKick   = suppress.EventKick
	EventMute   = suppress.EventMute
	EventUnmute = suppress.EventUnmute
)
