package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"
	"gorm.io/gorm"

	"github.com/wardenbot/warden/moderation/cases"
	"github.com/wardenbot/warden/moderation/confirm"
	"github.com/wardenbot/warden/moderation/engine"
	"github.com/wardenbot/warden/moderation/levels"
	"github.com/wardenbot/warden/moderation/modevents"
	"github.com/wardenbot/warden/moderation/notify"
	"github.com/wardenbot/warden/moderation/reversal"
	"github.com/wardenbot/warden/moderation/suppress"
)

type Server struct {
	logger  *slog.Logger
	engine  *engine.Engine
	bus     *modevents.Bus
	loop    *reversal.Loop
	memSupp *suppress.MemRegistry
	echo    *echo.Echo
	dryRun  bool
}

type Config struct {
	Logger *slog.Logger
	// base URL of the chat gateway sidecar; empty runs the daemon in dry-run
	// mode (actions are logged, not performed)
	GatewayHost         string
	RedisURL            string
	BotUserID           string
	NotifyRateLimit     int
	ConfirmTimeout      time.Duration
	ReversalInterval    time.Duration
	WarnNotifyThreshold int64
	CaseOnManualActions bool
}

func NewServer(db *gorm.DB, config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	caseStore, err := cases.NewGormStore(db)
	if err != nil {
		return nil, err
	}
	revStore, err := reversal.NewGormStore(db)
	if err != nil {
		return nil, err
	}

	var supp suppress.Registry
	var memSupp *suppress.MemRegistry
	if config.RedisURL != "" {
		rs, err := suppress.NewRedisRegistry(config.RedisURL, suppress.DefaultWindow)
		if err != nil {
			return nil, err
		}
		supp = rs
		logger.Info("using redis suppression registry")
	} else {
		memSupp = suppress.NewMemRegistry(suppress.DefaultWindow)
		memSupp.StartSweeper(time.Minute, logger)
		supp = memSupp
	}

	bus := modevents.NewBus(logger)

	var (
		executor engine.Executor
		resolver levels.Resolver
		methods  []notify.Transport
		gate     *confirm.Gate
		dryRun   bool
	)
	if config.GatewayHost != "" {
		gw := NewGatewayClient(config.GatewayHost, config.BotUserID, config.NotifyRateLimit, logger)
		executor = gw
		resolver = gw
		methods = []notify.Transport{gw}
		gate = confirm.NewGate(gw)
	} else {
		logger.Warn("no gateway configured, running dry-run: actions are logged, not performed")
		executor = &dryRunExecutor{logger: logger}
		resolver = &dryRunResolver{botUserID: config.BotUserID}
		dryRun = true
	}

	eng := &engine.Engine{
		Logger:    logger,
		Levels:    resolver,
		Executor:  executor,
		Renderer:  &templateRenderer{},
		Cases:     caseStore,
		Suppress:  supp,
		Confirm:   gate,
		Bus:       bus,
		Methods:   methods,
		BotUserID: config.BotUserID,
		Cfg: engine.EngineConfig{
			WarnNotifyEnabled:   config.WarnNotifyThreshold > 0,
			WarnNotifyThreshold: config.WarnNotifyThreshold,
			WarnNotifyMessage:   "The user already has {priorWarnings} warnings. Warn anyway?",
			CaseOnManualActions: config.CaseOnManualActions,
			ConfirmTimeout:      config.ConfirmTimeout,
		},
	}
	eng.Reversals = reversal.NewLoop(revStore, eng, config.ReversalInterval, logger)

	s := &Server{
		logger:  logger,
		engine:  eng,
		bus:     bus,
		loop:    eng.Reversals,
		memSupp: memSupp,
		dryRun:  dryRun,
	}
	s.echo = s.buildAPI()
	return s, nil
}

// Run drives the background components: the event bus and the reversal loop.
// Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go s.bus.Run()

	// drain domain events into the log; external consumers subscribe the
	// same way
	sub := s.bus.Subscribe(nil)
	go func() {
		for evt := range sub.Events() {
			s.logger.Info("moderation event",
				"kind", evt.Kind.String(), "community", evt.CommunityID,
				"target", evt.TargetUserID, "case", evt.CaseNumber)
		}
	}()

	err := s.loop.Run(ctx)

	s.bus.Shutdown()
	if s.memSupp != nil {
		s.memSupp.Shutdown()
	}
	return err
}

func (s *Server) RunAPI(listen string) error {
	if err := s.echo.Start(listen); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) buildAPI() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(slogecho.New(s.logger))
	e.Use(middleware.Recover())

	e.GET("/_health", s.handleHealthCheck)

	e.POST("/admin/communities/:community/actions/:action", s.handleAction)
	e.GET("/admin/communities/:community/cases/:num", s.handleGetCase)
	e.GET("/admin/communities/:community/users/:user/cases", s.handleListCases)
	e.POST("/admin/communities/:community/cases/:num/hide", s.handleHideCase)
	e.POST("/admin/communities/:community/cases/:num/reason", s.handleAmendReason)

	e.POST("/gateway/events", s.handleObservedEvent)
	e.POST("/gateway/prompts/:id/resolve", s.handleResolvePrompt)

	return e
}

type HealthStatus struct {
	Status  string `json:"status"`
	DryRun  bool   `json:"dryRun"`
	Version string `json:"version,omitempty"`
}

func (s *Server) handleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthStatus{Status: "ok", DryRun: s.dryRun})
}

type actionBody struct {
	TargetID      string   `json:"targetId"`
	ModeratorID   string   `json:"moderatorId"`
	AuthorID      string   `json:"authorId"`
	Reason        string   `json:"reason"`
	Attachments   []string `json:"attachments"`
	Duration      string   `json:"duration"`
	DeleteDays    int      `json:"deleteDays"`
	PromptContext string   `json:"promptContext"`
}

func (s *Server) handleAction(c echo.Context) error {
	var body actionBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid action body")
	}

	req := engine.ActionRequest{
		CommunityID:   c.Param("community"),
		TargetID:      body.TargetID,
		ModeratorID:   body.ModeratorID,
		AuthorID:      body.AuthorID,
		Reason:        body.Reason,
		Attachments:   body.Attachments,
		DeleteDays:    body.DeleteDays,
		PromptContext: body.PromptContext,
	}
	if body.Duration != "" {
		d, err := time.ParseDuration(body.Duration)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid duration")
		}
		req.Duration = d
	}

	ctx := c.Request().Context()
	var res *engine.ActionResult
	var err error
	switch c.Param("action") {
	case "note":
		res, err = s.engine.Note(ctx, req)
	case "warn":
		res, err = s.engine.Warn(ctx, req)
	case "mute":
		res, err = s.engine.Mute(ctx, req)
	case "unmute":
		res, err = s.engine.Unmute(ctx, req)
	case "kick":
		res, err = s.engine.Kick(ctx, req)
	case "softban":
		res, err = s.engine.Softban(ctx, req)
	case "ban":
		res, err = s.engine.Ban(ctx, req)
	case "unban":
		res, err = s.engine.Unban(ctx, req)
	default:
		return echo.NewHTTPError(http.StatusNotFound, "unknown action kind")
	}
	if err != nil {
		return actionHTTPError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func actionHTTPError(err error) error {
	switch {
	case errors.Is(err, engine.ErrAuthorizationDenied):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, engine.ErrConfirmationDeclined):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrNotificationFailed):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrActionExecutionFailed):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) caseNumber(c echo.Context) (int64, error) {
	num, err := strconv.ParseInt(c.Param("num"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid case number")
	}
	return num, nil
}

func (s *Server) handleGetCase(c echo.Context) error {
	num, err := s.caseNumber(c)
	if err != nil {
		return err
	}
	mc, err := s.engine.Cases.FindByCaseNumber(c.Request().Context(), c.Param("community"), num)
	if err != nil {
		if errors.Is(err, cases.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "case not found")
		}
		return err
	}
	return c.JSON(http.StatusOK, mc)
}

func (s *Server) handleListCases(c echo.Context) error {
	includeHidden := c.QueryParam("hidden") == "true"
	list, err := s.engine.Cases.ListByUser(c.Request().Context(), c.Param("community"), c.Param("user"), includeHidden)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

type hideBody struct {
	Hidden bool `json:"hidden"`
}

func (s *Server) handleHideCase(c echo.Context) error {
	num, err := s.caseNumber(c)
	if err != nil {
		return err
	}
	var body hideBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := s.engine.SetCaseHidden(c.Request().Context(), c.Param("community"), num, body.Hidden); err != nil {
		if errors.Is(err, cases.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "case not found")
		}
		return err
	}
	return c.NoContent(http.StatusOK)
}

type reasonBody struct {
	Reason string `json:"reason"`
}

func (s *Server) handleAmendReason(c echo.Context) error {
	num, err := s.caseNumber(c)
	if err != nil {
		return err
	}
	var body reasonBody
	if err := c.Bind(&body); err != nil || body.Reason == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := s.engine.AmendCaseReason(c.Request().Context(), c.Param("community"), num, body.Reason); err != nil {
		if errors.Is(err, cases.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "case not found")
		}
		return err
	}
	return c.NoContent(http.StatusOK)
}

type observedBody struct {
	Kind        string `json:"kind"`
	CommunityID string `json:"communityId"`
	UserID      string `json:"userId"`
}

func (s *Server) handleObservedEvent(c echo.Context) error {
	var body observedBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid event body")
	}
	kind := suppress.EventKind(body.Kind)
	switch kind {
	case suppress.EventBan, suppress.EventUnban, suppress.EventKick, suppress.EventMute, suppress.EventUnmute:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown event kind")
	}
	external, err := s.engine.HandleObservedEvent(c.Request().Context(), kind, body.CommunityID, body.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"external": external})
}

type resolveBody struct {
	ResponderID string `json:"responderId"`
	Confirmed   bool   `json:"confirmed"`
}

func (s *Server) handleResolvePrompt(c echo.Context) error {
	if s.engine.Confirm == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no confirmation gate configured")
	}
	var body resolveBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	accepted := s.engine.Confirm.Resolve(c.Param("id"), body.ResponderID, body.Confirmed)
	return c.JSON(http.StatusOK, map[string]bool{"accepted": accepted})
}
