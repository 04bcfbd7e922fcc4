package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wardenbot/warden/util/cliutil"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "warden",
		Usage:   "moderation action daemon",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity (debug, info, warn, error)",
			EnvVars: []string{"WARDEN_LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "log format (text, json)",
			Value:   "json",
			EnvVars: []string{"WARDEN_LOG_FMT"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the daemon",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Value:   "sqlite://data/warden/warden.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			Value:   40,
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL for the suppression registry; empty uses the in-process registry",
			EnvVars: []string{"WARDEN_REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "gateway-host",
			Usage:   "base URL of the chat gateway sidecar; empty runs dry-run",
			EnvVars: []string{"WARDEN_GATEWAY_HOST"},
		},
		&cli.StringFlag{
			Name:    "bot-user-id",
			Usage:   "the bot's own platform account id",
			EnvVars: []string{"WARDEN_BOT_USER_ID"},
		},
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for the admin and gateway APIs",
			Value:   ":2585",
			EnvVars: []string{"WARDEN_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics",
			Value:   ":2586",
			EnvVars: []string{"WARDEN_METRICS_LISTEN"},
		},
		&cli.IntFlag{
			Name:    "notify-rate-limit",
			Usage:   "max outbound user notifications per second",
			Value:   5,
			EnvVars: []string{"WARDEN_NOTIFY_RATE_LIMIT"},
		},
		&cli.DurationFlag{
			Name:    "confirm-timeout",
			Usage:   "how long a confirmation prompt waits before resolving as decline",
			Value:   60 * time.Second,
			EnvVars: []string{"WARDEN_CONFIRM_TIMEOUT"},
		},
		&cli.DurationFlag{
			Name:    "reversal-interval",
			Usage:   "how often the reversal loop checks for expired temporary actions",
			Value:   time.Minute,
			EnvVars: []string{"WARDEN_REVERSAL_INTERVAL"},
		},
		&cli.Int64Flag{
			Name:    "warn-notify-threshold",
			Usage:   "prior warning count that makes another warn require confirmation; 0 disables",
			Value:   3,
			EnvVars: []string{"WARDEN_WARN_NOTIFY_THRESHOLD"},
		},
		&cli.BoolFlag{
			Name:    "case-on-manual-actions",
			Usage:   "record audit cases for moderation actions performed outside the bot",
			EnvVars: []string{"WARDEN_CASE_ON_MANUAL_ACTIONS"},
		},
	},
	Action: func(cctx *cli.Context) error {
		logger, err := cliutil.SetupSlog(cctx.String("log-level"), cctx.String("log-format"))
		if err != nil {
			return err
		}

		db, err := cliutil.SetupDatabase(cctx.String("database-url"), cctx.Int("max-db-connections"))
		if err != nil {
			return err
		}

		srv, err := NewServer(db, Config{
			Logger:              logger,
			GatewayHost:         cctx.String("gateway-host"),
			RedisURL:            cctx.String("redis-url"),
			BotUserID:           cctx.String("bot-user-id"),
			NotifyRateLimit:     cctx.Int("notify-rate-limit"),
			ConfirmTimeout:      cctx.Duration("confirm-timeout"),
			ReversalInterval:    cctx.Duration("reversal-interval"),
			WarnNotifyThreshold: cctx.Int64("warn-notify-threshold"),
			CaseOnManualActions: cctx.Bool("case-on-manual-actions"),
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		eg, ctx := errgroup.WithContext(ctx)
		eg.Go(func() error {
			return srv.Run(ctx)
		})
		eg.Go(func() error {
			if err := srv.RunAPI(cctx.String("bind")); err != nil {
				return fmt.Errorf("admin API listener failed: %w", err)
			}
			return nil
		})
		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				logger.Error("metrics listener failed", "err", err)
				panic(fmt.Errorf("metrics listener failed: %w", err))
			}
		}()

		eg.Go(func() error {
			<-ctx.Done()
			logger.Info("shutting down")
			shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutCtx)
		})

		if err := eg.Wait(); err != nil && err != context.Canceled {
			return err
		}
		return nil
	},
}
