package reversal

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Minute-scale is plenty for this domain; expiries are hours to days out.
const DefaultInterval = time.Minute

// Invoked for each claimed expired record. Implemented by the action
// orchestrator, so a fired reversal runs the full normal pipeline (case,
// suppression marker, notification policy).
type Firer interface {
	FireReversal(ctx context.Context, rev Reversal) error
}

type Loop struct {
	store    Store
	firer    Firer
	interval time.Duration
	logger   *slog.Logger
	exit     chan struct{}
}

func NewLoop(store Store, firer Firer, interval time.Duration, logger *slog.Logger) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		store:    store,
		firer:    firer,
		interval: interval,
		logger:   logger.With("system", "reversalLoop"),
		exit:     make(chan struct{}),
	}
}

// Schedule records a pending reversal. An existing record for the same
// (community, target, kind) gets its expiry replaced.
func (l *Loop) Schedule(ctx context.Context, communityID, targetUserID string, kind Kind, expiresAt time.Time) error {
	rev := Reversal{
		CommunityID:  communityID,
		TargetUserID: targetUserID,
		Kind:         kind,
		ExpiresAt:    expiresAt,
	}
	if err := l.store.Upsert(ctx, &rev); err != nil {
		return fmt.Errorf("scheduling reversal: %w", err)
	}
	scheduledCount.WithLabelValues(kind.String()).Inc()
	return nil
}

// Cancel removes a pending reversal, eg because an opposing manual action
// already happened. No-op if none is pending.
func (l *Loop) Cancel(ctx context.Context, communityID, targetUserID string, kind Kind) error {
	removed, err := l.store.Remove(ctx, communityID, targetUserID, kind)
	if err != nil {
		return fmt.Errorf("cancelling reversal: %w", err)
	}
	if removed {
		cancelledCount.WithLabelValues(kind.String()).Inc()
		l.logger.Info("cancelled pending reversal", "community", communityID, "target", targetUserID, "kind", kind.String())
	}
	return nil
}

// Run polls the store until ctx is done or Shutdown is called. Pending
// records are durable, so a restarted process resumes them here; an
// immediate sweep catches anything that expired while the process was down.
func (l *Loop) Run(ctx context.Context) error {
	pending, err := l.store.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("loading pending reversals: %w", err)
	}
	l.logger.Info("reversal loop starting", "pending", len(pending), "interval", l.interval)

	l.Sweep(ctx)

	t := time.NewTicker(l.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.exit:
			return nil
		case <-t.C:
			l.Sweep(ctx)
		}
	}
}

// Sweep claims every expired record and fires it. A failed reversal action
// is logged and the record stays cleared; the external state usually already
// satisfies the goal (eg, the target was unbanned manually out-of-band).
func (l *Loop) Sweep(ctx context.Context) {
	taken, err := l.store.TakeExpired(ctx, time.Now())
	if err != nil {
		l.logger.Error("reversal sweep failed", "err", err)
		return
	}
	for _, rev := range taken {
		if err := l.firer.FireReversal(ctx, rev); err != nil {
			firedCount.WithLabelValues(rev.Kind.String(), "error").Inc()
			l.logger.Warn("reversal action failed, record cleared anyway",
				"community", rev.CommunityID, "target", rev.TargetUserID, "kind", rev.Kind.String(), "err", err)
			continue
		}
		firedCount.WithLabelValues(rev.Kind.String(), "ok").Inc()
		l.logger.Info("fired scheduled reversal",
			"community", rev.CommunityID, "target", rev.TargetUserID, "kind", rev.Kind.String())
	}
}

func (l *Loop) Shutdown() {
	close(l.exit)
}
