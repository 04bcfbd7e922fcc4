package suppress

import (
	"context"
	"log/slog"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// In-process registry. Mark and Consume for the same key are linearizable
// (per-key atomic map operations); different keys proceed fully in parallel.
// Expired markers are dropped lazily on read and by an optional background
// sweep, so the map stays bounded even for keys that are never consumed.
type MemRegistry struct {
	window  time.Duration
	markers *xsync.MapOf[string, time.Time]
	exit    chan struct{}
}

var _ Registry = (*MemRegistry)(nil)

func NewMemRegistry(window time.Duration) *MemRegistry {
	if window <= 0 {
		window = DefaultWindow
	}
	return &MemRegistry{
		window:  window,
		markers: xsync.NewMapOf[string, time.Time](),
		exit:    make(chan struct{}),
	}
}

func (r *MemRegistry) Mark(ctx context.Context, kind EventKind, communityID, userID string) error {
	deadline := time.Now().Add(r.window)
	r.markers.Compute(markerKey(kind, communityID, userID), func(old time.Time, loaded bool) (time.Time, bool) {
		// first write wins while a live marker exists; expired ones get replaced
		if loaded && old.After(time.Now()) {
			return old, false
		}
		return deadline, false
	})
	markedCount.WithLabelValues(string(kind)).Inc()
	return nil
}

func (r *MemRegistry) Consume(ctx context.Context, kind EventKind, communityID, userID string) (bool, error) {
	deadline, ok := r.markers.LoadAndDelete(markerKey(kind, communityID, userID))
	if !ok {
		return false, nil
	}
	if time.Now().After(deadline) {
		// stale marker, already evicted by the delete above
		return false, nil
	}
	consumedCount.WithLabelValues(string(kind)).Inc()
	return true, nil
}

// StartSweeper purges expired markers on a fixed interval until Shutdown is
// called. Consume already drops stale markers lazily; the sweep just keeps
// never-consumed keys from accumulating.
func (r *MemRegistry) StartSweeper(interval time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-r.exit:
				return
			case <-t.C:
				swept := r.sweep()
				if swept > 0 {
					logger.Debug("swept expired suppression markers", "count", swept)
				}
			}
		}
	}()
}

func (r *MemRegistry) sweep() int {
	now := time.Now()
	var swept int
	r.markers.Range(func(key string, deadline time.Time) bool {
		if now.After(deadline) {
			r.markers.Delete(key)
			swept++
		}
		return true
	})
	sweptCount.Add(float64(swept))
	return swept
}

func (r *MemRegistry) Shutdown() {
	close(r.exit)
}
